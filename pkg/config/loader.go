package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
	ErrNoConfig         = errors.New("no route file found")
	ErrInlineInclude    = errors.New("include is not supported in inline documents")
)

// EnvConfigPath names the environment variable that points at the route file.
const EnvConfigPath = "MOCKD_CHAOS_CONFIG"

// DiscoveryOrder lists the file names Discover looks for, in priority order.
var DiscoveryOrder = []string{
	"mockd-chaos.yaml",
	"mockd-chaos.yml",
	"mockd-chaos.json",
}

// Format is a route file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension (.yaml and .yml are YAML,
// everything else JSON).
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands environment variables in the input string.
// Supports ${VAR_NAME} and ${VAR_NAME:-default} syntax. Unset variables
// without a default expand to the empty string.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

// Discover finds the route file named by MOCKD_CHAOS_CONFIG, or else the first
// DiscoveryOrder name present in the current directory.
func Discover() (string, error) {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%s points to non-existent file: %s", EnvConfigPath, envPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	for _, name := range DiscoveryOrder {
		path := filepath.Join(cwd, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s in %s; set %s or pass --config",
		ErrNoConfig, strings.Join(DiscoveryOrder, ", "), cwd, EnvConfigPath)
}

// Load reads and merges route files. Each path may be a file, a directory
// (every .yaml, .yml and .json file directly inside it) or a glob pattern.
// Routes keep the order of the paths, then of sorted matches, then of the
// files themselves.
func Load(paths ...string) (*File, error) {
	if len(paths) == 0 {
		return nil, ErrNoConfig
	}
	l := &loader{seen: make(map[string]bool)}
	merged := &File{Version: CurrentVersion}
	for _, p := range paths {
		files, err := resolveRoot(p)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := l.load(file, merged); err != nil {
				return nil, err
			}
		}
	}
	return merged, nil
}

// Parse decodes a single route document. Include patterns are rejected since
// there is no file to resolve them against.
func Parse(data []byte, format Format) (*File, error) {
	f, err := parse(data, format, "")
	if err != nil {
		return nil, err
	}
	if len(f.Include) > 0 {
		return nil, ErrInlineInclude
	}
	return f, nil
}

type loader struct {
	seen map[string]bool
}

func (l *loader) load(path string, into *File) error {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	// A file reached twice, for example through "*.yaml" matching its own
	// includer, contributes its routes once.
	if l.seen[key] {
		return nil
	}
	l.seen[key] = true

	data, err := readFile(path)
	if err != nil {
		return err
	}
	f, err := parse(data, FormatFor(path), path)
	if err != nil {
		return err
	}

	into.Sources = append(into.Sources, path)
	for i := range f.Routes {
		f.Routes[i].Source = path
		f.Routes[i].index = i
	}
	into.Routes = append(into.Routes, f.Routes...)

	baseDir := filepath.Dir(path)
	for _, pattern := range f.Include {
		matches, err := expandGlob(resolvePath(baseDir, pattern))
		if err != nil {
			return fmt.Errorf("%s: expanding include %q: %w", path, pattern, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			relPath, _ := filepath.Rel(baseDir, match)
			if relPath == "" {
				relPath = match
			}
			if err := l.load(match, into); err != nil {
				return fmt.Errorf("loading %s: %w", relPath, err)
			}
		}
	}
	return nil
}

// resolveRoot expands one Load argument into the files it names.
func resolveRoot(p string) ([]string, error) {
	if strings.ContainsAny(p, "*?[{") {
		matches, err := expandGlob(p)
		if err != nil {
			return nil, fmt.Errorf("expanding glob pattern %q: %w", p, err)
		}
		sort.Strings(matches)
		return matches, nil
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, statError(p, err)
	}
	if !info.IsDir() {
		return []string{p}, nil
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", p, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isRouteFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(p, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isRouteFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// expandGlob expands a glob pattern to a list of matching file paths.
// Uses doublestar for ** support, falls back to filepath.Glob for simple patterns.
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	}
	return filepath.Glob(pattern)
}

// resolvePath resolves target relative to base unless it is already absolute.
func resolvePath(base, target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(base, target)
}

func statError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("failed to stat file: %w", err)
	}
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, statError(path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return data, nil
}

// parse expands environment references, checks the document against the
// schema, fills defaults and decodes it.
func parse(data []byte, format Format, source string) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	expanded := []byte(ExpandEnvVars(string(data)))

	doc, err := decodeDocument(expanded, format)
	if err != nil {
		if source != "" {
			return nil, fmt.Errorf("%w in file: %s", err, source)
		}
		return nil, err
	}
	if err := validateDocument(doc, source); err != nil {
		return nil, err
	}
	applyDefaults(doc)

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}
	var f File
	if err := json.Unmarshal(normalized, &f); err != nil {
		return nil, fmt.Errorf("failed to decode routes: %w", err)
	}
	return &f, nil
}

// decodeDocument turns YAML or JSON into plain JSON values, with numbers kept
// as json.Number so integers survive schema checks intact.
func decodeDocument(data []byte, format Format) (any, error) {
	if format == FormatYAML {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
		}
		data = converted
	} else if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return doc, nil
}

// applyDefaults enables failure and latency blocks that do not say otherwise
// and gives latency blocks a probability of 1.
func applyDefaults(doc any) {
	root, ok := doc.(map[string]any)
	if !ok {
		return
	}
	routes, _ := root["routes"].([]any)
	for _, r := range routes {
		route, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if failure, ok := route["failure"].(map[string]any); ok {
			setDefault(failure, "enabled", true)
		}
		if latency, ok := route["latency"].(map[string]any); ok {
			setDefault(latency, "enabled", true)
			setDefault(latency, "probability", 1.0)
		}
	}
}

func setDefault(m map[string]any, key string, v any) {
	if _, set := m[key]; !set {
		m[key] = v
	}
}
