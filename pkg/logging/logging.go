package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is a slog level.
type Level = slog.Level

// Levels accepted on the command line.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the console encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config describes the console logger and its optional mirror.
//
// Records at Level or above go to Output in Format. When Mirror is set, records
// at MirrorLevel or above are also written to it as JSON, independently of
// Level, so a log file can keep debug detail while the console stays quiet.
type Config struct {
	Level     Level
	Format    Format
	Output    io.Writer
	AddSource bool

	Mirror      io.Writer
	MirrorLevel Level
}

// DefaultConfig is info-level text on stderr with no mirror.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: FormatText, Output: os.Stderr}
}

// New builds a logger from cfg. A nil Output means stderr.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	console := newHandler(out, cfg.Format, cfg.Level, cfg.AddSource)
	if cfg.Mirror == nil {
		return slog.New(console)
	}
	mirror := newHandler(cfg.Mirror, FormatJSON, cfg.MirrorLevel, cfg.AddSource)
	return slog.New(&teeHandler{console: console, mirror: mirror})
}

func newHandler(w io.Writer, format Format, level Level, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Nop discards everything. Components default to it when no logger is given.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var levelNames = map[string]Level{
	"":        LevelInfo,
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel is ParseLevelStrict with unknown names mapped to LevelInfo.
func ParseLevel(s string) Level {
	level, _ := ParseLevelStrict(s)
	return level
}

// ParseLevelStrict maps debug, info, warn (or warning) and error to a Level,
// ignoring case and surrounding space. Empty means info.
func ParseLevelStrict(s string) (Level, error) {
	if level, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// ParseFormat returns FormatJSON for "json" in any case and FormatText for
// everything else.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}
