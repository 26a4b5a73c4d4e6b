package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-chaos/pkg/cli/internal/flags"
	"github.com/getmockd/mockd-chaos/pkg/config"
	"github.com/getmockd/mockd-chaos/pkg/logging"
)

var (
	// Persistent flags available to all subcommands
	jsonOutput   bool
	configFiles  flags.StringSlice
	logLevel     string
	logFormat    string
	logFile      string
	logFileLevel string

	// logger is built from the logging flags before each command runs.
	logger  = logging.Nop()
	logSink io.Closer

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mockd-chaos",
	Short: "mockd-chaos injects latency and faults into mocked routes",
	Long: `mockd-chaos serves mock routes and injects per-route latency and failures
into them, so clients can be tested against slow and unreliable dependencies.

Routes are read from YAML or JSON route files. When --config is not given,
mockd-chaos uses $MOCKD_CHAOS_CONFIG or looks for mockd-chaos.yaml,
mockd-chaos.yml or mockd-chaos.json in the current directory.`,
	SilenceUsage:      true,
	SilenceErrors:     true, // We handle errors in Execute()
	PersistentPreRunE: setupLogging,
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return closeLogSink()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_ = closeLogSink()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	pf.VarP(&configFiles, "config", "c", "Route file, directory or glob (repeatable)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
	pf.StringVar(&logFileLevel, "log-file-level", "", "Log level for --log-file (default --log-level)")
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevelStrict(logLevel)
	if err != nil {
		return err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = logging.ParseFormat(logFormat)
	cfg.Output = cmd.ErrOrStderr()

	if logFile != "" {
		cfg.MirrorLevel = level
		if logFileLevel != "" {
			if cfg.MirrorLevel, err = logging.ParseLevelStrict(logFileLevel); err != nil {
				return fmt.Errorf("--log-file-level: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logSink = f
		cfg.Mirror = f
	}
	logger = logging.New(cfg)
	return nil
}

func closeLogSink() error {
	if logSink == nil {
		return nil
	}
	err := logSink.Close()
	logSink = nil
	logger = logging.Nop()
	return err
}

// routePaths returns the --config values, or the discovered route file.
func routePaths() ([]string, error) {
	if len(configFiles) > 0 {
		return append([]string(nil), configFiles...), nil
	}
	path, err := config.Discover()
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// loadRoutes loads and validates the route files named by --config.
func loadRoutes() (*config.File, []string, error) {
	paths, err := routePaths()
	if err != nil {
		return nil, nil, err
	}
	f, err := config.Load(paths...)
	if err != nil {
		return nil, paths, err
	}
	return f, paths, nil
}
