// Package logging builds the slog loggers used across mockd-chaos.
//
// Every component takes a *slog.Logger through an option and falls back to
// Nop. The CLI builds the one real logger from its --log-* flags:
//
//	logger := logging.New(logging.Config{
//	    Level:       logging.LevelInfo,
//	    Format:      logging.FormatText,
//	    Output:      os.Stderr,
//	    Mirror:      logFile,
//	    MirrorLevel: logging.LevelDebug,
//	})
//
// Console output is text or JSON. The mirror, used for --log-file, is always
// JSON and has its own level.
package logging
