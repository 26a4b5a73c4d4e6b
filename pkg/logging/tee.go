package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to the console and to the mirror. Each side
// applies its own level, so Enabled is true when either side wants the record.
type teeHandler struct {
	console slog.Handler
	mirror  slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.mirror.Enabled(ctx, level)
}

// Handle reports failures from both sides; one failing does not stop the other.
func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var consoleErr, mirrorErr error
	if h.console.Enabled(ctx, r.Level) {
		consoleErr = h.console.Handle(ctx, r.Clone())
	}
	if h.mirror.Enabled(ctx, r.Level) {
		mirrorErr = h.mirror.Handle(ctx, r)
	}
	return errors.Join(consoleErr, mirrorErr)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{console: h.console.WithAttrs(attrs), mirror: h.mirror.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{console: h.console.WithGroup(name), mirror: h.mirror.WithGroup(name)}
}
