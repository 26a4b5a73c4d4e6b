package chaos

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType distinguishes the two things an injector can do to a request.
type EventType string

const (
	EventFault   EventType = "fault"
	EventLatency EventType = "latency"
)

// FaultEvent records one injection.
type FaultEvent struct {
	ID     string        `json:"id"`
	Time   time.Time     `json:"time"`
	Type   EventType     `json:"type"`
	Method string        `json:"method"`
	Path   string        `json:"path"`
	Route  string        `json:"route"`
	Tags   []string      `json:"tags,omitempty"`
	Kind   FaultKind     `json:"kind,omitempty"`
	Status int           `json:"status,omitempty"`
	Delay  time.Duration `json:"delay,omitempty"`
}

// EventSink receives injection events. Emit is called synchronously on the
// request path and must not block.
type EventSink interface {
	Emit(FaultEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(FaultEvent)

// Emit calls f(ev).
func (f EventSinkFunc) Emit(ev FaultEvent) { f(ev) }

// MultiSink fans an event out to several sinks.
type MultiSink []EventSink

// Emit forwards ev to every sink in order.
func (m MultiSink) Emit(ev FaultEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// LogSink writes events to a structured logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Emit logs ev.
func (s LogSink) Emit(ev FaultEvent) {
	if s.Logger == nil || !s.Logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{
		"id", ev.ID,
		"method", ev.Method,
		"path", ev.Path,
		"route", ev.Route,
	}
	switch ev.Type {
	case EventFault:
		s.Logger.Debug("chaos fault injected", append(attrs, "kind", ev.Kind, "status", ev.Status)...)
	case EventLatency:
		s.Logger.Debug("chaos latency planned", append(attrs, "delay", ev.Delay)...)
	}
}

func newEvent(typ EventType, method, path string, b *RouteBinding, tags []string) FaultEvent {
	return FaultEvent{
		ID:     uuid.NewString(),
		Time:   time.Now(),
		Type:   typ,
		Method: method,
		Path:   path,
		Route:  b.DisplayName(),
		Tags:   tags,
	}
}
