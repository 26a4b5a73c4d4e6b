package chaos

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := LogSink{Logger: log}

	sink.Emit(FaultEvent{ID: "e1", Type: EventFault, Method: "GET", Path: "/a", Route: "a", Kind: FaultTimeout, Status: 504})
	sink.Emit(FaultEvent{ID: "e2", Type: EventLatency, Method: "GET", Path: "/b", Route: "b", Delay: time.Second})

	out := buf.String()
	assert.Contains(t, out, `"msg":"chaos fault injected"`)
	assert.Contains(t, out, `"kind":"timeout"`)
	assert.Contains(t, out, `"msg":"chaos latency planned"`)
	assert.Contains(t, out, `"id":"e2"`)
}

func TestLogSink_Quiet(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	LogSink{Logger: log}.Emit(FaultEvent{Type: EventFault})
	LogSink{}.Emit(FaultEvent{Type: EventFault})

	assert.Zero(t, buf.Len())
}

func TestMultiSink(t *testing.T) {
	var a, b int
	m := MultiSink{
		EventSinkFunc(func(FaultEvent) { a++ }),
		nil,
		EventSinkFunc(func(FaultEvent) { b++ }),
	}
	m.Emit(FaultEvent{})
	m.Emit(FaultEvent{})
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
}

func TestInjector_DebugLoggerAddsLogSink(t *testing.T) {
	var buf bytes.Buffer
	debug := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var received []FaultEvent
	f := NewFailureProfile(1.0, 503)
	b := binding("POST", "/orders")
	b.Failure = &f
	inj := newTestInjector(t, []RouteBinding{b},
		WithLogger(debug),
		WithEventSink(EventSinkFunc(func(ev FaultEvent) { received = append(received, ev) })),
	)

	inj.GetFaultResponse("POST", "/orders", nil)

	assert.Contains(t, buf.String(), `"msg":"chaos fault injected"`)
	assert.Contains(t, buf.String(), `"route":"POST /orders"`)
	assert.Len(t, received, 1, "the configured sink still receives events")
}

func TestInjector_InfoLoggerSkipsLogSink(t *testing.T) {
	var buf bytes.Buffer
	info := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	inj := newTestInjector(t, nil, WithLogger(info))
	assert.Nil(t, inj.sink)
}
