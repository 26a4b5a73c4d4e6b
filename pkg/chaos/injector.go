package chaos

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getmockd/mockd-chaos/pkg/logging"
)

// Injector applies a RouteRegistry to incoming requests.
//
// Decisions are synchronous and draw all their randomness up front; the only
// blocking call is Execute. The registry can be replaced at any time with Swap
// and in-flight decisions keep the registry they started with.
type Injector struct {
	registry atomic.Pointer[RouteRegistry]
	source   Source
	sink     EventSink
	log      *slog.Logger

	totalRequests   atomic.Int64
	unmatched       atomic.Int64
	injectedFaults  atomic.Int64
	latencyInjected atomic.Int64
	faultsByKind    [len(faultKinds)]atomic.Int64
}

// Option configures an Injector.
type Option func(*Injector)

// WithSource sets the entropy source. The source must be safe for concurrent
// use if the injector is shared across goroutines.
func WithSource(src Source) Option {
	return func(i *Injector) {
		if src != nil {
			i.source = src
		}
	}
}

// WithEventSink registers a sink for injection events.
func WithEventSink(sink EventSink) Option {
	return func(i *Injector) {
		i.sink = sink
	}
}

// WithLogger sets the logger. When it is enabled for debug, every injection
// event is also logged through a LogSink.
func WithLogger(log *slog.Logger) Option {
	return func(i *Injector) {
		if log != nil {
			i.log = log
		}
	}
}

// NewInjector creates an injector serving reg. A nil registry injects nothing.
func NewInjector(reg *RouteRegistry, opts ...Option) *Injector {
	i := &Injector{
		source: DefaultSource,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.log.Enabled(context.Background(), slog.LevelDebug) {
		i.sink = MultiSink{LogSink{Logger: i.log}, i.sink}
	}
	if reg == nil {
		reg = EmptyRegistry()
	}
	i.registry.Store(reg)
	return i
}

// Registry returns the registry currently in use.
func (i *Injector) Registry() *RouteRegistry {
	return i.registry.Load()
}

// Swap atomically replaces the registry and returns the previous one.
func (i *Injector) Swap(reg *RouteRegistry) *RouteRegistry {
	if reg == nil {
		reg = EmptyRegistry()
	}
	old := i.registry.Swap(reg)
	i.log.Info("chaos registry swapped", "routes", reg.Len(), "previous", old.Len())
	return old
}

// Reload builds a registry from bindings and swaps it in. On error the
// current registry stays in place.
func (i *Injector) Reload(bindings []RouteBinding) error {
	reg, err := NewRouteRegistry(bindings)
	if err != nil {
		i.log.Error("chaos reload rejected", "error", err)
		return err
	}
	i.Swap(reg)
	return nil
}

// LatencyPlan is a delay decided ahead of time. The zero value means no delay.
type LatencyPlan struct {
	Delay  time.Duration `json:"delay"`
	Route  string        `json:"route,omitempty"`
	Method string        `json:"method,omitempty"`
	Path   string        `json:"path,omitempty"`
}

// IsZero reports whether the plan adds no delay.
func (p LatencyPlan) IsZero() bool {
	return p.Delay <= 0
}

// PlanLatency decides how long a request should be delayed. It never blocks.
func (i *Injector) PlanLatency(method, path string, tags []string) LatencyPlan {
	b, ok := i.registry.Load().Resolve(method, path)
	if !ok || b.Latency == nil {
		return LatencyPlan{}
	}

	delay := b.Latency.CalculateLatency(tags, i.source)
	plan := LatencyPlan{Delay: delay, Route: b.DisplayName(), Method: method, Path: path}
	if delay > 0 {
		i.latencyInjected.Add(1)
		if i.sink != nil {
			ev := newEvent(EventLatency, method, path, b, tags)
			ev.Delay = delay
			i.sink.Emit(ev)
		}
	}
	return plan
}

// Execute waits out a plan. It returns ctx.Err() if ctx is done first.
func (i *Injector) Execute(ctx context.Context, plan LatencyPlan) error {
	return wait(ctx, plan.Delay)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InjectLatency plans and executes the delay for a request.
func (i *Injector) InjectLatency(ctx context.Context, method, path string, tags []string) error {
	return i.Execute(ctx, i.PlanLatency(method, path, tags))
}

// GetFaultResponse decides whether a request fails. It returns nil when the
// request should proceed.
func (i *Injector) GetFaultResponse(method, path string, tags []string) *FaultResponse {
	i.totalRequests.Add(1)
	b, ok := i.registry.Load().Resolve(method, path)
	if !ok {
		i.unmatched.Add(1)
		return nil
	}
	if b.Failure == nil || !b.Failure.ShouldInject(tags, i.source) {
		return nil
	}

	resp := i.buildFault(b, tags)
	i.injectedFaults.Add(1)
	if idx := kindIndex(resp.Kind); idx >= 0 {
		i.faultsByKind[idx].Add(1)
	}
	if i.sink != nil {
		ev := newEvent(EventFault, method, path, b, tags)
		ev.Kind = resp.Kind
		ev.Status = resp.Status
		i.sink.Emit(ev)
	}
	return resp
}

func (i *Injector) buildFault(b *RouteBinding, tags []string) *FaultResponse {
	status, message := b.Failure.FailureResponse(tags, i.source)
	var spec FaultSpec
	switch len(b.Faults) {
	case 0:
		spec = FaultSpec{Kind: FaultHTTPError}
	case 1:
		spec = b.Faults[0]
	default:
		spec = b.Faults[i.source.IntN(len(b.Faults))]
	}
	return spec.resolve(status, message)
}

// Preview is a dry-run evaluation of a request.
type Preview struct {
	Matched bool           `json:"matched"`
	Route   string         `json:"route,omitempty"`
	Inject  bool           `json:"inject"`
	Fault   *FaultResponse `json:"fault,omitempty"`
	Latency LatencyPlan    `json:"latency"`
}

// Preview evaluates a request without waiting, counting or emitting events.
// Fault is the response the request would get if it failed, whether or not
// this particular roll failed it.
func (i *Injector) Preview(method, path string, tags []string) Preview {
	b, ok := i.registry.Load().Resolve(method, path)
	if !ok {
		return Preview{}
	}
	p := Preview{Matched: true, Route: b.DisplayName()}
	if b.Failure != nil && b.Failure.Enabled {
		p.Inject = b.Failure.ShouldInject(tags, i.source)
		p.Fault = i.buildFault(b, tags)
	}
	if b.Latency != nil {
		p.Latency = LatencyPlan{
			Delay:  b.Latency.CalculateLatency(tags, i.source),
			Route:  p.Route,
			Method: method,
			Path:   path,
		}
	}
	return p
}

// Stats returns a snapshot of the injector's counters.
func (i *Injector) Stats() ChaosStats {
	s := ChaosStats{
		TotalRequests:   i.totalRequests.Load(),
		InjectedFaults:  i.injectedFaults.Load(),
		LatencyInjected: i.latencyInjected.Load(),
		Unmatched:       i.unmatched.Load(),
		FaultsByKind:    make(map[FaultKind]int64, len(faultKinds)),
	}
	for idx, k := range faultKinds {
		if n := i.faultsByKind[idx].Load(); n > 0 {
			s.FaultsByKind[k] = n
		}
	}
	return s
}
