package chaos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInjector(t *testing.T, bindings []RouteBinding, opts ...Option) *Injector {
	t.Helper()
	reg, err := NewRouteRegistry(bindings)
	require.NoError(t, err)
	return NewInjector(reg, opts...)
}

func failingBinding(method, path string, rate float64, codes ...int) RouteBinding {
	f := NewFailureProfile(rate, codes...)
	b := binding(method, path)
	b.Failure = &f
	return b
}

func TestInjector_GetFaultResponse(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{
		failingBinding("GET", "/always", 1.0, 503),
		failingBinding("GET", "/never", 0.0, 503),
		binding("GET", "/quiet"),
	})

	fault := inj.GetFaultResponse("GET", "/always", nil)
	require.NotNil(t, fault)
	assert.Equal(t, 503, fault.Status)
	assert.Equal(t, FaultHTTPError, fault.Kind)
	assert.Equal(t, DefaultFailureMessage, fault.Message)

	assert.Nil(t, inj.GetFaultResponse("GET", "/never", nil))
	assert.Nil(t, inj.GetFaultResponse("GET", "/quiet", nil))
	assert.Nil(t, inj.GetFaultResponse("GET", "/unknown", nil))
	assert.Nil(t, inj.GetFaultResponse("POST", "/always", nil))

	stats := inj.Stats()
	assert.Equal(t, int64(5), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.InjectedFaults)
	assert.Equal(t, int64(2), stats.Unmatched)
	assert.Equal(t, int64(1), stats.FaultsByKind[FaultHTTPError])
}

func TestInjector_FaultCatalogue(t *testing.T) {
	b := failingBinding("GET", "/mixed", 1.0)
	b.Faults = []FaultSpec{
		{Kind: FaultConnectionError},
		{Kind: FaultTimeout, DurationMs: 10},
		{Kind: FaultPayloadCorruption},
	}
	inj := newTestInjector(t, []RouteBinding{b}, WithSource(NewSeededSource(31)))

	seen := map[FaultKind]int{}
	for range 300 {
		fault := inj.GetFaultResponse("GET", "/mixed", nil)
		require.NotNil(t, fault)
		seen[fault.Kind]++
	}
	assert.Len(t, seen, 3)
	for kind, n := range seen {
		assert.Greater(t, n, 50, "kind %s chosen too rarely", kind)
	}
}

func TestInjector_PlanLatency(t *testing.T) {
	lat := NewLatencyProfile(100, 0).WithTagOverride("slow", 500)
	b := binding("GET", "/users/{id}")
	b.Latency = &lat
	inj := newTestInjector(t, []RouteBinding{b})

	plan := inj.PlanLatency("GET", "/users/1", nil)
	assert.Equal(t, 100*time.Millisecond, plan.Delay)
	assert.Equal(t, "GET /users/{id}", plan.Route)

	plan = inj.PlanLatency("GET", "/users/1", []string{"slow"})
	assert.Equal(t, 500*time.Millisecond, plan.Delay)

	assert.True(t, inj.PlanLatency("GET", "/other", nil).IsZero())
}

func TestInjector_PlanLatency_Gated(t *testing.T) {
	off := NewLatencyProfile(100, 0).WithEnabled(false)
	never := NewLatencyProfile(100, 0).WithProbability(0)
	a, b := binding("GET", "/off"), binding("GET", "/never")
	a.Latency, b.Latency = &off, &never

	var events []FaultEvent
	inj := newTestInjector(t, []RouteBinding{a, b}, WithEventSink(EventSinkFunc(func(ev FaultEvent) {
		events = append(events, ev)
	})))

	for range 50 {
		assert.True(t, inj.PlanLatency("GET", "/off", nil).IsZero())
		assert.True(t, inj.PlanLatency("GET", "/never", nil).IsZero())
	}
	assert.Zero(t, inj.Stats().LatencyInjected)
	assert.Empty(t, events)
}

func TestInjector_ExecuteWaits(t *testing.T) {
	inj := NewInjector(nil)
	start := time.Now()
	require.NoError(t, inj.Execute(context.Background(), LatencyPlan{Delay: 30 * time.Millisecond}))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	require.NoError(t, inj.Execute(context.Background(), LatencyPlan{}))
}

func TestInjector_ExecuteCancellation(t *testing.T) {
	lat := NewLatencyProfile(10_000, 0)
	b := binding("GET", "/slow")
	b.Latency = &lat
	inj := newTestInjector(t, []RouteBinding{b})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := inj.InjectLatency(ctx, "GET", "/slow", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInjector_Swap(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{failingBinding("GET", "/a", 1.0, 500)})
	require.NotNil(t, inj.GetFaultResponse("GET", "/a", nil))

	next, err := NewRouteRegistry([]RouteBinding{failingBinding("GET", "/b", 1.0, 502)})
	require.NoError(t, err)
	old := inj.Swap(next)

	assert.Equal(t, 1, old.Len())
	assert.Same(t, next, inj.Registry())
	assert.Nil(t, inj.GetFaultResponse("GET", "/a", nil))
	fault := inj.GetFaultResponse("GET", "/b", nil)
	require.NotNil(t, fault)
	assert.Equal(t, 502, fault.Status)

	inj.Swap(nil)
	assert.Zero(t, inj.Registry().Len())
}

func TestInjector_ReloadKeepsOldOnError(t *testing.T) {
	inj := newTestInjector(t, []RouteBinding{failingBinding("GET", "/a", 1.0)})

	err := inj.Reload([]RouteBinding{failingBinding("GET", "/a", 7.0)})
	require.ErrorIs(t, err, ErrInvalidProbability)
	assert.NotNil(t, inj.GetFaultResponse("GET", "/a", nil))

	require.NoError(t, inj.Reload(nil))
	assert.Nil(t, inj.GetFaultResponse("GET", "/a", nil))
}

func TestInjector_Events(t *testing.T) {
	var mu sync.Mutex
	var events []FaultEvent
	sink := EventSinkFunc(func(ev FaultEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	lat := NewLatencyProfile(5, 0)
	b := failingBinding("GET", "/a", 1.0, 503)
	b.Name = "route-a"
	lat2 := lat
	c := binding("GET", "/b")
	c.Latency = &lat2

	inj := newTestInjector(t, []RouteBinding{b, c}, WithEventSink(MultiSink{sink, nil}))
	inj.GetFaultResponse("GET", "/a", []string{"t1"})
	inj.PlanLatency("GET", "/b", nil)

	require.Len(t, events, 2)
	assert.Equal(t, EventFault, events[0].Type)
	assert.Equal(t, "route-a", events[0].Route)
	assert.Equal(t, 503, events[0].Status)
	assert.Equal(t, []string{"t1"}, events[0].Tags)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, EventLatency, events[1].Type)
	assert.Equal(t, 5*time.Millisecond, events[1].Delay)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestInjector_Preview(t *testing.T) {
	lat := NewLatencyProfile(40, 0)
	b := failingBinding("GET", "/a", 0.0, 418)
	b.Latency = &lat
	inj := newTestInjector(t, []RouteBinding{b})

	p := inj.Preview("GET", "/a", nil)
	assert.True(t, p.Matched)
	assert.False(t, p.Inject)
	require.NotNil(t, p.Fault)
	assert.Equal(t, 418, p.Fault.Status)
	assert.Equal(t, 40*time.Millisecond, p.Latency.Delay)

	assert.False(t, inj.Preview("GET", "/missing", nil).Matched)
	assert.Zero(t, inj.Stats().TotalRequests)
}

func TestInjector_Concurrent(t *testing.T) {
	lat := NewLatencyProfile(0, 0).WithJitterPercent(10)
	b := failingBinding("*", "/items/{id}", 0.5, 500, 503)
	b.Latency = &lat
	inj := newTestInjector(t, []RouteBinding{b})

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range 200 {
				if fault := inj.GetFaultResponse("GET", "/items/1", nil); fault != nil {
					assert.Contains(t, []int{500, 503}, fault.Status)
				}
				_ = inj.PlanLatency("GET", "/items/1", nil)
				if g == 0 && n%50 == 0 {
					reg, err := NewRouteRegistry([]RouteBinding{b})
					if assert.NoError(t, err) {
						inj.Swap(reg)
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8*200), inj.Stats().TotalRequests)
}
