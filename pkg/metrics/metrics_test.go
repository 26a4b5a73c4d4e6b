package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

func TestMetrics_Emit(t *testing.T) {
	m := New()

	m.Emit(chaos.FaultEvent{Type: chaos.EventFault, Route: "users", Kind: chaos.FaultHTTPError, Status: 503})
	m.Emit(chaos.FaultEvent{Type: chaos.EventFault, Route: "users", Kind: chaos.FaultHTTPError, Status: 503})
	m.Emit(chaos.FaultEvent{Type: chaos.EventFault, Route: "users", Kind: chaos.FaultTimeout, Status: 504})
	m.Emit(chaos.FaultEvent{Type: chaos.EventLatency, Route: "users", Delay: 150 * time.Millisecond})

	assert.InDelta(t, 2, testutil.ToFloat64(m.faults.WithLabelValues("users", "http_error", "503")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.faults.WithLabelValues("users", "timeout", "504")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestMetrics_ObserveReload(t *testing.T) {
	m := New()

	m.ObserveReload(4, nil)
	m.ObserveReload(0, errors.New("bad config"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.reloads.WithLabelValues(ReloadOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reloads.WithLabelValues(ReloadRejected)), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.routes), 0)

	m.SetRoutes(2)
	assert.InDelta(t, 2, testutil.ToFloat64(m.routes), 0)
}

func TestMetrics_InjectorIntegration(t *testing.T) {
	f := chaos.NewFailureProfile(1.0, 502)
	reg, err := chaos.NewRouteRegistry([]chaos.RouteBinding{{
		Name:    "orders",
		Key:     chaos.RouteKey{Method: "GET", PathPattern: "/orders"},
		Failure: &f,
	}})
	require.NoError(t, err)

	m := New()
	inj := chaos.NewInjector(reg, chaos.WithEventSink(m))
	require.NotNil(t, inj.GetFaultResponse("GET", "/orders", nil))

	assert.InDelta(t, 1, testutil.ToFloat64(m.faults.WithLabelValues("orders", "http_error", "502")), 0)
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues("GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues("GET", "404")), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mockd_chaos_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNew_Independent(t *testing.T) {
	a, b := New(), New()
	a.SetRoutes(3)
	assert.InDelta(t, 0, testutil.ToFloat64(b.routes), 0)
}
