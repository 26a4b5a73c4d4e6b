package admin

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/eventlog"
	"github.com/getmockd/mockd-chaos/pkg/ratelimit"
)

func TestEvents_NotConfigured(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(t, api.Handler(), http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_ListAndClear(t *testing.T) {
	log := eventlog.New(10)
	api, _ := newTestAPI(t, WithEventLog(log))
	h := api.Handler()

	log.Emit(chaos.FaultEvent{ID: "1", Type: chaos.EventFault, Route: "orders", Kind: chaos.FaultHTTPError, Status: 503})
	log.Emit(chaos.FaultEvent{ID: "2", Type: chaos.EventLatency, Route: "users", Delay: time.Second})
	log.Emit(chaos.FaultEvent{ID: "3", Type: chaos.EventFault, Route: "orders", Kind: chaos.FaultTimeout, Status: 504})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"3", "2", "1"}},
		{"?type=fault", []string{"3", "1"}},
		{"?route=users", []string{"2"}},
		{"?kind=timeout", []string{"3"}},
		{"?status=503", []string{"1"}},
		{"?limit=1&offset=1", []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/events"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode[EventsResponse](t, rec)
			assert.Equal(t, 3, resp.Total)
			ids := []string{}
			for _, ev := range resp.Events {
				ids = append(ids, ev.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, len(tt.want), resp.Count)
		})
	}

	rec := do(t, h, http.MethodGet, "/events?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/events", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, log.Count())
}

func TestEvents_Stream(t *testing.T) {
	log := eventlog.New(10)
	api, _ := newTestAPI(t, WithEventLog(log))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/stream?type=fault", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() []string {
		var got []string
		for lines.Scan() {
			if lines.Text() == "" {
				return got
			}
			got = append(got, lines.Text())
		}
		return got
	}
	assert.Equal(t, "event: connected", readEvent()[0])

	log.Emit(chaos.FaultEvent{ID: "lat", Type: chaos.EventLatency})
	log.Emit(chaos.FaultEvent{ID: "f1", Type: chaos.EventFault, Kind: chaos.FaultHTTPError, Status: 500})

	ev := readEvent()
	require.Len(t, ev, 3)
	assert.Equal(t, "event: fault", ev[0])
	assert.Equal(t, "id: f1", ev[1])
	assert.True(t, strings.HasPrefix(ev[2], "data: {"))
	assert.Contains(t, ev[2], `"status":500`)
}

func TestRateLimit(t *testing.T) {
	l, err := ratelimit.New(ratelimit.Config{Rate: 0.001, Burst: 2})
	require.NoError(t, err)
	api, _ := newTestAPI(t, WithRateLimit(l))
	h := api.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/routes", "").Code)
	rec := do(t, h, http.MethodGet, "/routes", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
