package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/eventlog"
	"github.com/getmockd/mockd-chaos/pkg/httputil"
)

// DefaultEventLimit caps GET /events when no limit is given.
const DefaultEventLimit = 100

// EventsResponse is returned by GET /events.
type EventsResponse struct {
	Count  int                `json:"count"`
	Total  int                `json:"total"`
	Events []chaos.FaultEvent `json:"events"`
}

// parseEventFilter reads the filter query parameters shared by the list and
// stream endpoints.
func parseEventFilter(q url.Values) (*eventlog.Filter, error) {
	f := &eventlog.Filter{
		Type:   chaos.EventType(q.Get("type")),
		Method: q.Get("method"),
		Path:   q.Get("path"),
		Route:  q.Get("route"),
		Kind:   chaos.FaultKind(q.Get("kind")),
		Limit:  DefaultEventLimit,
	}
	for name, dst := range map[string]*int{"status": &f.Status, "limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return f, nil
}

// handleListEvents handles GET /events.
func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	events := a.events.List(filter)
	httputil.WriteJSON(w, http.StatusOK, EventsResponse{
		Count:  len(events),
		Total:  a.events.Count(),
		Events: events,
	})
}

// handleClearEvents handles DELETE /events.
func (a *API) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	a.events.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleStreamEvents handles GET /events/stream. Each event is sent as a
// server-sent event named after its type.
func (a *API) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub, unsubscribe := a.events.Subscribe()
	defer unsubscribe()

	_, _ = fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	if err := rc.Flush(); err != nil {
		a.log.Warn("event stream not supported", "error", err)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if !filter.Matches(&ev) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", ev.Type, ev.ID, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
