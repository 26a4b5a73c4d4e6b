package engine

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/config"
	"github.com/getmockd/mockd-chaos/pkg/httputil"
)

type mockRoute struct {
	name    string
	method  string
	matcher *chaos.PathMatcher
	resp    config.Response
}

func (m *mockRoute) matches(method, path string) bool {
	if m.method != chaos.AnyMethod && m.method != method {
		return false
	}
	return m.matcher.Match(path)
}

// Responder serves the canned responses of route entries. Entries without a
// response block are ignored. It is safe for concurrent use and its table can
// be replaced while serving.
type Responder struct {
	routes atomic.Pointer[[]mockRoute]
}

// NewResponder creates a Responder with no routes.
func NewResponder() *Responder {
	r := &Responder{}
	r.routes.Store(&[]mockRoute{})
	return r
}

func compileResponses(entries []config.RouteEntry) ([]mockRoute, error) {
	routes := make([]mockRoute, 0, len(entries))
	for i, e := range entries {
		if e.Response == nil {
			continue
		}
		matcher, err := chaos.CompilePath(e.Path)
		if err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		resp := *e.Response
		resp.Status = e.Response.StatusOrDefault()
		routes = append(routes, mockRoute{
			name:    e.Name,
			method:  strings.ToUpper(e.MethodOrDefault()),
			matcher: matcher,
			resp:    resp,
		})
	}
	return routes, nil
}

// Update replaces the response table.
func (r *Responder) Update(entries []config.RouteEntry) error {
	routes, err := compileResponses(entries)
	if err != nil {
		return err
	}
	r.routes.Store(&routes)
	return nil
}

func (r *Responder) store(routes []mockRoute) {
	r.routes.Store(&routes)
}

// Len returns the number of routes with a response.
func (r *Responder) Len() int {
	return len(*r.routes.Load())
}

// ServeHTTP writes the first matching response, or a JSON 404.
func (r *Responder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	method := strings.ToUpper(req.Method)
	routes := *r.routes.Load()
	for i := range routes {
		m := &routes[i]
		if !m.matches(method, req.URL.Path) {
			continue
		}
		h := w.Header()
		for k, v := range m.resp.Headers {
			h.Set(k, v)
		}
		w.WriteHeader(m.resp.Status)
		if req.Method != http.MethodHead {
			_, _ = io.WriteString(w, m.resp.Body)
		}
		return
	}

	httputil.WriteError(w, http.StatusNotFound, "no_match", "No mock matched the request")
}
