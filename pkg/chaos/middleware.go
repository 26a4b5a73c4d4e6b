package chaos

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/getmockd/mockd-chaos/pkg/logging"
)

// TagHeader is the request header read by HeaderTags by default.
const TagHeader = "X-Chaos-Tags"

// FaultHeader is set on every response whose fault was injected.
const FaultHeader = "X-Chaos-Fault"

// TagResolver derives the chaos tags of an HTTP request.
type TagResolver interface {
	ResolveTags(r *http.Request) []string
}

// TagResolverFunc adapts a function to TagResolver.
type TagResolverFunc func(r *http.Request) []string

// ResolveTags calls f(r).
func (f TagResolverFunc) ResolveTags(r *http.Request) []string { return f(r) }

// HeaderTags reads a comma-separated tag list from header. Repeated headers
// are concatenated.
func HeaderTags(header string) TagResolver {
	return TagResolverFunc(func(r *http.Request) []string {
		var tags []string
		for _, v := range r.Header.Values(header) {
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}
		return tags
	})
}

// ChainTags concatenates the tags of several resolvers, dropping duplicates
// while keeping first-seen order.
func ChainTags(resolvers ...TagResolver) TagResolver {
	return TagResolverFunc(func(r *http.Request) []string {
		var tags []string
		for _, res := range resolvers {
			if res == nil {
				continue
			}
			for _, t := range res.ResolveTags(r) {
				if !slices.Contains(tags, t) {
					tags = append(tags, t)
				}
			}
		}
		return tags
	})
}

// Middleware wraps an http.Handler with chaos injection
type Middleware struct {
	handler  http.Handler
	injector *Injector
	tags     TagResolver
	log      *slog.Logger
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithTagResolver replaces the default header-based tag resolver.
func WithTagResolver(res TagResolver) MiddlewareOption {
	return func(m *Middleware) {
		if res != nil {
			m.tags = res
		}
	}
}

// WithMiddlewareLogger sets the middleware's logger.
func WithMiddlewareLogger(log *slog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		if log != nil {
			m.log = log
		}
	}
}

// NewMiddleware creates a new chaos middleware
func NewMiddleware(handler http.Handler, injector *Injector, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		handler:  handler,
		injector: injector,
		tags:     HeaderTags(TagHeader),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ServeHTTP implements http.Handler with chaos injection.
//
// A fault short-circuits latency. Otherwise the planned delay is awaited and
// the request proceeds; a client that disconnects during the delay gets no
// response.
func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.injector == nil {
		m.handler.ServeHTTP(w, r)
		return
	}

	tags := m.tags.ResolveTags(r)
	if fault := m.injector.GetFaultResponse(r.Method, r.URL.Path, tags); fault != nil {
		m.debug(r, "rendering chaos fault", "kind", fault.Kind, "status", fault.Status, "tags", tags)
		m.renderFault(w, r, fault)
		return
	}

	plan := m.injector.PlanLatency(r.Method, r.URL.Path, tags)
	if !plan.IsZero() {
		m.debug(r, "delaying request", "route", plan.Route, "delay", plan.Delay, "tags", tags)
	}
	if err := m.injector.Execute(r.Context(), plan); err != nil {
		m.log.Debug("client gone during chaos delay", "path", r.URL.Path, "error", err)
		return
	}
	m.handler.ServeHTTP(w, r)
}

// debug logs msg with the request's method, path and path parameters.
func (m *Middleware) debug(r *http.Request, msg string, args ...any) {
	if !m.log.Enabled(r.Context(), slog.LevelDebug) {
		return
	}
	params := m.injector.Registry().Params(r.Method, r.URL.Path)
	m.log.Debug(msg, append([]any{"method", r.Method, "path", r.URL.Path, "params", params}, args...)...)
}

func (m *Middleware) renderFault(w http.ResponseWriter, r *http.Request, fault *FaultResponse) {
	w.Header().Set(FaultHeader, string(fault.Kind))

	switch fault.Kind {
	case FaultConnectionError:
		if conn, _, err := http.NewResponseController(w).Hijack(); err == nil {
			_ = conn.Close()
			return
		}
		WriteFault(w, fault)

	case FaultTimeout:
		if err := wait(r.Context(), fault.Timeout); err != nil {
			return
		}
		WriteFault(w, fault)

	case FaultPartialResponse:
		tw := NewTruncatingWriter(w, fault.TruncatePercent)
		m.handler.ServeHTTP(tw, r)
		if err := tw.Finish(); err != nil {
			m.log.Debug("partial response write failed", "error", err)
		}

	case FaultPayloadCorruption:
		cw := NewCorruptingWriter(w, fault.Corruption, m.injector.source)
		m.handler.ServeHTTP(cw, r)
		if err := cw.Finish(); err != nil {
			m.log.Debug("corrupted response write failed", "error", err)
		}

	default:
		WriteFault(w, fault)
	}
}

// faultBody is the JSON body of a rendered fault.
type faultBody struct {
	Error  string    `json:"error"`
	Kind   FaultKind `json:"kind"`
	Status int       `json:"status"`
}

// WriteFault writes fault as a JSON error response.
func WriteFault(w http.ResponseWriter, fault *FaultResponse) {
	body, _ := json.Marshal(faultBody{Error: fault.Message, Kind: fault.Kind, Status: fault.Status})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(fault.Status)
	_, _ = w.Write(body)
}
