package admin

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/config"
	"github.com/getmockd/mockd-chaos/pkg/eventlog"
	"github.com/getmockd/mockd-chaos/pkg/httputil"
	"github.com/getmockd/mockd-chaos/pkg/logging"
	"github.com/getmockd/mockd-chaos/pkg/ratelimit"
)

// DefaultMaxBodyBytes caps request bodies accepted by the admin API.
const DefaultMaxBodyBytes = 1 << 20

// Reloader installs new routes. Both methods leave the active routes in place
// when they return an error.
type Reloader interface {
	// Reload re-reads the configured route files.
	Reload() (int, error)
	// Apply installs the routes of an inline document.
	Apply(f *config.File) (int, error)
}

// API is the admin control API.
type API struct {
	injector     *chaos.Injector
	reloader     Reloader
	metrics      http.Handler
	events       *eventlog.Store
	auth         *apiKeyAuth
	limiter      *ratelimit.Limiter
	log          *slog.Logger
	maxBodyBytes int64
	startTime    time.Time
}

// New creates an admin API for inj.
func New(inj *chaos.Injector, opts ...Option) *API {
	a := &API{
		injector:     inj,
		log:          logging.Nop(),
		maxBodyBytes: DefaultMaxBodyBytes,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the API's HTTP handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerRoutes(mux)
	return ratelimit.Middleware(a.limiter, a.auth.middleware(mux))
}

// Uptime returns the API uptime in seconds.
func (a *API) Uptime() int {
	return int(time.Since(a.startTime).Seconds())
}

// Serve serves the API on ln until ctx is done.
func (a *API) Serve(ctx context.Context, ln net.Listener) error {
	return httputil.Serve(ctx, ln, a.Handler(), a.log, "admin API")
}

// ListenAndServe listens on addr and calls Serve.
func (a *API) ListenAndServe(ctx context.Context, addr string) error {
	return httputil.ListenAndServe(ctx, addr, a.Handler(), a.log, "admin API")
}

// RateLimiter returns the configured limiter, or nil.
func (a *API) RateLimiter() *ratelimit.Limiter {
	return a.limiter
}
