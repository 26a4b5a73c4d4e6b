// Option functions for configuring API.

package admin

import (
	"log/slog"
	"net/http"

	"github.com/getmockd/mockd-chaos/pkg/eventlog"
	"github.com/getmockd/mockd-chaos/pkg/ratelimit"
)

// Option configures an API.
type Option func(*API)

// WithLogger sets the API's logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithReloader enables POST /reload.
func WithReloader(r Reloader) Option {
	return func(a *API) {
		a.reloader = r
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) {
		a.metrics = h
	}
}

// WithAPIKey requires key on every endpoint except /health.
// An empty key disables authentication.
func WithAPIKey(key string) Option {
	return func(a *API) {
		a.auth = newAPIKeyAuth(key)
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithEventLog enables the /events endpoints backed by log.
func WithEventLog(log *eventlog.Store) Option {
	return func(a *API) {
		a.events = log
	}
}

// WithRateLimit limits requests per client address.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return func(a *API) {
		a.limiter = l
	}
}
