package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/getmockd/mockd-chaos/pkg/httputil"
)

// Middleware enforces l per client address and sets the X-RateLimit headers.
// A nil limiter passes every request through.
func Middleware(l *Limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := l.Allow(l.ClientIP(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.Itoa(int(d.Reset.Seconds())))

		if !d.Allowed {
			h.Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
			httputil.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
