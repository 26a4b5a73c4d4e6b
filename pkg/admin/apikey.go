// API key authentication for the Admin API.

package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is the HTTP header for API key authentication.
const APIKeyHeader = "X-API-Key"

// apiKeyAuth guards the admin API with a static key.
type apiKeyAuth struct {
	key []byte
}

func newAPIKeyAuth(key string) *apiKeyAuth {
	if key == "" {
		return nil
	}
	return &apiKeyAuth{key: []byte(key)}
}

// validate checks if the provided key is valid.
func (a *apiKeyAuth) validate(providedKey string) bool {
	return subtle.ConstantTimeCompare([]byte(providedKey), a.key) == 1
}

// middleware returns an HTTP middleware that enforces API key authentication.
// A nil receiver allows every request.
func (a *apiKeyAuth) middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health check is always exempt
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get(APIKeyHeader)
		if apiKey == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "missing_api_key",
				"API key required. Provide via X-API-Key header or Authorization: Bearer <key>.")
			return
		}
		if !a.validate(apiKey) {
			writeError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
