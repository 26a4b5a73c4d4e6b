// Route registration for the Admin API.

package admin

import (
	"net/http"
)

// registerRoutes sets up all API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /stats", a.handleStats)

	// Routes and reloads
	mux.HandleFunc("GET /routes", a.handleListRoutes)
	mux.HandleFunc("POST /reload", a.handleReload)
	mux.HandleFunc("POST /preview", a.handlePreview)

	// Reference data
	mux.HandleFunc("GET /profiles", a.handleListProfiles)
	mux.HandleFunc("GET /schema", a.handleSchema)

	if a.events != nil {
		mux.HandleFunc("GET /events", a.handleListEvents)
		mux.HandleFunc("DELETE /events", a.handleClearEvents)
		mux.HandleFunc("GET /events/stream", a.handleStreamEvents)
	}
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics)
	}
}
