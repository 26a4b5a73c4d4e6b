package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
	"github.com/getmockd/mockd-chaos/pkg/config"
	"github.com/getmockd/mockd-chaos/pkg/httputil"
)

// handleHealth handles GET /health.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: a.Uptime(),
		Routes: a.injector.Registry().Len(),
	})
}

// handleStats handles GET /stats.
func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, a.injector.Stats())
}

// handleListRoutes handles GET /routes.
func (a *API) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	bindings := a.injector.Registry().Bindings()
	if bindings == nil {
		bindings = []chaos.RouteBinding{}
	}
	httputil.WriteJSON(w, http.StatusOK, RoutesResponse{Count: len(bindings), Routes: bindings})
}

// handleReload handles POST /reload. An empty body re-reads the route files;
// otherwise the body is a route document (YAML when the Content-Type says so,
// JSON otherwise).
func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	if a.reloader == nil {
		writeError(w, http.StatusNotImplemented, "reload_unavailable", ErrMsgReloadUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}

	var n int
	if len(bytes.TrimSpace(body)) == 0 {
		n, err = a.reloader.Reload()
	} else {
		var f *config.File
		f, err = config.Parse(body, bodyFormat(r))
		if err == nil {
			n, err = a.reloader.Apply(f)
		}
	}

	if err != nil {
		if isConfigError(err) {
			a.log.Warn("reload rejected", "error", err)
			writeError(w, http.StatusBadRequest, "invalid_config", ErrMsgInvalidConfig, configErrorDetails(err)...)
			return
		}
		writeError(w, http.StatusInternalServerError, "reload_failed", sanitizeError(err, a.log, "reload"))
		return
	}

	a.log.Info("routes reloaded via admin API", "routes", n)
	httputil.WriteJSON(w, http.StatusOK, ReloadResponse{Status: "ok", Routes: n})
}

func bodyFormat(r *http.Request) config.Format {
	if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "yaml") {
		return config.FormatYAML
	}
	return config.FormatJSON
}

// handlePreview handles POST /preview.
func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", ErrMsgInvalidJSON)
		return
	}
	if !strings.HasPrefix(req.Path, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "path is required and must start with '/'")
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	p := a.injector.Preview(req.Method, req.Path, req.Tags)
	httputil.WriteJSON(w, http.StatusOK, PreviewResponse{
		Matched: p.Matched,
		Route:   p.Route,
		Inject:  p.Inject,
		Fault:   p.Fault,
		DelayMs: p.Latency.Delay.Milliseconds(),
	})
}

// handleListProfiles handles GET /profiles.
func (a *API) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, chaos.ListProfiles())
}

// handleSchema handles GET /schema.
func (a *API) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(config.SchemaJSON())
}
