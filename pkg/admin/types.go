package admin

import (
	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int    `json:"uptime"` // seconds
	Routes int    `json:"routes"`
}

// RoutesResponse is returned by GET /routes.
type RoutesResponse struct {
	Count  int                  `json:"count"`
	Routes []chaos.RouteBinding `json:"routes"`
}

// ReloadResponse is returned by a successful POST /reload.
type ReloadResponse struct {
	Status string `json:"status"`
	Routes int    `json:"routes"`
}

// PreviewRequest is the body of POST /preview. Method defaults to GET.
type PreviewRequest struct {
	Method string   `json:"method,omitempty"`
	Path   string   `json:"path"`
	Tags   []string `json:"tags,omitempty"`
}

// PreviewResponse describes what the injector would do to a request.
type PreviewResponse struct {
	Matched bool                 `json:"matched"`
	Route   string               `json:"route,omitempty"`
	Inject  bool                 `json:"inject"`
	Fault   *chaos.FaultResponse `json:"fault,omitempty"`
	DelayMs int64                `json:"delayMs"`
}
