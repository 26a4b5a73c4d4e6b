// Package admin provides the HTTP control API of mockd-chaos.
//
// Endpoints:
//
//	GET  /health    liveness, uptime and active route count
//	GET  /routes    active route bindings in match order
//	POST /reload    re-read route files, or install the routes in the body
//	POST /preview   dry-run a request through the injector
//	GET  /stats     injector counters
//	GET  /profiles  built-in chaos presets
//	GET  /schema    JSON Schema for route files
//	GET  /metrics   Prometheus metrics, when configured
//
// With an event log configured:
//
//	GET    /events         recent injections, newest first
//	DELETE /events         clear the event log
//	GET    /events/stream  new injections as server-sent events
//
// A rejected reload answers 400 and leaves the active routes untouched.
// When an API key is configured every endpoint except /health requires it.
// A rate limiter, when configured, applies to every endpoint.
package admin
