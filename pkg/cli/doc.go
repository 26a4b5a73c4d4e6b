// Package cli provides the mockd-chaos command-line interface.
//
// Commands:
//   - serve: serve mock routes with per-route latency and fault injection,
//     plus the admin API, Prometheus metrics and an optional gRPC listener
//   - validate: check route files without serving them
//   - preview: show the chaos a request would get, optionally sampled many times
//   - profiles: list the built-in presets or show one
//   - schema: print the JSON Schema for route files
//   - version: show build information
//
// Every command accepts --json for machine-readable output.
package cli
