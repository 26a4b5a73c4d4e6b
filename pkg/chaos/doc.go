// Package chaos injects latency and faults into mocked API traffic.
//
// A RouteRegistry binds chaos behaviour to routes. Each binding carries a
// method and a path template plus optional profiles:
//
//   - LatencyProfile: how long to delay a request (fixed, normal, pareto,
//     exponential or uniform, with jitter, bounds and per-tag overrides)
//   - FailureProfile: whether a request fails and with which status, with
//     global and per-tag error rates and include/exclude tag filters
//   - Faults: how a failure manifests (HTTP error, dropped connection,
//     timeout, truncated body or corrupted body)
//
// Path templates use {name} for a single named segment and * for a single
// anonymous segment:
//
//	/users/{id}          matches /users/42
//	/api/*/health        matches /api/v2/health
//	/files/{name}.json   matches /files/report.json
//
// Bindings are matched in registration order and the first match wins.
//
// # Injector
//
// An Injector evaluates requests against the current registry:
//
//	reg, err := chaos.NewRouteRegistry([]chaos.RouteBinding{{
//	    Key:     chaos.RouteKey{Method: "GET", PathPattern: "/users/{id}"},
//	    Latency: &lat,
//	    Failure: &fail,
//	}})
//	inj := chaos.NewInjector(reg, chaos.WithLogger(logger))
//
//	if fault := inj.GetFaultResponse("GET", "/users/7", tags); fault != nil {
//	    // render fault
//	}
//	if err := inj.InjectLatency(ctx, "GET", "/users/7", tags); err != nil {
//	    // ctx was cancelled during the delay
//	}
//
// All random decisions are made synchronously; the only blocking call is
// Execute (or InjectLatency), which honours context cancellation. Replacing
// the registry with Swap is atomic and never blocks readers.
//
// # HTTP
//
// Middleware applies an Injector to an http.Handler. Tags come from the
// X-Chaos-Tags header unless a TagResolver is supplied.
package chaos
