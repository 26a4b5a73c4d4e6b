// Package metrics exposes chaos injection activity as Prometheus metrics.
//
// A Metrics value owns its own registry, so several servers (or tests) can
// run side by side without colliding on the global default registry.
//
// # Metrics
//
//   - mockd_chaos_faults_total: Counter of injected faults (labels: route, kind, status)
//   - mockd_chaos_latency_seconds: Histogram of planned delays (labels: route)
//   - mockd_chaos_reloads_total: Counter of registry reloads (labels: result)
//   - mockd_chaos_routes: Gauge of bindings in the active registry
//   - mockd_chaos_requests_total: Counter of requests seen by the HTTP front-end (labels: method, status)
//
// # Usage
//
//	m := metrics.New()
//	inj := chaos.NewInjector(reg, chaos.WithEventSink(m))
//	mux.Handle("/metrics", m.Handler())
package metrics
