// Package eventlog keeps recent chaos injection events for inspection.
//
// A Store is a chaos.EventSink backed by a fixed-size ring. The admin API
// lists it with filters and streams new events to subscribers. It is
// distinct from operational logging, which uses log/slog.
//
//	log := eventlog.New(1000)
//	inj := chaos.NewInjector(reg, chaos.WithEventSink(log))
//	...
//	recent := log.List(&eventlog.Filter{Kind: chaos.FaultTimeout, Limit: 20})
package eventlog
