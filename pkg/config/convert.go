package config

import (
	"fmt"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

// Binding converts the entry into a route binding. A preset is applied first
// and explicit latency, failure and faults blocks replace the preset's.
func (e RouteEntry) Binding() (chaos.RouteBinding, error) {
	b := chaos.RouteBinding{
		Name: e.Name,
		Key:  chaos.RouteKey{Method: e.MethodOrDefault(), PathPattern: e.Path},
	}
	if e.Preset != "" {
		p, ok := chaos.GetProfile(e.Preset)
		if !ok {
			return chaos.RouteBinding{}, fmt.Errorf("unknown preset %q", e.Preset)
		}
		b = p.Apply(b)
	}
	if e.Latency != nil {
		l := e.Latency.Clone()
		b.Latency = &l
	}
	if e.Failure != nil {
		f := e.Failure.Clone()
		b.Failure = &f
	}
	if e.Faults != nil {
		b.Faults = append([]chaos.FaultSpec(nil), e.Faults...)
	}
	return b, nil
}

// Bindings converts every route, reporting all problems at once.
func (f *File) Bindings() ([]chaos.RouteBinding, error) {
	verr := &ValidationError{}
	bindings := make([]chaos.RouteBinding, 0, len(f.Routes))
	for i, e := range f.Routes {
		path := fmt.Sprintf("routes[%d]", i)
		if e.Source != "" {
			path = fmt.Sprintf("routes[%d]", e.index)
		}

		b, err := e.Binding()
		if err != nil {
			verr.add(e.Source, path+".preset", err.Error())
			continue
		}
		if err := b.Validate(); err != nil {
			verr.add(e.Source, path, err.Error())
			continue
		}
		if _, err := chaos.CompilePath(e.Path); err != nil {
			verr.add(e.Source, path+".path", err.Error())
			continue
		}
		bindings = append(bindings, b)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return bindings, nil
}

// Registry builds a route registry from the file.
func (f *File) Registry() (*chaos.RouteRegistry, error) {
	bindings, err := f.Bindings()
	if err != nil {
		return nil, err
	}
	return chaos.NewRouteRegistry(bindings)
}

// Validate reports every problem in the file without building a registry.
func (f *File) Validate() error {
	_, err := f.Bindings()
	return err
}
