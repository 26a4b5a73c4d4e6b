package chaos

import (
	"fmt"
	"slices"
	"strings"
)

// RouteKey identifies the requests a binding applies to.
type RouteKey struct {
	Method      string `json:"method" yaml:"method"`
	PathPattern string `json:"path" yaml:"path"`
}

func (k RouteKey) String() string {
	return k.Method + " " + k.PathPattern
}

// RouteBinding attaches chaos behaviour to a route.
type RouteBinding struct {
	Name    string          `json:"name,omitempty" yaml:"name,omitempty"`
	Key     RouteKey        `json:"route" yaml:"route"`
	Latency *LatencyProfile `json:"latency,omitempty" yaml:"latency,omitempty"`
	Failure *FailureProfile `json:"failure,omitempty" yaml:"failure,omitempty"`
	Faults  []FaultSpec     `json:"faults,omitempty" yaml:"faults,omitempty"`
}

// DisplayName returns Name, or the route key when Name is empty.
func (b RouteBinding) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.Key.String()
}

// Clone returns a deep copy of the binding.
func (b RouteBinding) Clone() RouteBinding {
	if b.Latency != nil {
		l := b.Latency.Clone()
		b.Latency = &l
	}
	if b.Failure != nil {
		f := b.Failure.Clone()
		b.Failure = &f
	}
	b.Faults = slices.Clone(b.Faults)
	return b
}

// Validate checks the binding without compiling its path.
func (b RouteBinding) Validate() error {
	if _, err := normalizeMethod(b.Key.Method); err != nil {
		return fmt.Errorf("method: %w", err)
	}
	if !strings.HasPrefix(b.Key.PathPattern, "/") {
		return &PatternError{Pattern: b.Key.PathPattern, Reason: "must start with '/'"}
	}
	if b.Latency != nil {
		if err := b.Latency.Validate(); err != nil {
			return fmt.Errorf("latency: %w", err)
		}
	}
	if b.Failure != nil {
		if err := b.Failure.Validate(); err != nil {
			return fmt.Errorf("failure: %w", err)
		}
	}
	for i, f := range b.Faults {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("faults[%d]: %w", i, err)
		}
	}
	return nil
}

type compiledRoute struct {
	binding RouteBinding
	method  string
	matcher *PathMatcher
}

func (r *compiledRoute) matches(method, path string) bool {
	if r.method != AnyMethod && r.method != method {
		return false
	}
	return r.matcher.Match(path)
}

// RouteRegistry is an immutable, ordered set of route bindings. It is safe for
// concurrent use.
type RouteRegistry struct {
	routes []compiledRoute
}

// NewRouteRegistry validates and compiles bindings. The registry keeps its own
// copy, so callers may reuse the slice afterwards.
func NewRouteRegistry(bindings []RouteBinding) (*RouteRegistry, error) {
	routes := make([]compiledRoute, 0, len(bindings))
	for i, b := range bindings {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("routes[%d] %s: %w", i, b.DisplayName(), err)
		}
		method, _ := normalizeMethod(b.Key.Method)
		matcher, err := CompilePath(b.Key.PathPattern)
		if err != nil {
			return nil, fmt.Errorf("routes[%d] %s: %w", i, b.DisplayName(), err)
		}
		cb := b.Clone()
		cb.Key.Method = method
		routes = append(routes, compiledRoute{binding: cb, method: method, matcher: matcher})
	}
	return &RouteRegistry{routes: routes}, nil
}

// EmptyRegistry returns a registry with no bindings.
func EmptyRegistry() *RouteRegistry {
	return &RouteRegistry{}
}

// Resolve returns the first binding, in registration order, whose method and
// path template match. The returned binding must not be modified.
func (r *RouteRegistry) Resolve(method, path string) (*RouteBinding, bool) {
	if r == nil {
		return nil, false
	}
	method = strings.ToUpper(method)
	for i := range r.routes {
		if r.routes[i].matches(method, path) {
			return &r.routes[i].binding, true
		}
	}
	return nil, false
}

// Params returns the path parameters captured by the route that Resolve would
// pick, or nil when no route matches.
func (r *RouteRegistry) Params(method, path string) map[string]string {
	if r == nil {
		return nil
	}
	method = strings.ToUpper(method)
	for i := range r.routes {
		if r.routes[i].matches(method, path) {
			return r.routes[i].matcher.Params(path)
		}
	}
	return nil
}

// Bindings returns a copy of the bindings in registration order.
func (r *RouteRegistry) Bindings() []RouteBinding {
	if r == nil {
		return nil
	}
	out := make([]RouteBinding, len(r.routes))
	for i := range r.routes {
		out[i] = r.routes[i].binding.Clone()
	}
	return out
}

// Len returns the number of bindings.
func (r *RouteRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.routes)
}
