package chaos

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binding(method, path string) RouteBinding {
	return RouteBinding{Key: RouteKey{Method: method, PathPattern: path}}
}

func TestRouteRegistry_Resolve(t *testing.T) {
	named := binding("GET", "/users/{id}")
	named.Name = "get-user"

	reg, err := NewRouteRegistry([]RouteBinding{
		named,
		binding("get", "/users/admin"),
		binding("POST", "/users"),
		binding("*", "/health"),
		binding("ANY", "/api/*/status"),
		binding("PURGE", "/cache/{key}"),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, reg.Len())

	tests := []struct {
		name   string
		method string
		path   string
		want   string
		found  bool
	}{
		{"param route", "GET", "/users/42", "get-user", true},
		{"first match wins over more specific", "GET", "/users/admin", "get-user", true},
		{"method is case insensitive", "get", "/users/42", "get-user", true},
		{"method mismatch", "DELETE", "/users/42", "", false},
		{"exact post", "POST", "/users", "POST /users", true},
		{"wildcard method", "PATCH", "/health", "* /health", true},
		{"any alias", "GET", "/api/v1/status", "* /api/*/status", true},
		{"extension method", "PURGE", "/cache/abc", "PURGE /cache/{key}", true},
		{"no route", "GET", "/nothing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := reg.Resolve(tt.method, tt.path)
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.want, b.DisplayName())
			}
		})
	}
}

func TestRouteRegistry_RootOnlyMatchesRoot(t *testing.T) {
	reg, err := NewRouteRegistry([]RouteBinding{binding("GET", "/")})
	require.NoError(t, err)

	_, ok := reg.Resolve("GET", "/")
	assert.True(t, ok)
	_, ok = reg.Resolve("GET", "/users")
	assert.False(t, ok)
}

func TestNewRouteRegistry_Errors(t *testing.T) {
	badRate := binding("GET", "/a")
	badRate.Failure = &FailureProfile{Enabled: true, GlobalErrorRate: 1.5}

	badDist := binding("GET", "/a")
	badDist.Latency = &LatencyProfile{Distribution: Distribution{Kind: "weibull"}}

	badFault := binding("GET", "/a")
	badFault.Faults = []FaultSpec{{Kind: "explode"}}

	tests := []struct {
		name    string
		binding RouteBinding
		target  error
	}{
		{"bad rate", badRate, ErrInvalidProbability},
		{"bad distribution", badDist, ErrInvalidDistribution},
		{"bad fault kind", badFault, ErrUnknownFaultKind},
		{"empty method", binding("", "/a"), ErrInvalidMethod},
		{"method with space", binding("GE T", "/a"), ErrInvalidMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouteRegistry([]RouteBinding{binding("GET", "/ok"), tt.binding})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Contains(t, err.Error(), "routes[1]")
		})
	}

	t.Run("bad template", func(t *testing.T) {
		_, err := NewRouteRegistry([]RouteBinding{binding("GET", "/users/{id")})
		var pe *PatternError
		require.True(t, errors.As(err, &pe))
	})

	t.Run("relative path", func(t *testing.T) {
		_, err := NewRouteRegistry([]RouteBinding{binding("GET", "users")})
		var pe *PatternError
		require.True(t, errors.As(err, &pe))
	})
}

func TestRouteRegistry_IsolatedFromCaller(t *testing.T) {
	lat := NewLatencyProfile(100, 0)
	b := binding("GET", "/a")
	b.Latency = &lat
	bindings := []RouteBinding{b}

	reg, err := NewRouteRegistry(bindings)
	require.NoError(t, err)

	lat.BaseMs = 999
	bindings[0].Key.PathPattern = "/changed"

	got, ok := reg.Resolve("GET", "/a")
	require.True(t, ok)
	assert.Equal(t, uint64(100), got.Latency.BaseMs)

	copies := reg.Bindings()
	copies[0].Latency.BaseMs = 1
	got, _ = reg.Resolve("GET", "/a")
	assert.Equal(t, uint64(100), got.Latency.BaseMs)
}

func TestRouteRegistry_Nil(t *testing.T) {
	var reg *RouteRegistry
	_, ok := reg.Resolve("GET", "/")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
	assert.Nil(t, reg.Bindings())
	assert.Nil(t, reg.Params("GET", "/"))
}

func TestRouteRegistry_ParamsFollowFirstMatch(t *testing.T) {
	reg, err := NewRouteRegistry([]RouteBinding{
		binding("GET", "/users/{id}"),
		binding("*", "/users/{name}"),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"id": "7"}, reg.Params("get", "/users/7"))
	assert.Equal(t, map[string]string{"name": "7"}, reg.Params("DELETE", "/users/7"))
	assert.Nil(t, reg.Params("GET", "/orders/7"))
}
