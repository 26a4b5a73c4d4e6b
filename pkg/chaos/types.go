package chaos

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors. Every error returned while building a registry wraps
// one of these.
var (
	ErrInvalidDistribution = errors.New("invalid latency distribution")
	ErrInvalidProbability  = errors.New("invalid probability")
	ErrInvalidStatusCode   = errors.New("invalid status code")
	ErrUnknownFaultKind    = errors.New("unknown fault kind")
	ErrInvalidMethod       = errors.New("invalid method")
	ErrEmptyTag            = errors.New("tag must not be empty")
)

// AnyMethod matches every request method when used in a RouteKey.
const AnyMethod = "*"

// ChaosStats is a point-in-time snapshot of injector counters.
type ChaosStats struct {
	TotalRequests   int64               `json:"totalRequests"`
	InjectedFaults  int64               `json:"injectedFaults"`
	FaultsByKind    map[FaultKind]int64 `json:"faultsByKind"`
	LatencyInjected int64               `json:"latencyInjected"`
	Unmatched       int64               `json:"unmatched"`
}

// validateProbability checks that a probability value is in the valid range [0.0, 1.0].
func validateProbability(value float64, fieldName string) error {
	if !(value >= 0.0 && value <= 1.0) {
		return fmt.Errorf("%w: %s must be between 0.0 and 1.0, got %v", ErrInvalidProbability, fieldName, value)
	}
	return nil
}

func validateStatusCode(code int, fieldName string) error {
	if code < 100 || code > 599 {
		return fmt.Errorf("%w: %s must be between 100 and 599, got %d", ErrInvalidStatusCode, fieldName, code)
	}
	return nil
}

// normalizeMethod upper-cases an HTTP method and maps "ANY" to AnyMethod.
// Methods must be HTTP tokens; extension methods are accepted.
func normalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case "":
		return "", fmt.Errorf("%w: empty", ErrInvalidMethod)
	case AnyMethod, "ANY":
		return AnyMethod, nil
	}
	for i := 0; i < len(m); i++ {
		if !isTokenChar(m[i]) {
			return "", fmt.Errorf("%w: %q", ErrInvalidMethod, method)
		}
	}
	return m, nil
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
