package chaos

import (
	"fmt"
	"strconv"
	"time"
)

// FaultKind identifies how an injected failure manifests on the wire.
type FaultKind string

const (
	// FaultHTTPError responds with an error status and JSON body.
	FaultHTTPError FaultKind = "http_error"
	// FaultConnectionError drops the connection without a response.
	FaultConnectionError FaultKind = "connection_error"
	// FaultTimeout holds the request and then responds 504.
	FaultTimeout FaultKind = "timeout"
	// FaultPartialResponse truncates the real response body.
	FaultPartialResponse FaultKind = "partial_response"
	// FaultPayloadCorruption mangles the real response body.
	FaultPayloadCorruption FaultKind = "payload_corruption"
)

var faultKinds = [...]FaultKind{
	FaultHTTPError,
	FaultConnectionError,
	FaultTimeout,
	FaultPartialResponse,
	FaultPayloadCorruption,
}

// FaultKinds returns every supported kind in a stable order.
func FaultKinds() []FaultKind {
	return append([]FaultKind(nil), faultKinds[:]...)
}

func (k FaultKind) valid() bool {
	return kindIndex(k) >= 0
}

func kindIndex(k FaultKind) int {
	for idx, kk := range faultKinds {
		if kk == k {
			return idx
		}
	}
	return -1
}

// CorruptionType selects how FaultPayloadCorruption mangles a body.
type CorruptionType string

const (
	// CorruptionRandomBytes overwrites about 10% of the bytes.
	CorruptionRandomBytes CorruptionType = "random_bytes"
	// CorruptionTruncate cuts the body at 50-90% of its length.
	CorruptionTruncate CorruptionType = "truncate"
	// CorruptionBitFlip flips one bit in about 10% of the bytes.
	CorruptionBitFlip CorruptionType = "bit_flip"
	// CorruptionNone leaves the body intact.
	CorruptionNone CorruptionType = "none"
)

const (
	defaultTimeoutMs       = 30000
	defaultTruncatePercent = 50
)

// FaultSpec is one entry in a route's fault catalogue. Only the fields
// belonging to Kind are read.
type FaultSpec struct {
	Kind FaultKind `json:"type" yaml:"type"`

	// StatusCode overrides the failure profile's status for http_error.
	StatusCode int `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	// Message replaces the default message for any kind.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	DurationMs      uint64         `json:"durationMs,omitempty" yaml:"durationMs,omitempty"`
	TruncatePercent float64        `json:"truncatePercent,omitempty" yaml:"truncatePercent,omitempty"`
	Corruption      CorruptionType `json:"corruptionType,omitempty" yaml:"corruptionType,omitempty"`
}

// Validate checks the fault parameters.
func (f FaultSpec) Validate() error {
	if !f.Kind.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFaultKind, f.Kind)
	}
	if f.StatusCode != 0 {
		if err := validateStatusCode(f.StatusCode, "statusCode"); err != nil {
			return err
		}
	}
	if !isFinite(f.TruncatePercent) || f.TruncatePercent < 0 || f.TruncatePercent > 100 {
		return fmt.Errorf("truncatePercent must be between 0 and 100, got %v", f.TruncatePercent)
	}
	switch f.Corruption {
	case "", CorruptionRandomBytes, CorruptionTruncate, CorruptionBitFlip, CorruptionNone:
	default:
		return fmt.Errorf("%w: corruptionType %q", ErrUnknownFaultKind, f.Corruption)
	}
	return nil
}

func (f FaultSpec) timeout() time.Duration {
	if f.DurationMs == 0 {
		return defaultTimeoutMs * time.Millisecond
	}
	return msToDuration(f.DurationMs)
}

func (f FaultSpec) truncatePercent() float64 {
	if f.TruncatePercent == 0 {
		return defaultTruncatePercent
	}
	return f.TruncatePercent
}

func (f FaultSpec) corruption() CorruptionType {
	if f.Corruption == "" {
		return CorruptionRandomBytes
	}
	return f.Corruption
}

// FaultResponse is the outcome of a failed injection decision. Front-ends
// render it according to Kind; the trailing fields carry the kind's
// parameters.
type FaultResponse struct {
	Status  int       `json:"status"`
	Message string    `json:"message"`
	Kind    FaultKind `json:"kind"`

	Timeout         time.Duration  `json:"timeout,omitempty"`
	TruncatePercent float64        `json:"truncatePercent,omitempty"`
	Corruption      CorruptionType `json:"corruptionType,omitempty"`
}

// resolve builds the response for this fault given what the failure profile
// decided.
func (f FaultSpec) resolve(status int, message string) *FaultResponse {
	resp := &FaultResponse{Kind: f.Kind}
	switch f.Kind {
	case FaultConnectionError:
		resp.Status = 503
		resp.Message = "Connection error"
	case FaultTimeout:
		resp.Timeout = f.timeout()
		resp.Status = 504
		resp.Message = fmt.Sprintf("Request timeout after %dms", resp.Timeout.Milliseconds())
	case FaultPartialResponse:
		resp.TruncatePercent = f.truncatePercent()
		resp.Status = 200
		resp.Message = "Partial response (truncated at " + strconv.FormatFloat(resp.TruncatePercent, 'f', -1, 64) + "%)"
	case FaultPayloadCorruption:
		resp.Corruption = f.corruption()
		resp.Status = 200
		resp.Message = fmt.Sprintf("Payload corruption (%s)", resp.Corruption)
	default:
		resp.Kind = FaultHTTPError
		resp.Status = status
		resp.Message = message
		if f.StatusCode != 0 {
			resp.Status = f.StatusCode
			if message == DefaultFailureMessage {
				resp.Message = fmt.Sprintf("Injected HTTP error %d", f.StatusCode)
			}
		}
	}
	if f.Message != "" {
		resp.Message = f.Message
	}
	return resp
}
