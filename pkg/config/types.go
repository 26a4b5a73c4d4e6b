package config

import (
	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

// CurrentVersion is the route file format version written by mockd-chaos.
const CurrentVersion = "1"

// File is the root of a route file.
type File struct {
	// Version is the file format version ("1" or "1.0").
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Include lists glob patterns of further route files, relative to this file.
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`

	// Routes are evaluated in order; the first match wins.
	Routes []RouteEntry `json:"routes" yaml:"routes"`

	// Sources lists every file read to build this File, the root file first.
	Sources []string `json:"-" yaml:"-"`
}

// RouteEntry configures chaos for one route.
type RouteEntry struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Method defaults to "*" (any method).
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	Path   string `json:"path" yaml:"path"`

	// Preset names a built-in chaos profile. Explicit latency, failure and
	// faults blocks override the preset's.
	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`

	Latency *chaos.LatencyProfile `json:"latency,omitempty" yaml:"latency,omitempty"`
	Failure *chaos.FailureProfile `json:"failure,omitempty" yaml:"failure,omitempty"`
	Faults  []chaos.FaultSpec     `json:"faults,omitempty" yaml:"faults,omitempty"`

	// Response is served by `mockd-chaos serve` when no fault fires.
	Response *Response `json:"response,omitempty" yaml:"response,omitempty"`

	// Source is the file this entry came from.
	Source string `json:"-" yaml:"-"`

	index int // position within Source
}

// Response is a canned mock response.
type Response struct {
	Status  int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// StatusOrDefault returns Status, or 200 when unset.
func (r *Response) StatusOrDefault() int {
	if r == nil || r.Status == 0 {
		return 200
	}
	return r.Status
}

// MethodOrDefault returns Method, or chaos.AnyMethod when unset.
func (e RouteEntry) MethodOrDefault() string {
	if e.Method == "" {
		return chaos.AnyMethod
	}
	return e.Method
}
