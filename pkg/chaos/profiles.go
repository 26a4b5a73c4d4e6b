// Copyright 2025 Mockd LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chaos

import (
	"slices"
	"sort"
)

// Profile is a pre-built set of chaos behaviour that users can apply to a
// route by name instead of setting individual parameters.
type Profile struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Latency     *LatencyProfile `json:"latency,omitempty"`
	Failure     *FailureProfile `json:"failure,omitempty"`
	Faults      []FaultSpec     `json:"faults,omitempty"`
}

// Apply copies the profile's behaviour onto b, replacing whatever latency,
// failure and fault settings it had.
func (p Profile) Apply(b RouteBinding) RouteBinding {
	b.Latency, b.Failure, b.Faults = nil, nil, nil
	if p.Latency != nil {
		l := p.Latency.Clone()
		b.Latency = &l
	}
	if p.Failure != nil {
		f := p.Failure.Clone()
		b.Failure = &f
	}
	b.Faults = slices.Clone(p.Faults)
	return b
}

func (p Profile) clone() Profile {
	applied := p.Apply(RouteBinding{})
	p.Latency, p.Failure, p.Faults = applied.Latency, applied.Failure, applied.Faults
	return p
}

func latencyPtr(l LatencyProfile) *LatencyProfile { return &l }
func failurePtr(f FailureProfile) *FailureProfile { return &f }

// builtinProfiles holds the service-level presets and the network presets.
var builtinProfiles = map[string]Profile{
	"slow-api": {
		Name:        "slow-api",
		Description: "Simulates slow upstream API",
		Latency:     latencyPtr(UniformLatency(500, 2000)),
	},
	"degraded": {
		Name:        "degraded",
		Description: "Partially degraded service",
		Latency:     latencyPtr(UniformLatency(200, 800)),
		Failure:     failurePtr(NewFailureProfile(0.05, 503)),
	},
	"flaky": {
		Name:        "flaky",
		Description: "Unreliable service with random errors",
		Latency:     latencyPtr(UniformLatency(0, 100)),
		Failure:     failurePtr(NewFailureProfile(0.20, 500, 502, 503)),
	},
	"bursty": {
		Name:        "bursty",
		Description: "Mostly fast responses with an exponential tail (mean 50ms, capped at 1s)",
		Latency:     latencyPtr(ExponentialLatency(0.02).WithMaxMs(1000)),
	},
	"sporadic-slow": {
		Name:        "sporadic-slow",
		Description: "One request in ten stalls for 2-4 seconds",
		Latency:     latencyPtr(UniformLatency(2000, 4000).WithProbability(0.1)),
	},
	"offline": {
		Name:        "offline",
		Description: "Service completely down",
		Failure:     failurePtr(NewFailureProfile(1.0, 503)),
		Faults:      []FaultSpec{{Kind: FaultConnectionError}},
	},
	"timeout": {
		Name:        "timeout",
		Description: "Connection timeout simulation",
		Failure:     failurePtr(NewFailureProfile(1.0)),
		Faults:      []FaultSpec{{Kind: FaultTimeout, DurationMs: 30000}},
	},
	"rate-limited": {
		Name:        "rate-limited",
		Description: "Rate-limited API",
		Latency:     latencyPtr(UniformLatency(50, 200)),
		Failure:     failurePtr(NewFailureProfile(0.30, 429)),
	},
	"mobile-3g": {
		Name:        "mobile-3g",
		Description: "Mobile 3G network conditions",
		Latency:     latencyPtr(UniformLatency(300, 800)),
		Failure:     failurePtr(NewFailureProfile(0.02, 503)),
	},
	"satellite": {
		Name:        "satellite",
		Description: "Satellite internet simulation",
		Latency:     latencyPtr(UniformLatency(600, 2000)),
		Failure:     failurePtr(NewFailureProfile(0.05, 503)),
	},
	"dns-flaky": {
		Name:        "dns-flaky",
		Description: "Intermittent DNS resolution failures",
		Failure:     failurePtr(NewFailureProfile(0.10, 503)),
	},
	"overloaded": {
		Name:        "overloaded",
		Description: "Overloaded server under heavy load",
		Latency:     latencyPtr(UniformLatency(1000, 5000)),
		Failure:     failurePtr(NewFailureProfile(0.15, 500, 502, 503, 504)),
	},
	"corrupted": {
		Name:        "corrupted",
		Description: "Responses occasionally arrive truncated or mangled",
		Failure:     failurePtr(NewFailureProfile(0.10)),
		Faults: []FaultSpec{
			{Kind: FaultPartialResponse, TruncatePercent: 50},
			{Kind: FaultPayloadCorruption, Corruption: CorruptionRandomBytes},
		},
	},

	// Network presets modelled on common link types.
	"perfect": {
		Name:        "perfect",
		Description: "Perfect network with no degradation",
		Latency:     latencyPtr(NewLatencyProfile(0, 0)),
	},
	"5g": {
		Name:        "5g",
		Description: "5G mobile network (10-30ms latency)",
		Latency:     latencyPtr(NormalLatency(20, 5).WithMinMs(10).WithMaxMs(30)),
	},
	"4g": {
		Name:        "4g",
		Description: "4G/LTE mobile network (30-60ms latency)",
		Latency:     latencyPtr(NormalLatency(45, 10).WithMinMs(30).WithMaxMs(70)),
	},
	"3g": {
		Name:        "3g",
		Description: "3G mobile network (100-200ms latency)",
		Latency:     latencyPtr(NormalLatency(150, 30).WithMinMs(100).WithMaxMs(250)),
	},
	"2g": {
		Name:        "2g",
		Description: "2G/EDGE mobile network (300-500ms latency)",
		Latency:     latencyPtr(NormalLatency(400, 80).WithMinMs(300).WithMaxMs(600)),
	},
	"edge": {
		Name:        "edge",
		Description: "EDGE mobile network (500-800ms latency)",
		Latency:     latencyPtr(NormalLatency(650, 120).WithMinMs(500).WithMaxMs(1000)),
	},
	"satellite-leo": {
		Name:        "satellite-leo",
		Description: "LEO satellite (20-40ms latency, occasional spikes)",
		Latency:     latencyPtr(ParetoLatency(30, 2.5).WithMinMs(20).WithMaxMs(150)),
	},
	"satellite-geo": {
		Name:        "satellite-geo",
		Description: "GEO satellite (550-750ms latency)",
		Latency:     latencyPtr(NormalLatency(650, 80).WithMinMs(550).WithMaxMs(850)),
	},
	"congested": {
		Name:        "congested",
		Description: "Congested network (100-500ms latency, high jitter)",
		Latency:     latencyPtr(ParetoLatency(150, 1.8).WithMinMs(100).WithMaxMs(800)),
	},
	"lossy": {
		Name:        "lossy",
		Description: "Lossy network (50-100ms latency, dropped connections)",
		Latency:     latencyPtr(NormalLatency(75, 15).WithMinMs(50).WithMaxMs(120)),
		Failure:     failurePtr(NewFailureProfile(0.20)),
		Faults:      []FaultSpec{{Kind: FaultConnectionError}},
	},
	"high-latency": {
		Name:        "high-latency",
		Description: "High latency network (500-1000ms latency)",
		Latency:     latencyPtr(NormalLatency(750, 150).WithMinMs(500).WithMaxMs(1200)),
	},
	"intermittent": {
		Name:        "intermittent",
		Description: "Intermittent connection (100-300ms latency, frequent drops)",
		Latency:     latencyPtr(NormalLatency(200, 50).WithMinMs(100).WithMaxMs(400)),
		Failure:     failurePtr(NewFailureProfile(0.10)),
		Faults:      []FaultSpec{{Kind: FaultConnectionError}},
	},
	"extremely-poor": {
		Name:        "extremely-poor",
		Description: "Extremely poor network (1000ms+ latency, high loss)",
		Latency:     latencyPtr(ParetoLatency(1000, 1.5).WithMinMs(800).WithMaxMs(3000)),
		Failure:     failurePtr(NewFailureProfile(0.15)),
		Faults:      []FaultSpec{{Kind: FaultConnectionError}, {Kind: FaultTimeout, DurationMs: 10000}},
	},
}

// ListProfiles returns all built-in chaos profiles sorted alphabetically by name.
func ListProfiles() []Profile {
	profiles := make([]Profile, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		profiles = append(profiles, p.clone())
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}

// GetProfile returns a built-in chaos profile by name.
// Returns the profile and true if found, or a zero Profile and false if not.
func GetProfile(name string) (Profile, bool) {
	p, ok := builtinProfiles[name]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// ProfileNames returns the names of all built-in profiles sorted alphabetically.
func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
