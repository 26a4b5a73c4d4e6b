package chaos

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProfiles(t *testing.T) {
	profiles := ListProfiles()
	require.Len(t, profiles, len(builtinProfiles))

	assert.True(t, slices.IsSortedFunc(profiles, func(a, b Profile) int {
		return strings.Compare(a.Name, b.Name)
	}), "profiles must be sorted by name")

	for _, p := range profiles {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Description, "profile %q", p.Name)
		assert.False(t, p.Latency == nil && p.Failure == nil, "profile %q configures nothing", p.Name)
	}
}

func TestListProfilesContainsAllExpected(t *testing.T) {
	expected := []string{
		"bursty",
		"congested",
		"degraded",
		"dns-flaky",
		"flaky",
		"mobile-3g",
		"offline",
		"overloaded",
		"perfect",
		"rate-limited",
		"satellite",
		"satellite-leo",
		"slow-api",
		"sporadic-slow",
		"timeout",
	}

	for _, name := range expected {
		_, ok := GetProfile(name)
		assert.True(t, ok, "expected profile %q", name)
	}
}

func TestProfilesAreValid(t *testing.T) {
	for _, p := range ListProfiles() {
		b := p.Apply(RouteBinding{Key: RouteKey{Method: "*", PathPattern: "/x"}})
		assert.NoError(t, b.Validate(), "profile %q", p.Name)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	_, ok := GetProfile("nonexistent")
	assert.False(t, ok)
}

func TestProfileApply_DeepCopy(t *testing.T) {
	p, _ := GetProfile("flaky")
	b := p.Apply(RouteBinding{Key: RouteKey{Method: "GET", PathPattern: "/a"}})

	b.Failure.DefaultStatusCodes[0] = 999
	b.Latency.Distribution.MaxMs = 1

	again, _ := GetProfile("flaky")
	assert.Equal(t, 500, again.Failure.DefaultStatusCodes[0], "status codes leaked into the built-in profile")
	assert.EqualValues(t, 100, again.Latency.Distribution.MaxMs, "latency leaked into the built-in profile")
}

func TestProfileApply_DeepCopiesLatencyGates(t *testing.T) {
	p, _ := GetProfile("sporadic-slow")
	b := p.Apply(RouteBinding{Key: RouteKey{Method: "GET", PathPattern: "/a"}})
	*b.Latency.Probability = 1

	again, _ := GetProfile("sporadic-slow")
	assert.Equal(t, 0.1, *again.Latency.Probability)
}

func TestProfileApply_Replaces(t *testing.T) {
	f := NewFailureProfile(1.0, 418)
	b := RouteBinding{
		Key:     RouteKey{Method: "GET", PathPattern: "/a"},
		Failure: &f,
		Faults:  []FaultSpec{{Kind: FaultTimeout}},
	}

	p, _ := GetProfile("slow-api")
	got := p.Apply(b)
	assert.Nil(t, got.Failure, "Apply should replace failure settings")
	assert.Nil(t, got.Faults, "Apply should replace fault settings")
	assert.Equal(t, b.Key, got.Key)
}

func TestNetworkProfileBounds(t *testing.T) {
	p, ok := GetProfile("2g")
	require.True(t, ok, "2g profile missing")

	src := NewSeededSource(51)
	for range 500 {
		d := p.Latency.CalculateLatency(nil, src)
		require.True(t, d >= 300*time.Millisecond && d <= 600*time.Millisecond, "2g latency %v outside [300ms, 600ms]", d)
	}
}

func TestBurstyProfile(t *testing.T) {
	p, _ := GetProfile("bursty")
	samples := sampleMs(*p.Latency, nil, trials, 52)
	for _, d := range samples {
		require.LessOrEqual(t, d, time.Second)
	}
	assert.InDelta(t, 50, meanMs(samples), 10)
}

func TestSporadicSlowProfile(t *testing.T) {
	p, _ := GetProfile("sporadic-slow")
	delayed := 0
	for _, d := range sampleMs(*p.Latency, nil, 10*trials, 53) {
		if d > 0 {
			require.GreaterOrEqual(t, d, 2*time.Second)
			delayed++
		}
	}
	assert.InDelta(t, 0.1, float64(delayed)/float64(10*trials), 0.02)
}

func TestProfileNames(t *testing.T) {
	names := ProfileNames()
	require.Len(t, names, len(builtinProfiles))
	assert.True(t, slices.IsSorted(names))
}
