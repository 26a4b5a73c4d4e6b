package chaos

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// DistributionKind selects how a LatencyProfile samples its delay.
type DistributionKind string

const (
	// DistributionFixed always yields the profile's base latency.
	DistributionFixed DistributionKind = "fixed"
	// DistributionNormal samples a Gaussian around MeanMs.
	DistributionNormal DistributionKind = "normal"
	// DistributionPareto samples a heavy tail scaled by the base latency.
	DistributionPareto DistributionKind = "pareto"
	// DistributionExponential samples with mean 1/Lambda milliseconds.
	DistributionExponential DistributionKind = "exponential"
	// DistributionUniform samples uniformly between MinMs and MaxMs.
	DistributionUniform DistributionKind = "uniform"
)

// Distribution is the sampling strategy of a LatencyProfile. Only the fields
// belonging to Kind are read; an empty Kind behaves as fixed.
type Distribution struct {
	Kind DistributionKind `json:"type" yaml:"type"`

	// Normal
	MeanMs   float64 `json:"meanMs,omitempty" yaml:"meanMs,omitempty"`
	StdDevMs float64 `json:"stdDevMs,omitempty" yaml:"stdDevMs,omitempty"`

	// Pareto
	Shape float64 `json:"shape,omitempty" yaml:"shape,omitempty"`

	// Exponential. Lambda is a rate per millisecond.
	Lambda float64 `json:"lambda,omitempty" yaml:"lambda,omitempty"`

	// Uniform
	MinMs uint64 `json:"minMs,omitempty" yaml:"minMs,omitempty"`
	MaxMs uint64 `json:"maxMs,omitempty" yaml:"maxMs,omitempty"`
}

// Fixed returns the fixed distribution.
func Fixed() Distribution { return Distribution{Kind: DistributionFixed} }

// Normal returns a Gaussian distribution.
func Normal(meanMs, stdDevMs float64) Distribution {
	return Distribution{Kind: DistributionNormal, MeanMs: meanMs, StdDevMs: stdDevMs}
}

// Pareto returns a Pareto distribution scaled by the profile's base latency.
func Pareto(shape float64) Distribution {
	return Distribution{Kind: DistributionPareto, Shape: shape}
}

// Exponential returns an exponential distribution with the given rate.
func Exponential(lambda float64) Distribution {
	return Distribution{Kind: DistributionExponential, Lambda: lambda}
}

// Uniform returns a uniform distribution over [minMs, maxMs]. The bounds may be
// given in either order.
func Uniform(minMs, maxMs uint64) Distribution {
	return Distribution{Kind: DistributionUniform, MinMs: minMs, MaxMs: maxMs}
}

func (d Distribution) kind() DistributionKind {
	if d.Kind == "" {
		return DistributionFixed
	}
	return d.Kind
}

// String returns a short human-readable form, e.g. "normal(mean=400, std=80)".
func (d Distribution) String() string {
	switch d.kind() {
	case DistributionNormal:
		return fmt.Sprintf("normal(mean=%g, std=%g)", d.MeanMs, d.StdDevMs)
	case DistributionPareto:
		return fmt.Sprintf("pareto(shape=%g)", d.Shape)
	case DistributionExponential:
		return fmt.Sprintf("exponential(lambda=%g)", d.Lambda)
	case DistributionUniform:
		return fmt.Sprintf("uniform(%d..%d)", d.MinMs, d.MaxMs)
	default:
		return string(d.kind())
	}
}

// Validate checks the parameters of the distribution.
func (d Distribution) Validate() error {
	switch d.kind() {
	case DistributionFixed, DistributionUniform:
		return nil
	case DistributionNormal:
		if !isFinite(d.MeanMs) {
			return fmt.Errorf("%w: normal meanMs must be finite, got %v", ErrInvalidDistribution, d.MeanMs)
		}
		if !isFinite(d.StdDevMs) || d.StdDevMs < 0 {
			return fmt.Errorf("%w: normal stdDevMs must be >= 0, got %v", ErrInvalidDistribution, d.StdDevMs)
		}
		return nil
	case DistributionPareto:
		if !isFinite(d.Shape) || d.Shape <= 0 {
			return fmt.Errorf("%w: pareto shape must be > 0, got %v", ErrInvalidDistribution, d.Shape)
		}
		return nil
	case DistributionExponential:
		if !isFinite(d.Lambda) || d.Lambda <= 0 {
			return fmt.Errorf("%w: exponential lambda must be > 0, got %v", ErrInvalidDistribution, d.Lambda)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown distribution %q", ErrInvalidDistribution, d.Kind)
	}
}

// TagOverride forces a fixed latency for requests carrying Tag.
type TagOverride struct {
	Tag     string `json:"tag" yaml:"tag"`
	FixedMs uint64 `json:"fixedMs" yaml:"fixedMs"`
}

// LatencyProfile describes how long a request should be delayed.
//
// The zero value yields no delay. Profiles are values: the With* builders
// return modified copies and never mutate the receiver.
//
// Enabled and Probability gate the whole profile, tag overrides included. A
// nil Enabled means enabled and a nil Probability means every request.
type LatencyProfile struct {
	Enabled     *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`

	BaseMs   uint64 `json:"baseMs" yaml:"baseMs"`
	JitterMs uint64 `json:"jitterMs,omitempty" yaml:"jitterMs,omitempty"`

	// JitterPercent spreads the sampled value by up to this percentage in
	// either direction. It applies to every distribution.
	JitterPercent float64 `json:"jitterPercent,omitempty" yaml:"jitterPercent,omitempty"`

	Distribution Distribution  `json:"distribution" yaml:"distribution"`
	MinMs        *uint64       `json:"minMs,omitempty" yaml:"minMs,omitempty"`
	MaxMs        *uint64       `json:"maxMs,omitempty" yaml:"maxMs,omitempty"`
	TagOverrides []TagOverride `json:"tagOverrides,omitempty" yaml:"tagOverrides,omitempty"`
}

// NewLatencyProfile returns a fixed profile of baseMs ± jitterMs.
func NewLatencyProfile(baseMs, jitterMs uint64) LatencyProfile {
	return LatencyProfile{BaseMs: baseMs, JitterMs: jitterMs, Distribution: Fixed()}
}

// NormalLatency returns a Gaussian profile centred on meanMs.
func NormalLatency(meanMs, stdDevMs float64) LatencyProfile {
	return LatencyProfile{BaseMs: floatToMs(meanMs), Distribution: Normal(meanMs, stdDevMs)}
}

// ParetoLatency returns a heavy-tailed profile whose minimum is baseMs.
func ParetoLatency(baseMs uint64, shape float64) LatencyProfile {
	return LatencyProfile{BaseMs: baseMs, Distribution: Pareto(shape)}
}

// ExponentialLatency returns an exponential profile with mean 1/lambda ms.
func ExponentialLatency(lambda float64) LatencyProfile {
	return LatencyProfile{Distribution: Exponential(lambda)}
}

// UniformLatency returns a profile drawn uniformly from [minMs, maxMs].
func UniformLatency(minMs, maxMs uint64) LatencyProfile {
	return LatencyProfile{BaseMs: minMs, Distribution: Uniform(minMs, maxMs)}
}

// WithEnabled switches the profile on or off.
func (p LatencyProfile) WithEnabled(enabled bool) LatencyProfile {
	p.Enabled = &enabled
	return p
}

// WithProbability delays only this fraction of requests.
func (p LatencyProfile) WithProbability(prob float64) LatencyProfile {
	p.Probability = &prob
	return p
}

// IsEnabled reports whether the profile delays anything at all.
func (p LatencyProfile) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

func (p LatencyProfile) probability() float64 {
	if p.Probability == nil {
		return 1
	}
	return *p.Probability
}

// WithMinMs sets a lower bound on the computed latency.
func (p LatencyProfile) WithMinMs(ms uint64) LatencyProfile {
	p.MinMs = &ms
	return p
}

// WithMaxMs sets an upper bound on the computed latency.
func (p LatencyProfile) WithMaxMs(ms uint64) LatencyProfile {
	p.MaxMs = &ms
	return p
}

// WithDistribution replaces the sampling distribution.
func (p LatencyProfile) WithDistribution(d Distribution) LatencyProfile {
	p.Distribution = d
	return p
}

// WithJitterPercent sets a proportional jitter.
func (p LatencyProfile) WithJitterPercent(pct float64) LatencyProfile {
	p.JitterPercent = pct
	return p
}

// WithTagOverride appends a fixed latency for tag. Overrides are consulted in
// the order they were added.
func (p LatencyProfile) WithTagOverride(tag string, fixedMs uint64) LatencyProfile {
	p.TagOverrides = append(slices.Clip(p.TagOverrides), TagOverride{Tag: tag, FixedMs: fixedMs})
	return p
}

// Clone returns a deep copy of the profile.
func (p LatencyProfile) Clone() LatencyProfile {
	if p.Enabled != nil {
		v := *p.Enabled
		p.Enabled = &v
	}
	if p.Probability != nil {
		v := *p.Probability
		p.Probability = &v
	}
	if p.MinMs != nil {
		v := *p.MinMs
		p.MinMs = &v
	}
	if p.MaxMs != nil {
		v := *p.MaxMs
		p.MaxMs = &v
	}
	p.TagOverrides = slices.Clone(p.TagOverrides)
	return p
}

// Validate checks the profile for configuration errors.
func (p LatencyProfile) Validate() error {
	if err := validateProbability(p.probability(), "probability"); err != nil {
		return err
	}
	if err := p.Distribution.Validate(); err != nil {
		return fmt.Errorf("distribution: %w", err)
	}
	if !isFinite(p.JitterPercent) || p.JitterPercent < 0 || p.JitterPercent > 100 {
		return fmt.Errorf("%w: jitterPercent must be between 0 and 100, got %v", ErrInvalidDistribution, p.JitterPercent)
	}
	for i, o := range p.TagOverrides {
		if o.Tag == "" {
			return fmt.Errorf("tagOverrides[%d]: %w", i, ErrEmptyTag)
		}
	}
	return nil
}

// CalculateLatency computes the delay for a request carrying tags. All
// randomness comes from src; a nil src uses DefaultSource.
//
// A disabled profile yields zero, and so does a request that loses the
// Probability roll. The first tag override (in configured order) whose tag is
// present wins outright. Otherwise the distribution is sampled, jitter is applied, and the
// result is clamped to MinMs and then MaxMs, so MaxMs wins when the bounds
// cross.
func (p LatencyProfile) CalculateLatency(tags []string, src Source) time.Duration {
	return msToDuration(p.calculateMs(tags, sourceOrDefault(src)))
}

func (p LatencyProfile) calculateMs(tags []string, src Source) uint64 {
	if !p.IsEnabled() {
		return 0
	}
	if prob := p.probability(); prob < 1 && src.Float64() >= prob {
		return 0
	}
	for _, o := range p.TagOverrides {
		if slices.Contains(tags, o.Tag) {
			return o.FixedMs
		}
	}

	ms := p.applyJitter(p.sample(src), src)

	if p.MinMs != nil && ms < *p.MinMs {
		ms = *p.MinMs
	}
	if p.MaxMs != nil && ms > *p.MaxMs {
		ms = *p.MaxMs
	}
	return ms
}

func (p LatencyProfile) sample(src Source) uint64 {
	d := p.Distribution
	switch d.kind() {
	case DistributionFixed:
		return p.BaseMs
	case DistributionNormal:
		// Box-Muller; u1 is shifted into (0, 1] so the log is finite.
		u1 := 1 - src.Float64()
		u2 := src.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
		return floatToMs(d.MeanMs + d.StdDevMs*z)
	case DistributionPareto:
		if d.Shape <= 0 {
			return p.BaseMs
		}
		u := src.Float64()
		return floatToMs(float64(p.BaseMs) * math.Pow(1-u, -1/d.Shape))
	case DistributionExponential:
		if d.Lambda <= 0 {
			return 0
		}
		u := src.Float64()
		return floatToMs(-math.Log(1-u) / d.Lambda)
	case DistributionUniform:
		return uniformUint64(src, d.MinMs, d.MaxMs)
	default:
		return p.BaseMs
	}
}

func (p LatencyProfile) applyJitter(ms uint64, src Source) uint64 {
	var span uint64
	if p.Distribution.kind() == DistributionFixed {
		span = p.JitterMs
	}
	if p.JitterPercent > 0 {
		span += floatToMs(float64(ms) * p.JitterPercent / 100)
	}
	if span == 0 {
		return ms
	}

	offset := uniformUint64(src, 0, span)
	if src.Float64() < 0.5 {
		if offset >= maxDelayMs || ms > maxDelayMs-offset {
			return maxDelayMs
		}
		return ms + offset
	}
	if offset > ms {
		return 0
	}
	return ms - offset
}

// maxDelayMs is the largest delay representable as a time.Duration.
const maxDelayMs = uint64(math.MaxInt64 / int64(time.Millisecond))

// floatToMs truncates v to whole milliseconds, mapping NaN and negatives to
// zero and saturating at maxDelayMs.
func floatToMs(v float64) uint64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(maxDelayMs):
		return maxDelayMs
	default:
		return uint64(v)
	}
}

func msToDuration(ms uint64) time.Duration {
	if ms > maxDelayMs {
		ms = maxDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
