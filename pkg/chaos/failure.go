package chaos

import (
	"fmt"
	"slices"
)

const (
	// DefaultFailureStatus is used when no status codes are configured.
	DefaultFailureStatus = 500
	// DefaultFailureMessage is used when no tag config supplies a message.
	DefaultFailureMessage = "Injected failure"
)

// TagFailureConfig overrides the failure behaviour for requests carrying Tag.
type TagFailureConfig struct {
	Tag       string  `json:"tag" yaml:"tag"`
	ErrorRate float64 `json:"errorRate" yaml:"errorRate"`
	// StatusCodes, when empty, makes a matched request fail with
	// DefaultFailureStatus rather than the profile's default codes.
	StatusCodes  []int  `json:"statusCodes,omitempty" yaml:"statusCodes,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// FailureProfile decides whether a request fails and with which status.
type FailureProfile struct {
	Enabled            bool               `json:"enabled" yaml:"enabled"`
	GlobalErrorRate    float64            `json:"globalErrorRate" yaml:"globalErrorRate"`
	IncludeTags        []string           `json:"includeTags,omitempty" yaml:"includeTags,omitempty"`
	ExcludeTags        []string           `json:"excludeTags,omitempty" yaml:"excludeTags,omitempty"`
	TagConfigs         []TagFailureConfig `json:"tagConfigs,omitempty" yaml:"tagConfigs,omitempty"`
	DefaultStatusCodes []int              `json:"defaultStatusCodes,omitempty" yaml:"defaultStatusCodes,omitempty"`
}

// NewFailureProfile returns an enabled profile failing at rate with the given
// status codes.
func NewFailureProfile(rate float64, statusCodes ...int) FailureProfile {
	return FailureProfile{
		Enabled:            true,
		GlobalErrorRate:    rate,
		DefaultStatusCodes: statusCodes,
	}
}

// WithTagConfig appends a per-tag override. Overrides are consulted in the
// order they were added.
func (p FailureProfile) WithTagConfig(cfg TagFailureConfig) FailureProfile {
	p.TagConfigs = append(slices.Clip(p.TagConfigs), cfg)
	return p
}

// WithIncludeTags restricts injection to requests carrying one of tags.
func (p FailureProfile) WithIncludeTags(tags ...string) FailureProfile {
	p.IncludeTags = tags
	return p
}

// WithExcludeTags exempts requests carrying one of tags.
func (p FailureProfile) WithExcludeTags(tags ...string) FailureProfile {
	p.ExcludeTags = tags
	return p
}

// Clone returns a deep copy of the profile.
func (p FailureProfile) Clone() FailureProfile {
	p.IncludeTags = slices.Clone(p.IncludeTags)
	p.ExcludeTags = slices.Clone(p.ExcludeTags)
	p.DefaultStatusCodes = slices.Clone(p.DefaultStatusCodes)
	if p.TagConfigs != nil {
		cfgs := make([]TagFailureConfig, len(p.TagConfigs))
		for i, c := range p.TagConfigs {
			c.StatusCodes = slices.Clone(c.StatusCodes)
			cfgs[i] = c
		}
		p.TagConfigs = cfgs
	}
	return p
}

// Validate checks rates and status codes.
func (p FailureProfile) Validate() error {
	if err := validateProbability(p.GlobalErrorRate, "globalErrorRate"); err != nil {
		return err
	}
	if err := validateStatusCodes(p.DefaultStatusCodes, "defaultStatusCodes"); err != nil {
		return err
	}
	for i, c := range p.TagConfigs {
		if c.Tag == "" {
			return fmt.Errorf("tagConfigs[%d]: %w", i, ErrEmptyTag)
		}
		if err := validateProbability(c.ErrorRate, "errorRate"); err != nil {
			return fmt.Errorf("tagConfigs[%d]: %w", i, err)
		}
		if err := validateStatusCodes(c.StatusCodes, "statusCodes"); err != nil {
			return fmt.Errorf("tagConfigs[%d]: %w", i, err)
		}
	}
	return nil
}

// ShouldInject reports whether a request carrying tags should fail. It draws
// exactly one value from src once the tag filters admit the request.
//
// Exclusion beats inclusion: a request carrying any excluded tag never fails.
// A non-empty IncludeTags list admits only requests carrying one of its tags.
func (p FailureProfile) ShouldInject(tags []string, src Source) bool {
	if !p.Enabled {
		return false
	}
	if containsAny(tags, p.ExcludeTags) {
		return false
	}
	if len(p.IncludeTags) > 0 && !containsAny(tags, p.IncludeTags) {
		return false
	}

	rate := p.GlobalErrorRate
	if c := p.matchTagConfig(tags); c != nil {
		rate = c.ErrorRate
	}
	return sourceOrDefault(src).Float64() < rate
}

// FailureResponse returns the status and message a failing request gets. It
// does not consult ShouldInject, so it doubles as a dry run.
func (p FailureProfile) FailureResponse(tags []string, src Source) (int, string) {
	codes := p.DefaultStatusCodes
	message := DefaultFailureMessage
	if c := p.matchTagConfig(tags); c != nil {
		codes = c.StatusCodes
		if c.ErrorMessage != "" {
			message = c.ErrorMessage
		}
	}

	status := DefaultFailureStatus
	switch len(codes) {
	case 0:
	case 1:
		status = codes[0]
	default:
		status = codes[sourceOrDefault(src).IntN(len(codes))]
	}
	return status, message
}

func (p FailureProfile) matchTagConfig(tags []string) *TagFailureConfig {
	for i := range p.TagConfigs {
		if slices.Contains(tags, p.TagConfigs[i].Tag) {
			return &p.TagConfigs[i]
		}
	}
	return nil
}

func containsAny(tags, set []string) bool {
	for _, t := range set {
		if slices.Contains(tags, t) {
			return true
		}
	}
	return false
}

func validateStatusCodes(codes []int, fieldName string) error {
	for _, c := range codes {
		if err := validateStatusCode(c, fieldName); err != nil {
			return err
		}
	}
	return nil
}
