package chaos

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternError reports a path template that cannot be compiled.
type PatternError struct {
	Pattern string
	Offset  int
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid path pattern %q at offset %d: %s", e.Pattern, e.Offset, e.Reason)
}

// PathMatcher is a compiled path template.
//
// Templates support:
//   - Literal segments: "/api/v1.0/users" (regex metacharacters are literal)
//   - Named params: "/users/{id}" matches exactly one non-empty segment
//   - Wildcards: "/api/*/health" also matches exactly one segment
//
// Matching is anchored at both ends, so "/users/{id}" does not match
// "/users/1/posts".
type PathMatcher struct {
	pattern string
	re      *regexp.Regexp
	params  []string
}

// segmentPattern matches exactly one path segment.
const segmentPattern = `[^/]+`

// CompilePath compiles a path template into a matcher.
func CompilePath(pattern string) (*PathMatcher, error) {
	var b strings.Builder
	var params []string

	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, &PatternError{Pattern: pattern, Offset: i, Reason: "unterminated '{'"}
			}
			name := pattern[i+1 : i+1+end]
			if name == "" {
				return nil, &PatternError{Pattern: pattern, Offset: i, Reason: "empty parameter name"}
			}
			if strings.ContainsAny(name, "{/") {
				return nil, &PatternError{Pattern: pattern, Offset: i, Reason: fmt.Sprintf("invalid parameter name %q", name)}
			}
			params = append(params, name)
			b.WriteString("(" + segmentPattern + ")")
			i += end + 1
		case '}':
			return nil, &PatternError{Pattern: pattern, Offset: i, Reason: "unmatched '}'"}
		case '*':
			b.WriteString(segmentPattern)
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Offset: 0, Reason: err.Error()}
	}

	return &PathMatcher{pattern: pattern, re: re, params: params}, nil
}

// MustCompilePath is like CompilePath but panics on error.
func MustCompilePath(pattern string) *PathMatcher {
	m, err := CompilePath(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Pattern returns the template the matcher was compiled from.
func (m *PathMatcher) Pattern() string {
	return m.pattern
}

// Match reports whether path matches the template.
func (m *PathMatcher) Match(path string) bool {
	return m.re.MatchString(path)
}

// Params returns the named parameter values captured from path, or nil if the
// path does not match.
func (m *PathMatcher) Params(path string) map[string]string {
	sub := m.re.FindStringSubmatch(path)
	if sub == nil {
		return nil
	}
	out := make(map[string]string, len(m.params))
	for i, name := range m.params {
		out[name] = sub[i+1]
	}
	return out
}

// String implements fmt.Stringer.
func (m *PathMatcher) String() string {
	return m.pattern
}
