package comments

import (
	"fmt"
	"regexp"
)

// DefaultMinLength is the minimum cleaned text length for a comment to be
// considered significant.
const DefaultMinLength = 10

// DefaultIgnorePatterns match directive-style comments that are never
// worth sending to the model: task markers, lint suppressions, formatter
// directives, generated-code banners.
var DefaultIgnorePatterns = []string{
	`^\s*(todo|fixme|xxx|hack|note)\b`,
	`^\s*nolint`,
	`^\s*eslint-`,
	`^\s*prettier-ignore`,
	`^\s*go:(generate|build|embed|noinline)`,
	`^\s*\+build`,
	`^\s*@ts-(ignore|expect-error|nocheck)`,
	`^\s*type:\s*ignore`,
	`^\s*noqa`,
	`^\s*pragma`,
	`^\s*istanbul ignore`,
	`^\s*coverage:`,
	`^\s*!`,
	`code generated .* do not edit`,
}

// Filter is the significance predicate applied to extracted comments.
//
// A comment passes when its cleaned text meets the minimum length and
// matches none of the ignore patterns. The filter is stateless and safe
// for concurrent use once constructed.
type Filter struct {
	minLength int
	ignore    []*regexp.Regexp
}

// NewFilter compiles a Filter.
//
// # Inputs
//
//   - minLength: Minimum cleaned text length; values < 1 fall back to
//     DefaultMinLength.
//   - patterns: Case-insensitive ignore regexes; nil means
//     DefaultIgnorePatterns.
//
// # Outputs
//
//   - *Filter: The compiled filter.
//   - error: Non-nil when a pattern does not compile. Surfaced upward as
//     a configuration error, never swallowed.
func NewFilter(minLength int, patterns []string) (*Filter, error) {
	if minLength < 1 {
		minLength = DefaultMinLength
	}
	if patterns == nil {
		patterns = DefaultIgnorePatterns
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return &Filter{minLength: minLength, ignore: compiled}, nil
}

// Significant reports whether a comment is worth analyzing.
func (f *Filter) Significant(c Comment) bool {
	if len(c.Text) < f.minLength {
		return false
	}
	for _, re := range f.ignore {
		if re.MatchString(c.Text) {
			return false
		}
	}
	return true
}

// Apply returns the significant subset of comments, preserving order.
func (f *Filter) Apply(comments []Comment) []Comment {
	var out []Comment
	for _, c := range comments {
		if f.Significant(c) {
			out = append(out, c)
		}
	}
	return out
}
