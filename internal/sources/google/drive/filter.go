package drive

import (
	"fmt"
	"regexp"
	"strings"
)

// ExclusionFilter drops paths that match any configured glob pattern.
// Patterns follow shell-glob rules with no separator: '*' also matches '/'.
// Braces and backslashes are ordinary characters, and a '[' without a
// closing ']' matches itself.
type ExclusionFilter struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	raw string
	re  *regexp.Regexp
}

// NewExclusionFilter compiles patterns. An empty list includes everything.
func NewExclusionFilter(patterns []string) (*ExclusionFilter, error) {
	f := &ExclusionFilter{patterns: make([]compiledPattern, 0, len(patterns))}

	for _, p := range patterns {
		re, err := compilePattern(p)
		if err != nil {
			return nil, err
		}

		f.patterns = append(f.patterns, compiledPattern{raw: p, re: re})
	}

	return f, nil
}

// ValidatePattern reports whether p compiles as an exclusion pattern.
func ValidatePattern(p string) error {
	_, err := compilePattern(p)

	return err
}

func compilePattern(p string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(translatePattern(p))
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
	}

	return re, nil
}

// neverMatch is a class no rune belongs to.
const neverMatch = `[^\x00-\x{10FFFF}]`

// translatePattern converts a glob into an anchored regular expression.
func translatePattern(p string) string {
	pat := []rune(p)
	n := len(pat)

	var b strings.Builder

	b.WriteString(`(?s)^`)

	for i := 0; i < n; {
		c := pat[i]
		i++

		switch c {
		case '*':
			for i < n && pat[i] == '*' {
				i++
			}

			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i
			if j < n && pat[j] == '!' {
				j++
			}

			if j < n && pat[j] == ']' {
				j++
			}

			for j < n && pat[j] != ']' {
				j++
			}

			if j >= n {
				b.WriteString(`\[`)

				continue
			}

			b.WriteString(translateClass(pat[i:j]))
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString(`$`)

	return b.String()
}

// translateClass converts the body of a bracket expression. Reversed ranges
// are dropped; a class left empty never matches, or matches any rune when
// negated.
func translateClass(body []rune) string {
	negated := len(body) > 0 && body[0] == '!'
	if negated {
		body = body[1:]
	}

	var items strings.Builder

	for k := 0; k < len(body); k++ {
		lo := body[k]

		if k+2 < len(body) && body[k+1] == '-' {
			hi := body[k+2]
			k += 2

			if hi < lo {
				continue
			}

			fmt.Fprintf(&items, `\x{%x}-\x{%x}`, lo, hi)

			continue
		}

		fmt.Fprintf(&items, `\x{%x}`, lo)
	}

	switch {
	case items.Len() == 0 && negated:
		return `.`
	case items.Len() == 0:
		return neverMatch
	case negated:
		return `[^` + items.String() + `]`
	default:
		return `[` + items.String() + `]`
	}
}

// Match returns the first pattern matching path.
func (f *ExclusionFilter) Match(path string) (string, bool) {
	if f == nil {
		return "", false
	}

	for _, p := range f.patterns {
		if p.re.MatchString(path) {
			return p.raw, true
		}
	}

	return "", false
}

// Included reports whether path matches none of the patterns.
func (f *ExclusionFilter) Included(path string) bool {
	_, excluded := f.Match(path)

	return !excluded
}

// Len returns the number of configured patterns.
func (f *ExclusionFilter) Len() int {
	if f == nil {
		return 0
	}

	return len(f.patterns)
}
