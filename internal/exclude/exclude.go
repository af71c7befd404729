// Package exclude implements the path-exclusion rules applied by the
// wheel and sdist writers before any write side effect.
package exclude

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is a single glob pattern. A negated rule re-includes paths that an
// earlier rule excluded.
type Rule struct {
	Pattern string
	Negate  bool
}

// RuleSet is an ordered list of exclusion rules. The last matching rule
// decides: a plain match excludes the path, a negated match re-includes it.
// A nil RuleSet excludes nothing.
type RuleSet struct {
	rules []Rule
}

// Compile parses patterns into a RuleSet. A leading "!" marks a
// re-include rule. Patterns use doublestar glob syntax; a pattern that is
// not valid glob syntax is rejected here rather than silently never
// matching.
func Compile(patterns []string) (*RuleSet, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	rules := make([]Rule, 0, len(patterns))
	for _, p := range patterns {
		r := Rule{Pattern: p}
		if strings.HasPrefix(p, "!") {
			r.Negate = true
			r.Pattern = p[1:]
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("empty exclude pattern %q", p)
		}
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, doublestar.ErrBadPattern)
		}
		rules = append(rules, r)
	}
	return &RuleSet{rules: rules}, nil
}

// Match reports whether name is excluded. Name is a slash-separated path
// relative to the archive root. Patterns without a separator also match
// the final path element, so "test*" excludes "pkg/test1".
func (rs *RuleSet) Match(name string) bool {
	if rs == nil {
		return false
	}
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	excluded := false
	for _, r := range rs.rules {
		if !matches(r.Pattern, name) {
			continue
		}
		excluded = !r.Negate
	}
	return excluded
}

func matches(pattern, name string) bool {
	if ok, err := doublestar.Match(pattern, name); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, err := doublestar.Match(pattern, path.Base(name))
		return err == nil && ok
	}
	return false
}
