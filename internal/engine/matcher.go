package engine

import (
	"sort"
	"strings"

	"github.com/ruleforge/ucr/internal/rule"
)

// Context keys the matcher reads for the declared scope predicates.
const (
	ctxEntityType         = "entityType"
	ctxClassificationCode = "classificationCode"
)

// applicableRules selects and orders the loaded rules for a context.
//
// Selection:
//  1. When typeFilter is non-empty, only rules of that type survive.
//  2. A rule without scope matches every context; otherwise every present
//     scope predicate must hold (logical AND).
//
// Ordering: descending priority; equal priorities keep cache insertion
// order (stable sort). That is the defined tie-break.
//
// Pure over the loaded cache: the returned slice is freshly allocated.
func (e *Engine) applicableRules(c Context, typeFilter rule.Type) []rule.Rule {
	matched := make([]rule.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if typeFilter != "" && r.Type != typeFilter {
			continue
		}
		if !scopeMatches(r.Scope, c) {
			continue
		}
		matched = append(matched, r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})

	return matched
}

// scopeMatches checks every present predicate of a scope against the
// context. A nil scope matches everything.
func scopeMatches(s *rule.Scope, c Context) bool {
	if s == nil {
		return true
	}

	if s.EntityType != "" && c.str(ctxEntityType) != s.EntityType {
		return false
	}

	if s.ClassificationPattern != "" &&
		!globMatch(s.ClassificationPattern, c.str(ctxClassificationCode)) {
		return false
	}

	// Extensible predicates: equality against the named context field.
	for key, want := range s.Extra {
		got, ok := c[key]
		if !ok || !looseEqual(got, want) {
			return false
		}
	}

	return true
}

// globMatch matches s against a pattern whose only metacharacter is '*'
// (any run of characters, including empty). Classification codes may
// contain characters path.Match treats specially, so the expansion is done
// directly here.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	last := parts[len(parts)-1]
	return last == "" || strings.HasSuffix(s, last)
}
