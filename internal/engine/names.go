package engine

import (
	"strconv"
	"strings"

	"policy-merger/internal/model"
)

// Rename records a name change made during disambiguation.
type Rename struct {
	Original string
	Final    string
}

// BuildUniqueNames assigns a unique, length-bounded name to every rule
// in input order. The candidate is the declared name, falling back to
// the policy id and then the literal "policy". Collisions get the
// first unused numeric suffix, truncating the base so the final string
// never exceeds maxLen. Deterministic for a fixed input order; a
// different order changes which rule keeps the bare name.
func BuildUniqueNames(rules []*model.Rule, maxLen int) ([]string, []Rename) {
	used := make(map[string]bool, len(rules))
	names := make([]string, len(rules))
	var renames []Rename
	for i, rule := range rules {
		candidate := strings.TrimSpace(rule.Field("name"))
		if candidate == "" {
			candidate = strings.TrimSpace(rule.Field("policyid"))
		}
		if candidate == "" {
			candidate = "policy"
		}
		original := candidate
		if maxLen > 0 && len(candidate) > maxLen {
			candidate = candidate[:maxLen]
		}
		final := candidate
		for n := 1; used[final]; n++ {
			suffix := "-" + strconv.Itoa(n)
			if maxLen > 0 && len(suffix) > maxLen {
				// The dash goes once the number alone fills the limit.
				suffix = strconv.Itoa(n)
			}
			base := candidate
			if maxLen > 0 && len(base)+len(suffix) > maxLen {
				base = base[:max(0, maxLen-len(suffix))]
			}
			final = base + suffix
		}
		used[final] = true
		names[i] = final
		if final != original {
			renames = append(renames, Rename{Original: original, Final: final})
		}
	}
	return names, renames
}
