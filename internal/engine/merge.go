package engine

import (
	"strings"

	"policy-merger/internal/model"
)

// UnionTokens joins two token lists into one order-preserving
// deduplicated list, a tokens first. Commutative at the set level even
// though the order differs.
func UnionTokens(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// MergeFields returns a copy of base's raw mapping with each listed
// field replaced by the token union of base then other. This is the
// single merge primitive; N-way merges fold it across a group.
func MergeFields(base, other *model.Rule, fields []string) map[string]string {
	merged := make(map[string]string, len(base.Raw))
	for k, v := range base.Raw {
		merged[k] = v
	}
	for _, f := range fields {
		union := UnionTokens(model.Tokenize(base.Field(f)), model.Tokenize(other.Field(f)))
		merged[f] = strings.Join(union, " ")
	}
	return merged
}

// MergeGroupIntoFirst folds a single-field merge group into the first
// member, returning its raw mapping with the varying field replaced by
// the group union.
func MergeGroupIntoFirst(g MergeGroup) map[string]string {
	if len(g.Rules) == 0 {
		return nil
	}
	base := g.Rules[0]
	merged := map[string]string{}
	for k, v := range base.Raw {
		merged[k] = v
	}
	merged[g.Field] = strings.Join(g.Union, " ")
	return merged
}

// RenameForKeepBoth derives the keep-both rename for a rule, tagging
// the name with its source device.
func RenameForKeepBoth(rule *model.Rule) string {
	name := strings.TrimSpace(rule.Field("name"))
	if name == "" {
		return "rule-from-" + rule.SourceDevice
	}
	return name + "-from-" + rule.SourceDevice
}
