// Package engine implements the rule deduplication, similarity
// matching and merge operations. Every function is a pure pass over
// in-memory rules; data-quality problems degrade to defaults instead
// of errors.
package engine

import (
	"policy-merger/internal/model"
)

// DuplicateGroup is one bucket of rules sharing a key, in first-seen
// order. The first member is the survivor.
type DuplicateGroup struct {
	Key   string
	Rules []*model.Rule
}

// DeduplicateIdentical keeps the first rule for each identity
// signature and drops later ones. Survivor order equals first-seen
// order, and re-running on the output removes nothing.
func DeduplicateIdentical(rules []*model.Rule) ([]*model.Rule, int) {
	seen := make(map[string]bool, len(rules))
	survivors := make([]*model.Rule, 0, len(rules))
	removed := 0
	for _, rule := range rules {
		sig := rule.IdentitySignature()
		if seen[sig] {
			removed++
			continue
		}
		seen[sig] = true
		survivors = append(survivors, rule)
	}
	return survivors, removed
}

// DeduplicateByFiveFields groups rules by the five traffic-shape
// fields. The first member of each group survives; every group,
// singletons included, is returned in first-seen order so callers can
// present a kept-vs-duplicate review and re-promote another member.
func DeduplicateByFiveFields(rules []*model.Rule) ([]*model.Rule, []DuplicateGroup) {
	index := make(map[string]int, len(rules))
	var groups []DuplicateGroup
	survivors := make([]*model.Rule, 0, len(rules))
	for _, rule := range rules {
		key := rule.FiveFieldKey()
		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, DuplicateGroup{Key: key, Rules: []*model.Rule{rule}})
			survivors = append(survivors, rule)
			continue
		}
		groups[i].Rules = append(groups[i].Rules, rule)
	}
	return survivors, groups
}
