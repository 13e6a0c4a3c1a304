package engine

import (
	"fmt"
	"sort"
	"strings"

	"policy-merger/internal/model"
)

// SimilarityOptions control grouping and scoring. Field sets are
// injected rather than hard-coded so both looser and stricter
// iterations of the heuristic stay reachable by configuration.
type SimilarityOptions struct {
	// CandidateFields are compared (and mergeable) within a bucket.
	CandidateFields []string
	// ExcludedFields are left out of the stable key; normally the
	// candidates plus name/policyid.
	ExcludedFields []string
	// AnchorFields form the minimal-context key.
	AnchorFields []string
	// KeyFields are the five traffic-shape fields.
	KeyFields []string
	// MinSimilarity gates emitted suggestions. 0 disables the gate so
	// every differing pair in a bucket is emitted.
	MinSimilarity float64
}

// DefaultSimilarityOptions mirror the standard suggestion flow.
func DefaultSimilarityOptions() SimilarityOptions {
	return SimilarityOptions{
		CandidateFields: []string{"srcaddr", "dstaddr", "service"},
		ExcludedFields:  []string{"srcaddr", "dstaddr", "service", "name", "policyid"},
		AnchorFields:    []string{"schedule", "action", "nat", "status"},
		KeyFields:       append([]string(nil), model.FiveKeyFields...),
		MinSimilarity:   0.2,
	}
}

// Group is one stable-key bucket in first-seen order.
type Group struct {
	Key   string
	Rules []*model.Rule
}

// FieldDiff records one differing candidate field as an (A,B) pair of
// raw values.
type FieldDiff struct {
	Field string
	A     string
	B     string
}

// Suggestion pairs two rules from the same bucket with their candidate
// field diffs and a similarity score in [0,1]. Suggestions are derived
// values, rebuilt on every pass and never persisted.
type Suggestion struct {
	StableKey string
	Diffs     []FieldDiff
	Score     float64
	RuleA     *model.Rule
	RuleB     *model.Rule
}

// GroupByStableKey partitions rules by the sorted (field,value) pairs
// of every column not in excluded, whitespace-normalized. Two rules
// share a bucket iff they agree on every non-excluded field.
func GroupByStableKey(rules []*model.Rule, excluded []string) []Group {
	skip := make(map[string]bool, len(excluded))
	for _, f := range excluded {
		skip[f] = true
	}
	index := make(map[string]int)
	var groups []Group
	for _, rule := range rules {
		pairs := make([]string, 0, len(rule.Raw))
		for k, v := range rule.Raw {
			if skip[k] {
				continue
			}
			pairs = append(pairs, k+"="+model.NormalizeSpace(v))
		}
		sort.Strings(pairs)
		key := strings.Join(pairs, model.SignatureSeparator)
		if i, ok := index[key]; ok {
			groups[i].Rules = append(groups[i].Rules, rule)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Key: key, Rules: []*model.Rule{rule}})
	}
	return groups
}

// GroupByMinimalContext partitions rules on the anchor fields only.
// Looser than the stable key: it also catches near-duplicates that
// differ on interfaces, trading precision for recall.
func GroupByMinimalContext(rules []*model.Rule, anchors []string) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, rule := range rules {
		key := model.Signature(rule, anchors)
		if i, ok := index[key]; ok {
			groups[i].Rules = append(groups[i].Rules, rule)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Key: key, Rules: []*model.Rule{rule}})
	}
	return groups
}

// JaccardSimilarity is |A∩B| / |A∪B| over token sets. Two empty sets
// are defined as fully similar. A zero union with a nonempty side is
// unreachable given that rule, kept as an explicit edge case.
func JaccardSimilarity(a, b []string) float64 {
	aSet := tokenSet(a)
	bSet := tokenSet(b)
	if len(aSet) == 0 && len(bSet) == 0 {
		return 1.0
	}
	inter := 0
	for t := range aSet {
		if bSet[t] {
			inter++
		}
	}
	union := len(aSet) + len(bSet) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// CompareRules lists the fields whose normalized values differ, in
// field order.
func CompareRules(a, b *model.Rule, fields []string) []FieldDiff {
	var diffs []FieldDiff
	for _, f := range fields {
		av := a.Field(f)
		bv := b.Field(f)
		if model.NormalizeSpace(av) != model.NormalizeSpace(bv) {
			diffs = append(diffs, FieldDiff{Field: f, A: av, B: bv})
		}
	}
	return diffs
}

// FindSimilarRules buckets rules by stable key and scores every
// unordered pair in buckets of two or more. Pairs identical on the
// candidate fields score 1.0; otherwise the score is the mean Jaccard
// similarity of the differing fields, emitted only when it meets
// opts.MinSimilarity.
func FindSimilarRules(rules []*model.Rule, opts SimilarityOptions) []Suggestion {
	var suggestions []Suggestion
	for _, group := range GroupByStableKey(rules, opts.ExcludedFields) {
		n := len(group.Rules)
		if n < 2 {
			continue
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				a, b := group.Rules[i], group.Rules[j]
				diffs := CompareRules(a, b, opts.CandidateFields)
				if len(diffs) == 0 {
					suggestions = append(suggestions, Suggestion{
						StableKey: group.Key,
						Score:     1.0,
						RuleA:     a,
						RuleB:     b,
					})
					continue
				}
				var total float64
				for _, d := range diffs {
					total += JaccardSimilarity(model.Tokenize(d.A), model.Tokenize(d.B))
				}
				score := total / float64(len(diffs))
				if score < opts.MinSimilarity {
					continue
				}
				suggestions = append(suggestions, Suggestion{
					StableKey: group.Key,
					Diffs:     diffs,
					Score:     score,
					RuleA:     a,
					RuleB:     b,
				})
			}
		}
	}
	return suggestions
}

// MergeGroup proposes folding several rules into one by unioning a
// single varying field.
type MergeGroup struct {
	Field string
	Rules []*model.Rule
	Union []string
}

// FindSingleFieldMergeGroups finds groups of rules that agree on four
// of the five key fields and on the minimal context, varying only in
// the remaining field. A group is proposed only when the token union
// of the varying field is strictly larger than at least one member's
// own token set; a union equal to every member's set gains nothing
// (the same tokens reordered) and is excluded.
func FindSingleFieldMergeGroups(rules []*model.Rule, opts SimilarityOptions) []MergeGroup {
	var out []MergeGroup
	for _, varying := range opts.KeyFields {
		fixed := make([]string, 0, len(opts.KeyFields)-1+len(opts.AnchorFields))
		for _, f := range opts.KeyFields {
			if f != varying {
				fixed = append(fixed, f)
			}
		}
		fixed = append(fixed, opts.AnchorFields...)

		index := make(map[string]int)
		var groups []MergeGroup
		for _, rule := range rules {
			key := model.Signature(rule, fixed)
			if i, ok := index[key]; ok {
				groups[i].Rules = append(groups[i].Rules, rule)
				continue
			}
			index[key] = len(groups)
			groups = append(groups, MergeGroup{Field: varying, Rules: []*model.Rule{rule}})
		}

		for _, g := range groups {
			if len(g.Rules) < 2 {
				continue
			}
			var union []string
			seen := make(map[string]bool)
			memberSizes := make([]int, len(g.Rules))
			for i, rule := range g.Rules {
				tokens := model.Tokenize(rule.Field(varying))
				distinct := make(map[string]bool, len(tokens))
				for _, t := range tokens {
					distinct[t] = true
					if !seen[t] {
						seen[t] = true
						union = append(union, t)
					}
				}
				memberSizes[i] = len(distinct)
			}
			grows := false
			for _, size := range memberSizes {
				if size < len(union) {
					grows = true
					break
				}
			}
			if !grows {
				continue
			}
			g.Union = union
			out = append(out, g)
		}
	}
	return out
}

// BuildSuggestionReason renders a suggestion's diffs as a per-field
// set-difference report.
func BuildSuggestionReason(s Suggestion) string {
	if len(s.Diffs) == 0 {
		return "Identical on the key fields."
	}
	var b strings.Builder
	for i, d := range s.Diffs {
		if i > 0 {
			b.WriteString("; ")
		}
		aTokens := tokenSet(model.Tokenize(d.A))
		bTokens := tokenSet(model.Tokenize(d.B))
		onlyB := tokenDifference(model.Tokenize(d.B), aTokens)
		onlyA := tokenDifference(model.Tokenize(d.A), bTokens)
		fmt.Fprintf(&b, "%s:", d.Field)
		if len(onlyB) > 0 {
			fmt.Fprintf(&b, " %s added to A", strings.Join(onlyB, " "))
		}
		if len(onlyA) > 0 {
			if len(onlyB) > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " %s added to B", strings.Join(onlyA, " "))
		}
	}
	return b.String()
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// tokenDifference keeps tokens absent from other, preserving first-seen
// order.
func tokenDifference(tokens []string, other map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tokens {
		if other[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
