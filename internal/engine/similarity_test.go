package engine

import (
	"math"
	"strings"
	"testing"

	"policy-merger/internal/model"
)

func TestJaccardSimilarityEdges(t *testing.T) {
	if got := JaccardSimilarity(nil, nil); got != 1.0 {
		t.Errorf("two empty sets must score 1.0, got %v", got)
	}
	if got := JaccardSimilarity([]string{"A", "B"}, []string{"A", "B"}); got != 1.0 {
		t.Errorf("identical sets must score 1.0, got %v", got)
	}
	if got := JaccardSimilarity([]string{"A"}, []string{"B"}); got != 0.0 {
		t.Errorf("disjoint sets must score 0.0, got %v", got)
	}
	got := JaccardSimilarity([]string{"A", "B"}, []string{"B", "C"})
	if math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("expected 1/3, got %v", got)
	}
}

func TestGroupByStableKeyIgnoresExcludedFields(t *testing.T) {
	a := makeRule("A", "SRC1", "DST1", "HTTP", "FG1")
	b := makeRule("B", "SRC2", "DST1", "HTTP", "FG2")
	c := makeRule("C", "SRC1", "DST1", "HTTP", "FG1")
	c.Raw["action"] = "deny"

	groups := GroupByStableKey([]*model.Rule{a, b, c}, []string{"srcaddr", "name"})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Rules) != 2 {
		t.Errorf("expected a and b grouped despite differing srcaddr/name")
	}
}

func TestGroupByMinimalContext(t *testing.T) {
	a := makeRule("A", "SRC1", "DST1", "HTTP", "FG1")
	b := makeRule("B", "SRC9", "DST9", "SSH", "FG2")
	b.Raw["srcintf"] = "port9"
	c := makeRule("C", "SRC1", "DST1", "HTTP", "FG1")
	c.Raw["action"] = "deny"

	groups := GroupByMinimalContext([]*model.Rule{a, b, c}, []string{"schedule", "action", "nat", "status"})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Rules) != 2 {
		t.Errorf("a and b share anchors and must land together despite interface diffs")
	}
}

func TestFindSimilarRulesScenario(t *testing.T) {
	// A and C are identical on the candidate fields; B differs but
	// shares the stable key.
	a := makeRule("A", "SRC1 SRC2", "DST1", "HTTP", "FG1")
	b := makeRule("B", "SRC1", "DST1", "HTTP HTTPS", "FG2")
	c := makeRule("C", "SRC1 SRC2", "DST1", "HTTP", "FG3")

	opts := DefaultSimilarityOptions()
	opts.MinSimilarity = 0.0
	suggestions := FindSimilarRules([]*model.Rule{a, b, c}, opts)
	if len(suggestions) != 3 {
		t.Fatalf("expected 3 pairwise suggestions, got %d", len(suggestions))
	}

	var ac, ab *Suggestion
	for i := range suggestions {
		s := &suggestions[i]
		switch {
		case s.RuleA == a && s.RuleB == c:
			ac = s
		case s.RuleA == a && s.RuleB == b:
			ab = s
		}
	}
	if ac == nil || ac.Score != 1.0 || len(ac.Diffs) != 0 {
		t.Errorf("A/C must be a score-1.0 suggestion with no diffs")
	}
	if ab == nil {
		t.Fatalf("A/B suggestion missing")
	}
	if ab.Score <= 0 || ab.Score >= 1 {
		t.Errorf("A/B score must be strictly between 0 and 1, got %v", ab.Score)
	}
}

func TestFindSimilarRulesFloorGatesSuggestions(t *testing.T) {
	a := makeRule("A", "SRC1", "DST1", "HTTP", "FG1")
	b := makeRule("B", "SRC9", "DST1", "HTTP", "FG2")

	opts := DefaultSimilarityOptions()
	opts.MinSimilarity = 0.5
	if got := FindSimilarRules([]*model.Rule{a, b}, opts); len(got) != 0 {
		t.Errorf("disjoint srcaddr scores 0.0 and must be gated, got %d suggestions", len(got))
	}

	opts.MinSimilarity = 0.0
	if got := FindSimilarRules([]*model.Rule{a, b}, opts); len(got) != 1 {
		t.Errorf("with the floor disabled the pair must be emitted, got %d", len(got))
	}
}

func TestFindSingleFieldMergeGroups(t *testing.T) {
	a := makeRule("A", "A", "DST1", "HTTP", "FG1")
	b := makeRule("B", "A B", "DST1", "HTTP", "FG2")

	groups := FindSingleFieldMergeGroups([]*model.Rule{a, b}, DefaultSimilarityOptions())
	if len(groups) != 1 {
		t.Fatalf("expected exactly one merge group, got %d", len(groups))
	}
	g := groups[0]
	if g.Field != "srcaddr" {
		t.Errorf("expected srcaddr to vary, got %s", g.Field)
	}
	if len(g.Union) != 2 || g.Union[0] != "A" || g.Union[1] != "B" {
		t.Errorf("expected union [A B], got %v", g.Union)
	}
}

func TestFindSingleFieldMergeGroupsRejectsNoGain(t *testing.T) {
	// Same token set, different order: the union adds nothing.
	a := makeRule("A", "A B", "DST1", "HTTP", "FG1")
	b := makeRule("B", "B A", "DST1", "HTTP", "FG2")

	if groups := FindSingleFieldMergeGroups([]*model.Rule{a, b}, DefaultSimilarityOptions()); len(groups) != 0 {
		t.Errorf("reordered tokens must not produce a merge group, got %d", len(groups))
	}
}

func TestFindSingleFieldMergeGroupsRequiresSharedContext(t *testing.T) {
	a := makeRule("A", "A", "DST1", "HTTP", "FG1")
	b := makeRule("B", "A B", "DST1", "HTTP", "FG2")
	b.Raw["action"] = "deny"

	if groups := FindSingleFieldMergeGroups([]*model.Rule{a, b}, DefaultSimilarityOptions()); len(groups) != 0 {
		t.Errorf("differing anchors must block the group, got %d", len(groups))
	}
}

func TestBuildSuggestionReason(t *testing.T) {
	a := makeRule("A", "SRC1 SRC2", "DST1", "HTTP", "FG1")
	b := makeRule("B", "SRC1", "DST1", "HTTP HTTPS", "FG2")
	opts := DefaultSimilarityOptions()
	opts.MinSimilarity = 0.0
	suggestions := FindSimilarRules([]*model.Rule{a, b}, opts)
	if len(suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %d", len(suggestions))
	}
	reason := BuildSuggestionReason(suggestions[0])
	if !strings.Contains(reason, "srcaddr") || !strings.Contains(reason, "service") {
		t.Errorf("reason must name both differing fields: %q", reason)
	}
	if !strings.Contains(reason, "HTTPS added to A") {
		t.Errorf("reason must report HTTPS as added to A: %q", reason)
	}
	if !strings.Contains(reason, "SRC2 added to B") {
		t.Errorf("reason must report SRC2 as added to B: %q", reason)
	}

	identical := Suggestion{}
	if got := BuildSuggestionReason(identical); got != "Identical on the key fields." {
		t.Errorf("unexpected identical-case reason %q", got)
	}
}
