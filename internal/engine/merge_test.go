package engine

import (
	"sort"
	"strings"
	"testing"

	"policy-merger/internal/model"
)

func TestUnionTokensOrderAndDedup(t *testing.T) {
	got := UnionTokens([]string{"A", "B"}, []string{"B", "C", "A"})
	want := []string{"A", "B", "C"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestUnionTokensCommutativeAsSets(t *testing.T) {
	a := []string{"A", "B"}
	b := []string{"C", "B"}
	ab := UnionTokens(a, b)
	ba := UnionTokens(b, a)
	sort.Strings(ab)
	sort.Strings(ba)
	if strings.Join(ab, " ") != strings.Join(ba, " ") {
		t.Errorf("union must be commutative at the set level: %v vs %v", ab, ba)
	}
}

func TestMergeFields(t *testing.T) {
	a := makeRule("A", "SRC1 SRC2", "DST1", "HTTP", "FG1")
	b := makeRule("B", "SRC1 SRC3", "DST2", "HTTP HTTPS", "FG2")

	merged := MergeFields(a, b, []string{"srcaddr", "service"})
	if merged["srcaddr"] != "SRC1 SRC2 SRC3" {
		t.Errorf("unexpected srcaddr union %q", merged["srcaddr"])
	}
	if merged["service"] != "HTTP HTTPS" {
		t.Errorf("unexpected service union %q", merged["service"])
	}
	// Unlisted fields keep base values.
	if merged["dstaddr"] != "DST1" {
		t.Errorf("dstaddr must stay the base value, got %q", merged["dstaddr"])
	}
	// The base rule itself is untouched.
	if a.Field("srcaddr") != "SRC1 SRC2" {
		t.Errorf("merge must not mutate the base rule")
	}
}

func TestMergeGroupIntoFirst(t *testing.T) {
	a := makeRule("A", "A", "DST1", "HTTP", "FG1")
	b := makeRule("B", "A B", "DST1", "HTTP", "FG2")
	groups := FindSingleFieldMergeGroups([]*model.Rule{a, b}, DefaultSimilarityOptions())
	if len(groups) != 1 {
		t.Fatalf("expected one merge group, got %d", len(groups))
	}
	merged := MergeGroupIntoFirst(groups[0])
	if merged["srcaddr"] != "A B" {
		t.Errorf("expected folded srcaddr \"A B\", got %q", merged["srcaddr"])
	}
	if merged["name"] != "A" {
		t.Errorf("merged row must carry the first member's fields")
	}
}

func TestRenameForKeepBoth(t *testing.T) {
	r := makeRule("AllowWeb", "A", "B", "HTTP", "FG-EDGE")
	if got := RenameForKeepBoth(r); got != "AllowWeb-from-FG-EDGE" {
		t.Errorf("unexpected rename %q", got)
	}
	r.Raw["name"] = "  "
	if got := RenameForKeepBoth(r); got != "rule-from-FG-EDGE" {
		t.Errorf("unexpected fallback rename %q", got)
	}
}
