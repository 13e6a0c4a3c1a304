package model

import (
	"strings"

	"github.com/google/uuid"
)

// SignatureSeparator joins normalized field values into a signature key.
// A unit separator cannot appear in CSV cell data, so joined keys are
// collision-free.
const SignatureSeparator = "\x1f"

// IdentityFields are the eight fields that define exact-duplicate
// identity. Name and policyid are deliberately excluded.
var IdentityFields = []string{
	"srcintf",
	"dstintf",
	"srcaddr",
	"dstaddr",
	"service",
	"schedule",
	"action",
	"nat",
}

// FiveKeyFields are the five traffic-shape fields used for the looser
// duplicate notion that ignores schedule/action/nat.
var FiveKeyFields = []string{
	"srcaddr",
	"dstaddr",
	"srcintf",
	"dstintf",
	"service",
}

// Rule is one policy row from a device export. Raw holds every column
// as a string; multi-valued cells are whitespace-separated token lists.
type Rule struct {
	ID           string
	Raw          map[string]string
	SourceDevice string
}

// NewRule assigns a stable row ID at construction so later set
// operations never depend on pointer identity.
func NewRule(raw map[string]string, sourceDevice string) *Rule {
	return &Rule{
		ID:           uuid.New().String(),
		Raw:          raw,
		SourceDevice: sourceDevice,
	}
}

// Field returns the raw value for a column, "" when absent.
func (r *Rule) Field(name string) string {
	if r.Raw == nil {
		return ""
	}
	return r.Raw[name]
}

// IdentitySignature returns the normalized signature over the eight
// identity fields. Two rules with equal signatures are exact duplicates.
func (r *Rule) IdentitySignature() string {
	return Signature(r, IdentityFields)
}

// FiveFieldKey returns the normalized signature over the five
// traffic-shape fields.
func (r *Rule) FiveFieldKey() string {
	return Signature(r, FiveKeyFields)
}

// Signature normalizes each named field (collapse whitespace, trim,
// lowercase) and joins them in order. Missing fields count as "".
func Signature(r *Rule, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strings.ToLower(NormalizeSpace(r.Field(f)))
	}
	return strings.Join(parts, SignatureSeparator)
}

// NormalizeSpace trims a value and collapses internal whitespace runs
// to single spaces.
func NormalizeSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Tokenize splits a multi-value cell on whitespace. Empty cells yield
// a nil slice.
func Tokenize(value string) []string {
	return strings.Fields(value)
}

// RuleSet is an ordered collection of rules from one export, with the
// export's column order preserved for round-tripping.
type RuleSet struct {
	SourceDevice string
	Columns      []string
	Rules        []*Rule
}

// NewRuleSet creates an empty set for one source device.
func NewRuleSet(sourceDevice string, columns []string) *RuleSet {
	return &RuleSet{SourceDevice: sourceDevice, Columns: columns}
}

// AddRule appends a row, tagging it with the set's source device.
func (ps *RuleSet) AddRule(raw map[string]string) *Rule {
	rule := NewRule(raw, ps.SourceDevice)
	ps.Rules = append(ps.Rules, rule)
	return rule
}

// Rows returns the raw mappings in rule order.
func (ps *RuleSet) Rows() []map[string]string {
	rows := make([]map[string]string, len(ps.Rules))
	for i, r := range ps.Rules {
		rows[i] = r.Raw
	}
	return rows
}

// UnionColumns returns the order-preserving union of column lists
// across several rule sets.
func UnionColumns(sets []*RuleSet) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, ps := range sets {
		for _, c := range ps.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// AllRules flattens several rule sets into one slice in input order.
func AllRules(sets []*RuleSet) []*Rule {
	var rules []*Rule
	for _, ps := range sets {
		rules = append(rules, ps.Rules...)
	}
	return rules
}
