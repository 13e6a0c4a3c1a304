// Package session persists a working snapshot of the merge state:
// enough to fully reconstruct the rule table plus an audit trail of
// the actions that produced it.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"policy-merger/internal/model"
)

// CurrentVersion tags the snapshot format for forward evolution.
const CurrentVersion = 1

// AuditEntry records one mutation applied during a session.
type AuditEntry struct {
	Time    time.Time `json:"time"`
	Action  string    `json:"action"` // dedup, merge, rename, keep
	RuleIDs []string  `json:"rule_ids,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Snapshot is the persisted session state.
type Snapshot struct {
	Version int                 `json:"version"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
	Audit   []AuditEntry        `json:"audit,omitempty"`
}

// FromRules captures the current rule table.
func FromRules(columns []string, rules []*model.Rule, audit []AuditEntry) *Snapshot {
	rows := make([]map[string]string, len(rules))
	for i, r := range rules {
		rows[i] = r.Raw
	}
	return &Snapshot{
		Version: CurrentVersion,
		Columns: columns,
		Rows:    rows,
		Audit:   audit,
	}
}

// RuleSet rebuilds a rule set from the snapshot under the given
// source tag.
func (s *Snapshot) RuleSet(sourceTag string) *model.RuleSet {
	ps := model.NewRuleSet(sourceTag, s.Columns)
	for _, row := range s.Rows {
		ps.AddRule(row)
	}
	return ps
}

// Save writes the snapshot as indented JSON.
func Save(path string, s *Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot, rejecting versions newer than this build
// understands.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	if s.Version > CurrentVersion {
		return nil, fmt.Errorf("session version %d is newer than supported %d", s.Version, CurrentVersion)
	}
	return &s, nil
}
