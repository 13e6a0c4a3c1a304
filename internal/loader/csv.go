// Package loader reads policy rule sets from FortiManager CSV exports
// or a MariaDB staging database, and writes rule sets back out as CSV.
// Malformed files fail loudly here; the engine never sees them.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"policy-merger/internal/model"
)

// headerKey identifies the header row inside an export, which carries
// banner lines above the real column header.
const headerKey = "policyid"

// sourceTagRegexp strips the export timestamp from a file name, e.g.
// "RG-FOO-DEV-20250101-000000" → "RG-FOO-DEV".
var sourceTagRegexp = regexp.MustCompile(`^(.+?)-\d{8}-\d{6}$`)

// DeriveSourceTag derives the device tag from an export path.
func DeriveSourceTag(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if m := sourceTagRegexp.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// FindHeaderRow returns the index of the first line containing the
// header key.
func FindHeaderRow(lines []string) (int, error) {
	for i, line := range lines {
		if strings.Contains(line, headerKey) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("could not locate header containing %q", headerKey)
}

// ReadPolicyCSV loads one export into a RuleSet. Every cell stays a
// string; rows shorter than the header are padded with "".
func ReadPolicyCSV(path string) (*model.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", path, err)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	headerIdx, err := FindHeaderRow(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(c)
	}

	ps := model.NewRuleSet(DeriveSourceTag(path), columns)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row of %s: %w", path, err)
		}
		raw := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				raw[col] = record[i]
			} else {
				raw[col] = ""
			}
		}
		ps.AddRule(raw)
	}
	return ps, nil
}

// WritePolicyCSV writes a rule set with its own column order. Column
// order falls back to the first rule's keys, sorted, when the set has
// none.
func WritePolicyCSV(path string, ps *model.RuleSet) error {
	columns := ps.Columns
	if len(columns) == 0 && len(ps.Rules) > 0 {
		for c := range ps.Rules[0].Raw {
			columns = append(columns, c)
		}
		sort.Strings(columns)
	}
	return writeRows(path, columns, ps.Rows())
}

// WriteMergedCSV writes rules from mixed origins under one column set:
// the preferred columns when given, otherwise the sorted union of
// every rule's keys.
func WriteMergedCSV(path string, rules []*model.Rule, preferredColumns []string) error {
	columns := preferredColumns
	if len(columns) == 0 {
		seen := make(map[string]bool)
		for _, r := range rules {
			for c := range r.Raw {
				if !seen[c] {
					seen[c] = true
					columns = append(columns, c)
				}
			}
		}
		sort.Strings(columns)
	}
	rows := make([]map[string]string, len(rules))
	for i, r := range rules {
		rows[i] = r.Raw
	}
	return writeRows(path, columns, rows)
}

func writeRows(path string, columns []string, rows []map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
