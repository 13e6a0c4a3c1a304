package loader

import (
	"database/sql"
	"fmt"

	"policy-merger/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// policyColumns is the column set exposed by the staging table, and
// the column order of loaded rule sets.
var policyColumns = []string{
	"policyid", "name", "srcintf", "dstintf", "srcaddr", "dstaddr",
	"service", "schedule", "action", "nat", "status", "comments",
}

// MariaDBLoader loads policy rule rows that were staged into a
// MariaDB table, one row per rule, grouped by device.
type MariaDBLoader struct {
	db     *sql.DB
	device string
}

// NewMariaDBLoader opens and pings the database. device, when
// non-empty, restricts loading to one device's rules.
func NewMariaDBLoader(dsn, device string) (*MariaDBLoader, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &MariaDBLoader{db: db, device: device}, nil
}

func (l *MariaDBLoader) Close() {
	l.db.Close()
}

// Load reads the staged rules into one RuleSet per device, in row
// order.
func (l *MariaDBLoader) Load() ([]*model.RuleSet, error) {
	query := `SELECT device_name, policyid, name, srcintf, dstintf, srcaddr, dstaddr,
		service, schedule, action, nat, status, comments FROM firewall_policy`
	args := []any{}
	if l.device != "" {
		query += " WHERE device_name = ?"
		args = append(args, l.device)
	}
	query += " ORDER BY device_name, id"

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query firewall_policy: %w", err)
	}
	defer rows.Close()

	byDevice := make(map[string]*model.RuleSet)
	var sets []*model.RuleSet
	for rows.Next() {
		var device string
		cells := make([]sql.NullString, len(policyColumns))
		dest := make([]any, 0, len(cells)+1)
		dest = append(dest, &device)
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}

		ps, ok := byDevice[device]
		if !ok {
			ps = model.NewRuleSet(device, append([]string(nil), policyColumns...))
			byDevice[device] = ps
			sets = append(sets, ps)
		}
		raw := make(map[string]string, len(policyColumns))
		for i, col := range policyColumns {
			if cells[i].Valid {
				raw[col] = cells[i].String
			} else {
				raw[col] = ""
			}
		}
		ps.AddRule(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read policy rows: %w", err)
	}
	return sets, nil
}
