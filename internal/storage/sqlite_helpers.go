package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const reportColumns = `id, kind, created_at, projects, errors, warnings, info, payload`

// scanReport scans one reports row, decoding the JSON projects column.
func scanReport(row rowScanner) (Report, error) {
	var r Report
	var kind, projectsJSON, payload string

	err := row.Scan(&r.ID, &kind, &r.CreatedAt, &projectsJSON, &r.Errors, &r.Warnings, &r.Info, &payload)
	if err != nil {
		return Report{}, err
	}

	r.Kind = ReportKind(kind)
	r.CreatedAt = r.CreatedAt.UTC()

	if projectsJSON != "" {
		if err := json.Unmarshal([]byte(projectsJSON), &r.Projects); err != nil {
			return Report{}, fmt.Errorf("failed to deserialize projects: %w", err)
		}
	}
	if r.Projects == nil {
		r.Projects = []string{}
	}
	if payload != "" && payload != "null" {
		r.Payload = json.RawMessage(payload)
	}

	return r, nil
}

// scanReportRows scans every row into a slice. Never returns a nil slice.
func scanReportRows(rows *sql.Rows) ([]Report, error) {
	reports := make([]Report, 0)

	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}

	return reports, nil
}

// appendLimitClause appends a SQL LIMIT clause to the query if limit > 0
func appendLimitClause(query string, limit int) string {
	if limit > 0 {
		return query + fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}
