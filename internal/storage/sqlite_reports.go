package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveReport implements Storage.SaveReport.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report Report) (Report, error) {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	report.CreatedAt = report.CreatedAt.UTC()
	if report.Projects == nil {
		report.Projects = []string{}
	}
	if report.Kind != KindValidate && report.Kind != KindCompare {
		return Report{}, fmt.Errorf("invalid report kind %q", report.Kind)
	}

	projectsJSON, err := json.Marshal(report.Projects)
	if err != nil {
		return Report{}, fmt.Errorf("failed to serialize projects: %w", err)
	}

	payload := "null"
	if len(report.Payload) > 0 {
		payload = string(report.Payload)
	}

	err = s.retryWithBackoff(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO reports (`+reportColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, report.ID, string(report.Kind), report.CreatedAt, string(projectsJSON),
			report.Errors, report.Warnings, report.Info, payload)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("failed to save report: %w", err)
	}

	s.log.Debug("Saved %s report %s (%d errors, %d warnings, %d info)",
		report.Kind, report.ID, report.Errors, report.Warnings, report.Info)
	return report, nil
}

// GetReport implements Storage.GetReport.
func (s *SQLiteStorage) GetReport(ctx context.Context, id string) (Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Report{}, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReports implements Storage.ListReports.
func (s *SQLiteStorage) ListReports(ctx context.Context, kind ReportKind, limit int) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query = appendLimitClause(query+` ORDER BY created_at DESC, rowid DESC`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	return scanReportRows(rows)
}

// DeleteReportsBefore implements Storage.DeleteReportsBefore.
func (s *SQLiteStorage) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.retryWithBackoff(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE created_at < ?`, cutoff.UTC())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reports: %w", err)
	}

	if deleted > 0 {
		s.log.Info("Pruned %d reports older than %s", deleted, cutoff.UTC().Format(time.RFC3339))
	}
	return deleted, nil
}

// GetMetadata implements Storage.GetMetadata.
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, true, nil
}
