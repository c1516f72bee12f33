// Package storage persists diagnostic reports so past validate and compare
// runs can be listed and inspected later.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("report not found")

// ReportKind identifies which engine produced a report.
type ReportKind string

const (
	KindValidate ReportKind = "validate"
	KindCompare  ReportKind = "compare"
)

// Report is one stored validate or compare run.
type Report struct {
	ID        string     `json:"id"`
	Kind      ReportKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`

	// Projects are the file or project names that were checked
	Projects []string `json:"projects"`

	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`

	// Payload is the full issue or result list as JSON
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Storage defines the interface for report persistence.
// Callers treat storage as optional: a nil Storage means no history.
type Storage interface {
	// SaveReport stores a report. An empty ID is filled with a new UUID and
	// a zero CreatedAt with the current time. Returns the stored report.
	SaveReport(ctx context.Context, report Report) (Report, error)

	// GetReport returns the report with the given ID, or ErrNotFound.
	GetReport(ctx context.Context, id string) (Report, error)

	// ListReports returns reports newest first. A limit of 0 means no limit.
	// An empty kind returns every kind.
	ListReports(ctx context.Context, kind ReportKind, limit int) ([]Report, error)

	// DeleteReportsBefore removes reports created before cutoff and returns
	// how many were deleted.
	DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// GetMetadata reads a value from the app_metadata table.
	GetMetadata(ctx context.Context, key string) (string, bool, error)

	// Close closes the database connection.
	Close() error
}
