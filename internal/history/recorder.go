// Package history turns validate and compare runs into stored reports.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chis/stackcheck/internal/compare"
	"github.com/chis/stackcheck/internal/events"
	"github.com/chis/stackcheck/internal/logging"
	"github.com/chis/stackcheck/internal/storage"
	"github.com/chis/stackcheck/internal/validate"
)

// ValidationPayload is the stored body of a validate report.
type ValidationPayload struct {
	Project string           `json:"project"`
	Issues  []validate.Issue `json:"issues"`
	Counts  validate.Counts  `json:"counts"`
}

// ComparisonPayload is the stored body of a compare report.
type ComparisonPayload struct {
	Projects []string         `json:"projects"`
	Results  []compare.Result `json:"results"`
	Summary  compare.Summary  `json:"summary"`
}

// Recorder writes reports to storage. A Recorder without storage is a no-op,
// so callers never need to check whether history is enabled.
//
// When an event bus is attached, every run publishes a completed event and
// every stored report a report.recorded event.
type Recorder struct {
	store storage.Storage
	bus   *events.Bus
	log   *logging.Logger
}

// NewRecorder returns a recorder backed by store, which may be nil.
func NewRecorder(store storage.Storage) *Recorder {
	return &Recorder{
		store: store,
		log:   logging.Component("history"),
	}
}

// SetEventBus attaches a bus for run notifications. A nil bus disables them.
func (r *Recorder) SetEventBus(bus *events.Bus) {
	r.bus = bus
}

// Enabled reports whether runs are being stored.
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// RecordValidation stores the issues found in one project.
// Returns the report ID, or "" when history is disabled.
func (r *Recorder) RecordValidation(ctx context.Context, project string, issues []validate.Issue) (string, error) {
	if r == nil {
		return "", nil
	}

	counts := validate.Count(issues)
	r.publish(events.EventValidationCompleted, map[string]interface{}{
		"project":  project,
		"errors":   counts.Errors,
		"warnings": counts.Warnings,
	})
	if !r.Enabled() {
		return "", nil
	}

	payload, err := json.Marshal(ValidationPayload{Project: project, Issues: issues, Counts: counts})
	if err != nil {
		return "", fmt.Errorf("failed to encode validation report: %w", err)
	}

	return r.save(ctx, storage.Report{
		Kind:     storage.KindValidate,
		Projects: []string{project},
		Errors:   counts.Errors,
		Warnings: counts.Warnings,
		Payload:  payload,
	})
}

// RecordComparison stores the results of comparing projects.
func (r *Recorder) RecordComparison(ctx context.Context, projects []string, results []compare.Result) (string, error) {
	if r == nil {
		return "", nil
	}

	summary := compare.Summarize(results)
	r.publish(events.EventComparisonCompleted, map[string]interface{}{
		"projects": projects,
		"errors":   summary.Errors,
		"warnings": summary.Warnings,
		"info":     summary.Info,
	})
	if !r.Enabled() {
		return "", nil
	}

	payload, err := json.Marshal(ComparisonPayload{Projects: projects, Results: results, Summary: summary})
	if err != nil {
		return "", fmt.Errorf("failed to encode comparison report: %w", err)
	}

	return r.save(ctx, storage.Report{
		Kind:     storage.KindCompare,
		Projects: projects,
		Errors:   summary.Errors,
		Warnings: summary.Warnings,
		Info:     summary.Info,
		Payload:  payload,
	})
}

func (r *Recorder) save(ctx context.Context, report storage.Report) (string, error) {
	saved, err := r.store.SaveReport(ctx, report)
	if err != nil {
		return "", fmt.Errorf("failed to save %s report: %w", report.Kind, err)
	}

	r.log.WithFields(map[string]interface{}{
		"report_id": saved.ID,
		"kind":      string(saved.Kind),
		"errors":    saved.Errors,
	}).DebugContext(ctx, "Recorded report")

	r.publish(events.EventReportRecorded, map[string]interface{}{
		"report_id": saved.ID,
		"kind":      string(saved.Kind),
		"projects":  saved.Projects,
		"errors":    saved.Errors,
		"warnings":  saved.Warnings,
		"info":      saved.Info,
	})

	return saved.ID, nil
}

func (r *Recorder) publish(eventType string, payload map[string]interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{Type: eventType, Payload: payload})
}

// DecodeValidation unmarshals the payload of a validate report.
func DecodeValidation(report storage.Report) (ValidationPayload, error) {
	var p ValidationPayload
	if report.Kind != storage.KindValidate {
		return p, fmt.Errorf("report %s is a %s report", report.ID, report.Kind)
	}
	if err := json.Unmarshal(report.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to decode report %s: %w", report.ID, err)
	}
	return p, nil
}

// DecodeComparison unmarshals the payload of a compare report.
func DecodeComparison(report storage.Report) (ComparisonPayload, error) {
	var p ComparisonPayload
	if report.Kind != storage.KindCompare {
		return p, fmt.Errorf("report %s is a %s report", report.ID, report.Kind)
	}
	if err := json.Unmarshal(report.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to decode report %s: %w", report.ID, err)
	}
	return p, nil
}
