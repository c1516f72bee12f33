package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chis/stackcheck/internal/bootstrap"
	"github.com/chis/stackcheck/internal/history"
	"github.com/chis/stackcheck/internal/output"
	"github.com/chis/stackcheck/internal/storage"
)

// HistoryCommand implements the history command
type HistoryCommand struct {
	limit   int
	kind    string
	id      string
	prune   string
	verbose bool
	out     io.Writer
	now     func() time.Time
}

// NewHistoryCommand creates a new history command
func NewHistoryCommand() *HistoryCommand {
	return &HistoryCommand{
		limit: 20,
		now:   time.Now,
	}
}

// ParseFlags parses command-line flags for the history command
func (c *HistoryCommand) ParseFlags(args []string) error {
	var jsonFlag bool
	fs := newFlagSet("history", &jsonFlag)
	fs.IntVar(&c.limit, "limit", c.limit, "Maximum number of reports to show")
	fs.StringVar(&c.kind, "kind", "", "Filter by kind: validate, compare")
	fs.StringVar(&c.id, "id", "", "Show one report with its findings")
	fs.StringVar(&c.prune, "prune", "", "Delete reports older than this (e.g., '30d', '2024-01-01')")
	fs.BoolVar(&c.verbose, "verbose", false, "Show project names and report IDs")
	fs.BoolVar(&c.verbose, "v", false, "Shorthand for --verbose")

	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return usagef("unexpected argument %q", rest[0])
	}
	if c.limit < 0 {
		return usagef("--limit must not be negative")
	}
	switch storage.ReportKind(c.kind) {
	case "", storage.KindValidate, storage.KindCompare:
	default:
		return usagef("unknown kind %q (use validate or compare)", c.kind)
	}

	applyJSONFlag(jsonFlag)
	return nil
}

// Run executes the history command
func (c *HistoryCommand) Run(ctx context.Context) error {
	deps, cleanup, err := initServices(bootstrap.InitOptions{RequireStorage: true})
	if err != nil {
		return err
	}
	defer cleanup()

	return c.run(ctx, deps.Storage)
}

func (c *HistoryCommand) run(ctx context.Context, store storage.Storage) error {
	switch {
	case c.prune != "":
		return c.runPrune(ctx, store)
	case c.id != "":
		return c.runShow(ctx, store)
	default:
		return c.runList(ctx, store)
	}
}

func (c *HistoryCommand) runList(ctx context.Context, store storage.Storage) error {
	reports, err := store.ListReports(ctx, storage.ReportKind(c.kind), c.limit)
	if err != nil {
		return err
	}

	w := stdout(c.out)
	if GlobalJSONMode {
		for i := range reports {
			reports[i].Payload = nil
		}
		return writeJSON(w, map[string]interface{}{
			"reports": reports,
			"count":   len(reports),
		})
	}

	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports found.")
		return nil
	}

	fmt.Fprintf(w, "=== Report History (showing %d) ===\n\n", len(reports))

	// Group by date for better readability
	var currentDate string
	for _, r := range reports {
		local := r.CreatedAt.Local()
		if date := local.Format("2006-01-02"); date != currentDate {
			if currentDate != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "--- %s ---\n", date)
			currentDate = date
		}
		c.displayReport(w, r, local)
	}

	return nil
}

// displayReport prints one line per report
func (c *HistoryCommand) displayReport(w io.Writer, r storage.Report, at time.Time) {
	icon, color := "✓", output.Green()
	switch {
	case r.Errors > 0:
		icon, color = "✗", output.Red()
	case r.Warnings > 0:
		icon, color = "⚠", output.Yellow()
	}

	fmt.Fprintf(w, "  %s%s%s [%s] %-8s %s: %d errors, %d warnings, %d info\n",
		color, icon, output.Reset(),
		at.Format("15:04:05"),
		r.Kind,
		strings.Join(r.Projects, ", "),
		r.Errors, r.Warnings, r.Info,
	)
	if c.verbose {
		fmt.Fprintf(w, "      %sid: %s%s\n", output.Gray(), r.ID, output.Reset())
	}
}

func (c *HistoryCommand) runShow(ctx context.Context, store storage.Storage) error {
	report, err := store.GetReport(ctx, c.id)
	if err != nil {
		return err
	}

	w := stdout(c.out)
	if GlobalJSONMode {
		return writeJSON(w, report)
	}

	fmt.Fprintf(w, "Report %s (%s, %s)\n\n", report.ID, report.Kind, report.CreatedAt.Local().Format(time.RFC3339))

	switch report.Kind {
	case storage.KindValidate:
		payload, err := history.DecodeValidation(report)
		if err != nil {
			return err
		}
		output.WriteIssues(w, payload.Project, payload.Issues)
	case storage.KindCompare:
		payload, err := history.DecodeComparison(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Projects: %s\n\n", strings.Join(payload.Projects, ", "))
		output.WriteResults(w, payload.Results)
	}
	return nil
}

func (c *HistoryCommand) runPrune(ctx context.Context, store storage.Storage) error {
	cutoff, err := parseSinceTime(c.prune, c.now())
	if err != nil {
		return usagef("invalid --prune value: %v", err)
	}

	deleted, err := store.DeleteReportsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	w := stdout(c.out)
	if GlobalJSONMode {
		return writeJSON(w, map[string]interface{}{
			"deleted": deleted,
			"before":  cutoff.UTC(),
		})
	}
	fmt.Fprintf(w, "Deleted %d reports created before %s\n", deleted, cutoff.Local().Format(time.RFC3339))
	return nil
}
