package main

import (
	"context"
	"fmt"
	"io"

	"github.com/chis/stackcheck/internal/bootstrap"
	"github.com/chis/stackcheck/internal/compose"
	"github.com/chis/stackcheck/internal/config"
	"github.com/chis/stackcheck/internal/history"
	"github.com/chis/stackcheck/internal/logging"
	"github.com/chis/stackcheck/internal/output"
	"github.com/chis/stackcheck/internal/validate"
	"github.com/chis/stackcheck/internal/workspace"
)

// FileReport is the validation outcome for one compose file.
type FileReport struct {
	File     string           `json:"file"`
	Project  string           `json:"project,omitempty"`
	Issues   []validate.Issue `json:"issues"`
	Counts   validate.Counts  `json:"counts"`
	ReportID string           `json:"report_id,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ValidateCommand implements the validate command
type ValidateCommand struct {
	files []string
	out   io.Writer
}

// NewValidateCommand creates a new validate command
func NewValidateCommand() *ValidateCommand {
	return &ValidateCommand{}
}

// ParseFlags parses command-line flags for the validate command.
// Positional arguments are compose files; none means scan the configured
// directories.
func (c *ValidateCommand) ParseFlags(args []string) error {
	var jsonFlag bool
	fs := newFlagSet("validate", &jsonFlag)

	files, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	c.files = files
	applyJSONFlag(jsonFlag)
	return nil
}

// Run executes the validate command
func (c *ValidateCommand) Run(ctx context.Context) error {
	deps, cleanup, err := initServices(bootstrap.InitOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	files := c.files
	if len(files) == 0 {
		files, err = config.NewScanner(deps.Config).ScanAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan for compose files: %w", err)
		}
		if len(files) == 0 {
			return usagef("no compose files given and none found in %v", deps.Config.ScanDirectories)
		}
	}

	reports, loadErr := c.validateFiles(ctx, files, deps.Recorder)
	return c.finish(reports, loadErr)
}

// validateFiles checks each file in order. A file that cannot be loaded is
// reported and the rest are still checked; the first load error is returned.
func (c *ValidateCommand) validateFiles(ctx context.Context, files []string, recorder *history.Recorder) ([]FileReport, error) {
	log := logging.Component("validate")
	reports := make([]FileReport, 0, len(files))
	var loadErr error

	for _, file := range files {
		doc, err := compose.LoadFile(file)
		if err != nil {
			reports = append(reports, FileReport{File: file, Issues: []validate.Issue{}, Error: err.Error()})
			if loadErr == nil {
				loadErr = err
			}
			continue
		}

		issues := validate.Validate(doc)
		report := FileReport{
			File:    file,
			Project: workspace.ProjectName(doc, file),
			Issues:  issues,
			Counts:  validate.Count(issues),
		}

		id, err := recorder.RecordValidation(ctx, report.Project, issues)
		if err != nil {
			log.WarnContext(ctx, "Failed to record report for %s: %v", file, err)
		}
		report.ReportID = id

		reports = append(reports, report)
	}

	return reports, loadErr
}

// finish prints the reports and picks the command result.
func (c *ValidateCommand) finish(reports []FileReport, loadErr error) error {
	w := stdout(c.out)
	hasErrors := false
	for _, r := range reports {
		if r.Counts.HasErrors() {
			hasErrors = true
		}
	}

	if GlobalJSONMode {
		if err := writeJSON(w, map[string]interface{}{
			"files": reports,
			"count": len(reports),
		}); err != nil {
			return err
		}
	} else {
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if r.Error != "" {
				fmt.Fprintf(w, "%s✗%s %s: %s\n", output.Red(), output.Reset(), r.File, r.Error)
				continue
			}
			output.WriteIssues(w, r.File, r.Issues)
		}
	}

	if loadErr != nil {
		return loadErr
	}
	if hasErrors {
		return errDiagnostics
	}
	return nil
}
