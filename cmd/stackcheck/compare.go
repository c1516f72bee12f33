package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/chis/stackcheck/internal/bootstrap"
	"github.com/chis/stackcheck/internal/compare"
	"github.com/chis/stackcheck/internal/compose"
	"github.com/chis/stackcheck/internal/config"
	"github.com/chis/stackcheck/internal/docker"
	"github.com/chis/stackcheck/internal/logging"
	"github.com/chis/stackcheck/internal/output"
	"github.com/chis/stackcheck/internal/workspace"
)

// projectSource is one compose file to load, with an optional display name.
type projectSource struct {
	name string
	path string
}

// CompareResult is the JSON shape of a compare run.
type CompareResult struct {
	Projects []ProjectSummary `json:"projects"`
	Results  []compare.Result `json:"results"`
	Summary  compare.Summary  `json:"summary"`
	ReportID string           `json:"report_id,omitempty"`
}

// ProjectSummary names a compared project and where it came from.
type ProjectSummary struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// CompareCommand implements the compare command
type CompareCommand struct {
	files   []string
	dirs    stringList
	running bool
	out     io.Writer

	// lister replaces Docker discovery in tests
	lister func(ctx context.Context) ([]docker.ComposeProject, error)
}

// NewCompareCommand creates a new compare command
func NewCompareCommand() *CompareCommand {
	return &CompareCommand{}
}

// ParseFlags parses command-line flags for the compare command
func (c *CompareCommand) ParseFlags(args []string) error {
	var jsonFlag bool
	fs := newFlagSet("compare", &jsonFlag)
	fs.Var(&c.dirs, "dir", "Directory to scan for compose files (repeatable)")
	fs.BoolVar(&c.running, "running", false, "Include compose projects of running containers")

	files, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	c.files = files
	applyJSONFlag(jsonFlag)

	if len(c.files) == 0 && len(c.dirs) == 0 && !c.running {
		return usagef("compare needs compose files, --dir or --running")
	}
	return nil
}

// Run executes the compare command
func (c *CompareCommand) Run(ctx context.Context) error {
	needDocker := c.running && c.lister == nil
	deps, cleanup, err := initServices(bootstrap.InitOptions{UseDocker: needDocker, RequireDocker: needDocker})
	if err != nil {
		return err
	}
	defer cleanup()

	if needDocker {
		c.lister = deps.Docker.ComposeProjects
	}

	sources, err := c.collectSources(ctx, deps.Config)
	if err != nil {
		return err
	}
	if len(sources) < 2 {
		return usagef("compare needs at least two projects, found %d", len(sources))
	}
	if len(sources) > deps.Config.MaxProjects {
		return usagef("too many projects: got %d, max %d (raise max_projects)", len(sources), deps.Config.MaxProjects)
	}

	ws := workspace.New(deps.Config.MaxProjects)
	summaries := make([]ProjectSummary, 0, len(sources))
	for _, src := range sources {
		doc, err := compose.LoadFile(src.path)
		if err != nil {
			return err
		}
		name := src.path
		if src.name != "" {
			name = src.name
		}
		p := ws.Add(name, doc)
		summaries = append(summaries, ProjectSummary{Name: p.Name, File: src.path})
	}

	results := ws.Compare()
	result := CompareResult{
		Projects: summaries,
		Results:  results,
		Summary:  compare.Summarize(results),
	}

	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
	}
	id, err := deps.Recorder.RecordComparison(ctx, names, results)
	if err != nil {
		logging.Component("compare").WarnContext(ctx, "Failed to record report: %v", err)
	}
	result.ReportID = id

	return c.finish(result)
}

// collectSources gathers files from arguments, scanned directories and
// running projects, dropping duplicates by absolute path.
func (c *CompareCommand) collectSources(ctx context.Context, cfg *config.Config) ([]projectSource, error) {
	var sources []projectSource
	seen := make(map[string]bool)
	add := func(src projectSource) {
		key := src.path
		if abs, err := filepath.Abs(src.path); err == nil {
			key = abs
		}
		if seen[key] {
			return
		}
		seen[key] = true
		sources = append(sources, src)
	}

	for _, f := range c.files {
		add(projectSource{path: f})
	}

	if len(c.dirs) > 0 {
		scanCfg := *cfg
		scanCfg.ScanDirectories = c.dirs
		found, err := config.NewScanner(&scanCfg).ScanAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directories: %w", err)
		}
		for _, f := range found {
			add(projectSource{path: f})
		}
	}

	if c.running {
		projects, err := c.lister(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list running projects: %w", err)
		}
		log := logging.Component("compare")
		for _, p := range projects {
			if len(p.ConfigFiles) == 0 {
				log.WarnContext(ctx, "Running project %s has no compose file label, skipping", p.Name)
				continue
			}
			add(projectSource{name: p.Name, path: p.ConfigFiles[0]})
		}
	}

	return sources, nil
}

// finish prints the result and picks the command result.
func (c *CompareCommand) finish(result CompareResult) error {
	w := stdout(c.out)

	if GlobalJSONMode {
		if err := writeJSON(w, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Comparing %d projects:\n", len(result.Projects))
		for _, p := range result.Projects {
			fmt.Fprintf(w, "  %s%s%s  %s%s%s\n", output.Bold(), p.Name, output.Reset(), output.Gray(), p.File, output.Reset())
		}
		fmt.Fprintln(w)
		output.WriteResults(w, result.Results)
	}

	if result.Summary.HasErrors() {
		return errDiagnostics
	}
	return nil
}
