package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chis/stackcheck/internal/bootstrap"
	"github.com/chis/stackcheck/internal/compose"
	"github.com/chis/stackcheck/internal/graph"
	"github.com/chis/stackcheck/internal/output"
)

// GraphResult is the JSON shape of the graph command.
type GraphResult struct {
	File       string              `json:"file"`
	Services   []string            `json:"services"`
	StartOrder []string            `json:"start_order"`
	StopOrder  []string            `json:"stop_order"`
	Cycle      []string            `json:"cycle,omitempty"`
	Missing    map[string][]string `json:"missing,omitempty"`
}

// GraphCommand implements the graph command
type GraphCommand struct {
	file string
	out  io.Writer
}

// NewGraphCommand creates a new graph command
func NewGraphCommand() *GraphCommand {
	return &GraphCommand{}
}

// ParseFlags parses command-line flags for the graph command
func (c *GraphCommand) ParseFlags(args []string) error {
	var jsonFlag bool
	fs := newFlagSet("graph", &jsonFlag)

	files, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(files) != 1 {
		return usagef("graph takes exactly one compose file")
	}
	c.file = files[0]
	applyJSONFlag(jsonFlag)
	return nil
}

// Run executes the graph command
func (c *GraphCommand) Run(ctx context.Context) error {
	// Only config and logging are needed
	if _, err := bootstrap.LoadConfig(bootstrap.InitOptions{ConfigPath: globalConfigPath, Verbose: globalVerbose}); err != nil {
		return err
	}

	doc, err := compose.LoadFile(c.file)
	if err != nil {
		return err
	}

	return c.finish(buildGraphResult(c.file, doc))
}

func buildGraphResult(file string, doc *compose.Document) GraphResult {
	g := graph.BuildFromDocument(doc)
	result := GraphResult{
		File:       file,
		Services:   g.IDs(),
		StartOrder: []string{},
		StopOrder:  []string{},
		Missing:    g.MissingDependencies(),
	}

	if cycle := g.FindCycle(); cycle != nil {
		result.Cycle = cycle
		return result
	}

	// Acyclic, so neither order can fail
	result.StartOrder, _ = g.StartOrder()
	result.StopOrder, _ = g.StopOrder()
	return result
}

func (c *GraphCommand) finish(result GraphResult) error {
	w := stdout(c.out)

	if GlobalJSONMode {
		if err := writeJSON(w, result); err != nil {
			return err
		}
	} else {
		output.WriteOrder(w, result.StartOrder, result.Cycle)
		for _, svc := range result.Services {
			if deps, ok := result.Missing[svc]; ok {
				fmt.Fprintf(w, "%s⚠%s %s depends on unknown %s\n", output.Yellow(), output.Reset(), svc, strings.Join(deps, ", "))
			}
		}
	}

	if len(result.Cycle) > 0 {
		return errDiagnostics
	}
	return nil
}
