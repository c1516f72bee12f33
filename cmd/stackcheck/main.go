package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chis/stackcheck/internal/logging"
	"github.com/chis/stackcheck/internal/output"
)

const usageText = `Usage: stackcheck [--json] [--config FILE] [-v] <command> [flags] [args]

Commands:
  validate [FILE...]                 Check compose files (scans scan_directories when none given)
  compare FILE... [--dir DIR] [--running]
                                     Find conflicts and shared resources across projects
  graph FILE                         Show service start order or the dependency cycle
  history [--limit N] [--kind K] [--id ID] [--prune AGE]
                                     List, show or prune stored reports
  serve [--port P]                   Run the HTTP API
  version                            Print the version

Exit status: 0 clean, 1 error diagnostics found, 2 usage or load failure.
`

// newCommand returns the subcommand for name.
func newCommand(name string) (Command, bool) {
	switch name {
	case "validate":
		return NewValidateCommand(), true
	case "compare":
		return NewCompareCommand(), true
	case "graph":
		return NewGraphCommand(), true
	case "history":
		return NewHistoryCommand(), true
	case "serve", "api":
		return NewServeCommand(), true
	}
	return nil, false
}

// run parses global flags, dispatches to a subcommand and returns the exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("stackcheck", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&GlobalJSONMode, "json", false, "Output in JSON format")
	fs.StringVar(&globalConfigPath, "config", "", "Config file (default $STACKCHECK_CONFIG or ./stackcheck.yaml)")
	fs.BoolVar(&globalVerbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&globalVerbose, "v", false, "Shorthand for --verbose")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stderr, usageText)
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, usageText)
		return exitFailure
	}

	if fs.NArg() == 0 {
		fmt.Fprint(stderr, usageText)
		return exitFailure
	}

	name := fs.Arg(0)
	switch name {
	case "help":
		fmt.Fprint(stderr, usageText)
		return exitOK
	case "version":
		fmt.Println(output.Version)
		return exitOK
	}

	cmd, ok := newCommand(name)
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n%s", name, usageText)
		return exitFailure
	}

	if err := cmd.ParseFlags(fs.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	err := cmd.Run(ctx)
	code := exitCode(err)
	switch {
	case err == nil, errors.Is(err, errDiagnostics):
	case GlobalJSONMode:
		output.WriteJSONError(os.Stdout, err)
	default:
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		} else {
			logging.Error("%s failed: %v", name, err)
		}
	}
	return code
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}
