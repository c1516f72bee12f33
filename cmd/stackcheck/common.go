package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chis/stackcheck/internal/bootstrap"
	"github.com/chis/stackcheck/internal/output"
)

// Global flags, set by main before a command runs
var (
	GlobalJSONMode   bool
	globalConfigPath string
	globalVerbose    bool
)

// Exit codes
const (
	exitOK          = 0
	exitDiagnostics = 1
	exitFailure     = 2
)

// errDiagnostics means the run completed but found error-severity problems.
var errDiagnostics = errors.New("error diagnostics found")

// usageError is a bad invocation: wrong arguments or flags.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errDiagnostics):
		return exitDiagnostics
	default:
		return exitFailure
	}
}

// Command is implemented by every subcommand.
type Command interface {
	ParseFlags(args []string) error
	Run(ctx context.Context) error
}

// newFlagSet returns a flag set that reports errors instead of exiting and
// accepts --json so it can follow the subcommand.
func newFlagSet(name string, jsonFlag *bool) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(jsonFlag, "json", false, "Output in JSON format (global flag)")
	return fs
}

// parseArgs parses flags that may appear before, between or after
// positional arguments and returns the positionals in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, &usageError{msg: err.Error()}
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// applyJSONFlag sets JSON mode if either the global or the local flag is set.
func applyJSONFlag(local bool) {
	if GlobalJSONMode || local {
		GlobalJSONMode = true
	}
}

// initServices initializes shared services using the global flags.
func initServices(opts bootstrap.InitOptions) (*bootstrap.ServiceDependencies, func(), error) {
	opts.ConfigPath = globalConfigPath
	opts.Verbose = globalVerbose
	return bootstrap.InitializeServices(opts)
}

// writeJSON writes data in the standard response envelope.
func writeJSON(w io.Writer, data interface{}) error {
	return output.WriteJSONData(w, data)
}

// stdout returns w, or os.Stdout when w is nil.
func stdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// parseSinceTime parses a relative duration ("24h", "7d") or a date
// ("2024-01-01", RFC3339) into an absolute time.
func parseSinceTime(since string, now time.Time) (time.Time, error) {
	if strings.HasSuffix(since, "h") || strings.HasSuffix(since, "m") || strings.HasSuffix(since, "s") {
		if duration, err := time.ParseDuration(since); err == nil {
			return now.Add(-duration), nil
		}
	}

	if strings.HasSuffix(since, "d") {
		var days int
		if _, err := fmt.Sscanf(strings.TrimSuffix(since, "d"), "%d", &days); err == nil {
			return now.AddDate(0, 0, -days), nil
		}
	}

	if t, err := time.Parse(time.RFC3339, since); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", since); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s (try '24h', '7d', or '2006-01-02')", since)
}
