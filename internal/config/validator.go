package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ValidationResult separates blocking errors from warnings that are only logged.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid reports whether there are no errors. Warnings do not count.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Errorf records a blocking problem.
func (vr *ValidationResult) Errorf(format string, args ...interface{}) {
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// Warnf records a non-blocking problem.
func (vr *ValidationResult) Warnf(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// Merge appends other's findings.
func (vr *ValidationResult) Merge(other ValidationResult) {
	vr.Errors = append(vr.Errors, other.Errors...)
	vr.Warnings = append(vr.Warnings, other.Warnings...)
}

// Err returns the errors joined into one error, or nil when valid.
func (vr *ValidationResult) Err() error {
	if vr.IsValid() {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(vr.Errors, "; "))
}

// oneOf checks value case-insensitively against allowed. Empty is accepted.
func oneOf(key, value string, allowed ...string) ValidationResult {
	var result ValidationResult
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return result
	}
	for _, a := range allowed {
		if v == a {
			return result
		}
	}
	result.Errorf("invalid %s %q: must be one of %s", key, value, strings.Join(allowed, ", "))
	return result
}

// ValidatePort checks that a TCP port is in range.
func ValidatePort(port int) ValidationResult {
	var result ValidationResult
	if port < 1 || port > 65535 {
		result.Errorf("api_port %d is out of range: must be between 1 and 65535 (default: %d)", port, DefaultAPIPort)
	}
	return result
}

// ValidateLogLevel accepts the level names the logger understands.
func ValidateLogLevel(level string) ValidationResult {
	return oneOf("log_level", level, "debug", "info", "warn", "warning", "error")
}

func ValidateLogFormat(format string) ValidationResult {
	return oneOf("log_format", format, "text", "json")
}

// ValidatePath checks a scan directory. Problems are warnings because scan
// directories may be mounts that come and go.
func ValidatePath(path string) ValidationResult {
	var result ValidationResult
	if path == "" {
		result.Warnf("path is empty")
		return result
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		result.Warnf("path does not exist: %s", path)
	case errors.Is(err, fs.ErrPermission):
		result.Warnf("path is not readable: %s", path)
	case err != nil:
		result.Warnf("cannot access path %s: %v", path, err)
	case !info.IsDir():
		result.Warnf("path is not a directory: %s", path)
	}
	return result
}

// ValidateComposeFile checks that a discovered compose file is a readable
// regular file. A file that vanished is a warning; one that cannot be
// opened is an error.
func ValidateComposeFile(filePath string) ValidationResult {
	var result ValidationResult
	if filePath == "" {
		result.Warnf("compose file path is empty")
		return result
	}

	f, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		result.Warnf("compose file does not exist: %s", filePath)
		return result
	}
	if err != nil {
		result.Errorf("failed to read compose file %s: %v", filePath, err)
		return result
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && !info.Mode().IsRegular() {
		result.Warnf("compose file is not a regular file: %s", filePath)
	}
	return result
}
