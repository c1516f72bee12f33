package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chis/stackcheck/internal/logging"
)

// composeFileNames are the file names docker compose picks up by default.
var composeFileNames = map[string]bool{
	"compose.yaml":        true,
	"compose.yml":         true,
	"docker-compose.yaml": true,
	"docker-compose.yml":  true,
}

// maxParallelScans bounds how many scan directories are walked at once.
const maxParallelScans = 4

// Scanner finds compose files below the configured scan directories.
type Scanner struct {
	config *Config
	log    *logging.Logger
}

// NewScanner creates a scanner. A nil config uses defaults.
func NewScanner(cfg *Config) *Scanner {
	return &Scanner{
		config: cfg,
		log:    logging.Component("scanner"),
	}
}

// IsComposeFile reports whether filename is a default compose file name,
// ignoring case.
func IsComposeFile(filename string) bool {
	return composeFileNames[strings.ToLower(filename)]
}

// ShouldExclude reports whether any element of path matches one of the
// patterns. Patterns are filepath.Match globs, so "node_modules" and
// "*.bak" both work.
func (s *Scanner) ShouldExclude(path string, patterns []string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" {
			continue
		}
		for _, pattern := range patterns {
			if ok, err := filepath.Match(pattern, part); ok || (err != nil && pattern == part) {
				return true
			}
		}
	}
	return false
}

func (s *Scanner) excludePatterns() []string {
	if s.config != nil && len(s.config.ExcludePatterns) > 0 {
		return s.config.ExcludePatterns
	}
	return DefaultExcludePatterns
}

func (s *Scanner) scanDirectories() []string {
	if s.config != nil && len(s.config.ScanDirectories) > 0 {
		return s.config.ScanDirectories
	}
	return []string{"."}
}

func (s *Scanner) logger() *logging.Logger {
	if s.log == nil {
		s.log = logging.Component("scanner")
	}
	return s.log
}

// ScanDirectory walks root for compose files and returns them in lexical
// order. The root itself is never excluded. Unreadable subdirectories are
// skipped with a warning.
func (s *Scanner) ScanDirectory(ctx context.Context, root string) ([]string, error) {
	patterns := s.excludePatterns()
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, fs.ErrPermission) && path != root {
				s.logger().Warn("Permission denied accessing %s: %v", path, err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}

		switch {
		case d.IsDir():
			if path != root && s.ShouldExclude(d.Name(), patterns) {
				return filepath.SkipDir
			}
		case IsComposeFile(d.Name()):
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

// ScanAll scans every configured directory, a few at a time. Missing or
// unreadable directories are skipped with a warning. The result is sorted,
// without duplicates, and only holds files that can be opened.
func (s *Scanner) ScanAll(ctx context.Context) ([]string, error) {
	dirs := s.scanDirectories()

	var (
		mu  sync.Mutex
		all []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelScans)

	for _, dir := range dirs {
		g.Go(func() error {
			if _, err := os.Stat(dir); err != nil {
				switch {
				case errors.Is(err, fs.ErrNotExist):
					s.logger().Warn("Scan directory does not exist: %s", dir)
					return nil
				case errors.Is(err, fs.ErrPermission):
					s.logger().Warn("No permission to access scan directory: %s", dir)
					return nil
				}
				return fmt.Errorf("failed to access directory %s: %w", dir, err)
			}

			found, err := s.ScanDirectory(gctx, dir)
			if err != nil {
				return err
			}

			mu.Lock()
			all = append(all, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := s.usable(all)
	s.logger().WithFields(logging.Fields{
		"files":       len(files),
		"directories": len(dirs),
	}).Debug("Compose scan complete")

	return files, nil
}

// usable cleans, dedupes and sorts paths, dropping files that cannot be read.
func (s *Scanner) usable(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true

		if result := ValidateComposeFile(clean); !result.IsValid() || result.HasWarnings() {
			s.logger().Warn("Skipping unreadable compose file: %s (%v)", clean, append(result.Errors, result.Warnings...))
			continue
		}
		out = append(out, clean)
	}
	sort.Strings(out)
	return out
}
