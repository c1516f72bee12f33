package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/chis/stackcheck/internal/compare"
	"github.com/chis/stackcheck/internal/validate"
)

// WriteIssues prints validation issues for one file, grouped by entity and
// name in first-seen order, followed by a count line.
func WriteIssues(w io.Writer, source string, issues []validate.Issue) {
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s✓%s %s: no issues found\n", Green(), Reset(), source)
		return
	}

	fmt.Fprintf(w, "%s%s%s\n", Bold(), source, Reset())

	type group struct {
		entity validate.Entity
		name   string
		issues []validate.Issue
	}
	var groups []*group
	byKey := make(map[string]*group)

	for _, issue := range issues {
		key := string(issue.Entity) + "/" + issue.Name
		g, ok := byKey[key]
		if !ok {
			g = &group{entity: issue.Entity, name: issue.Name}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.issues = append(g.issues, issue)
	}

	for _, g := range groups {
		fmt.Fprintf(w, "  %s %s\n", g.entity, g.name)
		for _, issue := range g.issues {
			fmt.Fprintf(w, "    %s %s\n", issueBadge(issue.Severity), issue.Message)
		}
	}

	c := validate.Count(issues)
	fmt.Fprintf(w, "  %s\n", plural(c.Errors, "error")+", "+plural(c.Warnings, "warning"))
}

// WriteResults prints comparison results grouped by severity, then a
// summary line.
func WriteResults(w io.Writer, results []compare.Result) {
	if len(results) == 0 {
		fmt.Fprintf(w, "%s✓%s No conflicts or shared resources found\n", Green(), Reset())
		return
	}

	for _, sev := range []compare.Severity{compare.SeverityError, compare.SeverityWarning, compare.SeverityInfo} {
		for _, r := range results {
			if r.Severity != sev {
				continue
			}
			fmt.Fprintf(w, "%s [%s] %s\n", resultBadge(r.Severity), r.Category, r.Message)
			fmt.Fprintf(w, "    %sprojects: %s%s\n", Gray(), strings.Join(r.Projects, ", "), Reset())
			for _, u := range r.Details.Usages {
				line := u.Project + "/" + u.Service
				if u.Mapping != "" {
					line += "  " + u.Mapping
				}
				fmt.Fprintf(w, "    %s%s%s\n", Gray(), line, Reset())
			}
		}
	}

	s := compare.Summarize(results)
	fmt.Fprintf(w, "\nSummary: %s, %s, %d info\n", plural(s.Errors, "error"), plural(s.Warnings, "warning"), s.Info)
}

// WriteOrder prints a service start order, or the cycle that prevents one.
func WriteOrder(w io.Writer, order []string, cycle []string) {
	if len(cycle) > 0 {
		fmt.Fprintf(w, "%s✗%s Dependency cycle: %s\n", Red(), Reset(), strings.Join(cycle, " -> "))
		return
	}
	fmt.Fprintln(w, "Start order:")
	for i, name := range order {
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}
}

func issueBadge(sev validate.Severity) string {
	if sev == validate.SeverityError {
		return Red() + "✗ error  " + Reset()
	}
	return Yellow() + "⚠ warning" + Reset()
}

func resultBadge(sev compare.Severity) string {
	switch sev {
	case compare.SeverityError:
		return Red() + "✗ ERROR  " + Reset()
	case compare.SeverityWarning:
		return Yellow() + "⚠ WARNING" + Reset()
	default:
		return Blue() + "ℹ INFO   " + Reset()
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
