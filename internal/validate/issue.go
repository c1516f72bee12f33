package validate

// Severity classifies an issue. Errors block a deployment, warnings don't.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Entity names the kind of object an issue is attached to. Every current
// rule reports against a service, including undefined network and volume
// references.
type Entity string

const EntityService Entity = "service"

// Issue is a single finding on one compose document.
type Issue struct {
	Severity Severity `json:"severity"`
	Entity   Entity   `json:"entity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

// Counts holds the number of issues per severity.
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// HasErrors returns true if at least one error-severity issue was counted.
func (c Counts) HasErrors() bool {
	return c.Errors > 0
}

// Count partitions issues by severity.
func Count(issues []Issue) Counts {
	var c Counts
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			c.Errors++
		case SeverityWarning:
			c.Warnings++
		}
	}
	return c
}
