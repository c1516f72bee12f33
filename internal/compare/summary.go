package compare

// Summary counts comparison results by severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Total returns the number of results counted.
func (s Summary) Total() int {
	return s.Errors + s.Warnings + s.Info
}

// HasErrors returns true if any error-severity result was counted.
func (s Summary) HasErrors() bool {
	return s.Errors > 0
}

// Summarize partitions results on severity.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}
