package compare

import "github.com/chis/stackcheck/internal/compose"

// Project is a compose document loaded for comparison. ID is supplied by
// the caller and passed through untouched.
type Project struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Content *compose.Document `json:"content,omitempty"`
}

// Kind says whether a finding blocks coexistence or just reports reuse.
type Kind string

const (
	KindConflict Kind = "conflict"
	KindShared   Kind = "shared"
)

// Category is the resource a result is about.
type Category string

const (
	CategoryPort          Category = "port"
	CategoryContainerName Category = "container_name"
	CategoryVolume        Category = "volume"
	CategoryNetwork       Category = "network"
	CategoryEnvFile       Category = "env_file"
	CategoryServiceName   Category = "service_name"
)

// Severity of a comparison result.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Usage records one service in one project referencing a resource.
type Usage struct {
	Project string `json:"project"`
	Service string `json:"service"`
	Mapping string `json:"mapping,omitempty"`
}

// Details is the evidence behind a result. Port, container_name, volume and
// env_file results carry Usages; network and service_name results carry
// the name they are about.
type Details struct {
	Usages  []Usage `json:"usages,omitempty"`
	Network string  `json:"network,omitempty"`
	Service string  `json:"service,omitempty"`
}

// Result is one cross-project finding.
type Result struct {
	Kind     Kind     `json:"kind"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Projects []string `json:"projects"`
	Details  Details  `json:"details"`
}
