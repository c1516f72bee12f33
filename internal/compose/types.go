package compose

// Document is the in-memory model of one compose file.
// Collections keep the key order of the source document.
type Document struct {
	// Name is the optional top-level project name
	Name string `json:"name,omitempty"`

	Services *Collection[*Service]  `json:"services"`
	Networks *Collection[*Network]  `json:"networks"`
	Volumes  *Collection[*Volume]   `json:"volumes"`
	Secrets  *Collection[*Resource] `json:"secrets"`
	Configs  *Collection[*Resource] `json:"configs"`
}

// NewDocument returns a document with empty collections.
func NewDocument() *Document {
	return &Document{
		Services: NewCollection[*Service](),
		Networks: NewCollection[*Network](),
		Volumes:  NewCollection[*Volume](),
		Secrets:  NewCollection[*Resource](),
		Configs:  NewCollection[*Resource](),
	}
}

// Service is one service definition. Only the fields the diagnostics
// engine reads are modelled; everything else in the source is ignored.
type Service struct {
	Image         string `json:"image,omitempty"`
	Build         *Build `json:"build,omitempty"`
	ContainerName string `json:"container_name,omitempty"`

	// NetworkMode is kept verbatim ("host", "service:vpn", ...)
	NetworkMode string `json:"network_mode,omitempty"`

	Ports     Field `json:"ports"`
	Networks  Field `json:"networks"`
	Volumes   Field `json:"volumes"`
	DependsOn Field `json:"depends_on"`
	EnvFile   Field `json:"env_file"`
	Secrets   Field `json:"secrets"`
	Configs   Field `json:"configs"`
}

// Build is the build section of a service. A service with a Build, even an
// empty one, counts as buildable.
type Build struct {
	Context    string `json:"context,omitempty"`
	Dockerfile string `json:"dockerfile,omitempty"`
}

// Network is a top-level network definition. A nil *Network inside
// Document.Networks means "declared with default settings".
type Network struct {
	Driver   string            `json:"driver,omitempty"`
	External bool              `json:"external,omitempty"`
	Internal bool              `json:"internal,omitempty"`
	Name     string            `json:"name,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Volume is a top-level volume definition.
type Volume struct {
	Driver   string            `json:"driver,omitempty"`
	External bool              `json:"external,omitempty"`
	Name     string            `json:"name,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Resource is a top-level secret or config definition.
type Resource struct {
	File     string            `json:"file,omitempty"`
	Name     string            `json:"name,omitempty"`
	External bool              `json:"external,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Shape tags which form a polymorphic compose field took in the source.
type Shape int

const (
	ShapeAbsent Shape = iota
	ShapeSequence
	ShapeMapping
	ShapeScalar
	ShapeOther
)

func (s Shape) String() string {
	switch s {
	case ShapeAbsent:
		return "absent"
	case ShapeSequence:
		return "sequence"
	case ShapeMapping:
		return "mapping"
	case ShapeScalar:
		return "scalar"
	default:
		return "other"
	}
}

// Field is a tagged variant for fields that compose allows as a list, a
// mapping or a scalar. Items holds sequence entries as strings, mapping
// keys in document order, or the single scalar value.
type Field struct {
	Shape Shape    `json:"shape"`
	Items []string `json:"items,omitempty"`
}

// Sequence builds a sequence-shaped field.
func Sequence(items ...string) Field {
	return Field{Shape: ShapeSequence, Items: items}
}

// Mapping builds a mapping-shaped field from ordered keys.
func Mapping(keys ...string) Field {
	return Field{Shape: ShapeMapping, Items: keys}
}

// Scalar builds a scalar-shaped field.
func Scalar(value string) Field {
	return Field{Shape: ShapeScalar, Items: []string{value}}
}

// IsAbsent reports whether the field was missing or null in the source.
func (f Field) IsAbsent() bool {
	return f.Shape == ShapeAbsent
}
