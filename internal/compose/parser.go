package compose

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidYAML is returned when the input is not well-formed YAML.
var ErrInvalidYAML = errors.New("invalid YAML syntax")

// ParseError wraps an error with the YAML path where it happened.
type ParseError struct {
	Path    string // e.g. "services.web.ports"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadFile reads a compose file from disk and parses it.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file %s: %w", path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse compose file %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes compose YAML into a Document.
//
// Parsing is tolerant: only malformed YAML text is an error. Unknown keys
// are ignored, and sections with an unexpected shape are kept as tagged
// fields (or skipped) so a half-edited file still yields a usable document.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Message: err.Error(), Err: ErrInvalidYAML}
	}

	doc := NewDocument()

	top := resolve(&root)
	if top == nil || top.Kind != yaml.MappingNode {
		return doc, nil
	}

	for _, p := range pairs(top) {
		switch p.key {
		case "name":
			doc.Name = scalarValue(p.value)
		case "services":
			for _, sp := range pairs(p.value) {
				doc.Services.Set(sp.key, parseService(sp.value))
			}
		case "networks":
			for _, np := range pairs(p.value) {
				doc.Networks.Set(np.key, parseNetwork(np.value))
			}
		case "volumes":
			for _, vp := range pairs(p.value) {
				doc.Volumes.Set(vp.key, parseVolume(vp.value))
			}
		case "secrets":
			for _, rp := range pairs(p.value) {
				doc.Secrets.Set(rp.key, parseResource(rp.value))
			}
		case "configs":
			for _, rp := range pairs(p.value) {
				doc.Configs.Set(rp.key, parseResource(rp.value))
			}
		}
	}

	return doc, nil
}

func parseService(node *yaml.Node) *Service {
	svc := &Service{}

	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return svc
	}

	for _, p := range pairs(node) {
		switch p.key {
		case "image":
			svc.Image = scalarValue(p.value)
		case "build":
			svc.Build = parseBuild(p.value)
		case "container_name":
			svc.ContainerName = scalarValue(p.value)
		case "network_mode":
			svc.NetworkMode = scalarValue(p.value)
		case "ports":
			svc.Ports = parseField(p.value, renderPort)
		case "networks":
			svc.Networks = parseField(p.value, renderScalar)
		case "volumes":
			svc.Volumes = parseField(p.value, renderVolume)
		case "depends_on":
			svc.DependsOn = parseField(p.value, renderScalar)
		case "env_file":
			svc.EnvFile = parseField(p.value, renderEnvFile)
			// env_file: .env is shorthand for a one-element list
			if svc.EnvFile.Shape == ShapeScalar {
				svc.EnvFile = Sequence(svc.EnvFile.Items...)
			}
		case "secrets":
			svc.Secrets = parseField(p.value, renderSource)
		case "configs":
			svc.Configs = parseField(p.value, renderSource)
		}
	}

	return svc
}

func parseBuild(node *yaml.Node) *Build {
	node = resolve(node)
	if isNull(node) {
		return nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return &Build{Context: node.Value}
	case yaml.MappingNode:
		b := &Build{}
		for _, p := range pairs(node) {
			switch p.key {
			case "context":
				b.Context = scalarValue(p.value)
			case "dockerfile":
				b.Dockerfile = scalarValue(p.value)
			}
		}
		return b
	default:
		return &Build{}
	}
}

func parseNetwork(node *yaml.Node) *Network {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	n := &Network{}
	for _, p := range pairs(node) {
		switch p.key {
		case "driver":
			n.Driver = scalarValue(p.value)
		case "external":
			n.External = parseExternal(p.value)
		case "internal":
			n.Internal = boolValue(p.value)
		case "name":
			n.Name = scalarValue(p.value)
		case "labels":
			n.Labels = parseLabels(p.value)
		}
	}
	return n
}

func parseVolume(node *yaml.Node) *Volume {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	v := &Volume{}
	for _, p := range pairs(node) {
		switch p.key {
		case "driver":
			v.Driver = scalarValue(p.value)
		case "external":
			v.External = parseExternal(p.value)
		case "name":
			v.Name = scalarValue(p.value)
		case "labels":
			v.Labels = parseLabels(p.value)
		}
	}
	return v
}

func parseResource(node *yaml.Node) *Resource {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	r := &Resource{}
	for _, p := range pairs(node) {
		switch p.key {
		case "file":
			r.File = scalarValue(p.value)
		case "name":
			r.Name = scalarValue(p.value)
		case "external":
			r.External = parseExternal(p.value)
		case "labels":
			r.Labels = parseLabels(p.value)
		}
	}
	return r
}

// parseExternal accepts both "external: true" and the legacy
// "external: {name: foo}" form.
func parseExternal(node *yaml.Node) bool {
	node = resolve(node)
	if node == nil {
		return false
	}
	if node.Kind == yaml.MappingNode {
		return true
	}
	return boolValue(node)
}

// parseLabels accepts a mapping or a list of "key=value" strings.
func parseLabels(node *yaml.Node) map[string]string {
	node = resolve(node)
	if node == nil {
		return nil
	}

	labels := make(map[string]string)
	switch node.Kind {
	case yaml.MappingNode:
		for _, p := range pairs(node) {
			labels[p.key] = scalarValue(p.value)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			entry := scalarValue(item)
			if entry == "" {
				continue
			}
			key, value, _ := strings.Cut(entry, "=")
			labels[key] = value
		}
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
}

// parseField converts a polymorphic node into a tagged Field. Sequence
// entries are rendered with render; entries it rejects are dropped.
func parseField(node *yaml.Node, render func(*yaml.Node) (string, bool)) Field {
	node = resolve(node)
	if isNull(node) {
		return Field{}
	}

	switch node.Kind {
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if s, ok := render(resolve(item)); ok {
				out = append(out, s)
			}
		}
		return Sequence(out...)
	case yaml.MappingNode:
		ps := pairs(node)
		keys := make([]string, 0, len(ps))
		for _, p := range ps {
			keys = append(keys, p.key)
		}
		return Mapping(keys...)
	case yaml.ScalarNode:
		return Scalar(node.Value)
	default:
		return Field{Shape: ShapeOther}
	}
}

func renderScalar(node *yaml.Node) (string, bool) {
	if node == nil || node.Kind != yaml.ScalarNode || isNull(node) {
		return "", false
	}
	return node.Value, true
}

// renderPort converts long-syntax ports to "[host_ip:]published:target[/protocol]".
func renderPort(node *yaml.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	if node.Kind != yaml.MappingNode {
		return renderScalar(node)
	}

	var hostIP, published, target, protocol string
	for _, p := range pairs(node) {
		switch p.key {
		case "host_ip":
			hostIP = scalarValue(p.value)
		case "published":
			published = scalarValue(p.value)
		case "target":
			target = scalarValue(p.value)
		case "protocol":
			protocol = scalarValue(p.value)
		}
	}
	if target == "" {
		return "", false
	}

	var sb strings.Builder
	if published != "" {
		if hostIP != "" {
			sb.WriteString(hostIP)
			sb.WriteByte(':')
		}
		sb.WriteString(published)
		sb.WriteByte(':')
	}
	sb.WriteString(target)
	if protocol != "" {
		sb.WriteByte('/')
		sb.WriteString(protocol)
	}
	return sb.String(), true
}

// renderVolume converts long-syntax mounts to "source:target[:ro]".
// Mounts without a source (anonymous volumes, tmpfs) are dropped.
func renderVolume(node *yaml.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	if node.Kind != yaml.MappingNode {
		return renderScalar(node)
	}

	var source, target string
	var readOnly bool
	for _, p := range pairs(node) {
		switch p.key {
		case "source":
			source = scalarValue(p.value)
		case "target":
			target = scalarValue(p.value)
		case "read_only":
			readOnly = boolValue(p.value)
		}
	}
	if source == "" {
		return "", false
	}

	out := source
	if target != "" {
		out += ":" + target
	}
	if readOnly {
		out += ":ro"
	}
	return out, true
}

// renderSource handles secret and config references, {source: x} -> x.
func renderSource(node *yaml.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	if node.Kind != yaml.MappingNode {
		return renderScalar(node)
	}
	for _, p := range pairs(node) {
		if p.key == "source" {
			s := scalarValue(p.value)
			return s, s != ""
		}
	}
	return "", false
}

// renderEnvFile handles the {path, required} form.
func renderEnvFile(node *yaml.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	if node.Kind != yaml.MappingNode {
		return renderScalar(node)
	}
	for _, p := range pairs(node) {
		if p.key == "path" {
			s := scalarValue(p.value)
			return s, s != ""
		}
	}
	return "", false
}

type pair struct {
	key   string
	value *yaml.Node
}

// pairs returns the key/value pairs of a mapping node in document order,
// with "<<" merge keys expanded. Keys set explicitly win over merged ones.
func pairs(node *yaml.Node) []pair {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	explicit := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if !isMergeKey(node.Content[i]) {
			explicit[node.Content[i].Value] = true
		}
	}

	seen := make(map[string]bool)
	var out []pair
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if isMergeKey(keyNode) {
			for _, src := range mergeSources(valueNode) {
				for _, mp := range pairs(src) {
					if explicit[mp.key] || seen[mp.key] {
						continue
					}
					seen[mp.key] = true
					out = append(out, mp)
				}
			}
			continue
		}

		if seen[keyNode.Value] {
			continue
		}
		seen[keyNode.Value] = true
		out = append(out, pair{key: keyNode.Value, value: valueNode})
	}
	return out
}

func mergeSources(node *yaml.Node) []*yaml.Node {
	node = resolve(node)
	if node == nil {
		return nil
	}
	switch node.Kind {
	case yaml.MappingNode:
		return []*yaml.Node{node}
	case yaml.SequenceNode:
		out := make([]*yaml.Node, 0, len(node.Content))
		for _, item := range node.Content {
			if m := resolve(item); m != nil && m.Kind == yaml.MappingNode {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func isMergeKey(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Value == "<<" && node.ShortTag() == "!!merge"
}

// resolve unwraps document and alias nodes.
func resolve(node *yaml.Node) *yaml.Node {
	for depth := 0; node != nil && depth < 32; depth++ {
		switch node.Kind {
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return nil
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		default:
			return node
		}
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null")
}

func scalarValue(node *yaml.Node) string {
	node = resolve(node)
	if node == nil || node.Kind != yaml.ScalarNode || isNull(node) {
		return ""
	}
	return node.Value
}

func boolValue(node *yaml.Node) bool {
	switch strings.ToLower(scalarValue(node)) {
	case "true", "yes", "on":
		return true
	default:
		return false
	}
}
