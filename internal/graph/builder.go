package graph

import (
	"strings"

	"github.com/chis/stackcheck/internal/compose"
)

// NetworkModeServicePrefix marks a network_mode that joins another
// service's network namespace, e.g. "service:vpn".
const NetworkModeServicePrefix = "service:"

// BuildFromDocument creates a dependency graph with one node per service.
// Edges come from depends_on and from network_mode: service:<name>.
// Nodes are added in document order.
func BuildFromDocument(doc *compose.Document) *Graph {
	graph := NewGraph()
	if doc == nil {
		return graph
	}

	doc.Services.Each(func(name string, svc *compose.Service) {
		graph.AddNode(serviceToNode(name, svc))
	})

	return graph
}

func serviceToNode(name string, svc *compose.Service) *Node {
	if svc == nil {
		svc = &compose.Service{}
	}

	node := &Node{
		ID:           name,
		Dependencies: parseDependencies(svc),
		Metadata: map[string]string{
			"image":          svc.Image,
			"container_name": svc.ContainerName,
			"network_mode":   svc.NetworkMode,
		},
	}
	if svc.Build != nil {
		node.Metadata["build"] = svc.Build.Context
	}

	return node
}

// parseDependencies merges depends_on with the network_mode dependency,
// dropping duplicates.
func parseDependencies(svc *compose.Service) []string {
	deps := []string{}
	seen := make(map[string]bool)

	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		deps = append(deps, name)
	}

	for _, d := range compose.NormalizeRelation(svc.DependsOn) {
		add(d)
	}
	add(NetworkModeDependency(svc.NetworkMode))

	return deps
}

// NetworkModeDependency returns the service name if networkMode is
// "service:X", empty string otherwise.
func NetworkModeDependency(networkMode string) string {
	if strings.HasPrefix(networkMode, NetworkModeServicePrefix) {
		return strings.TrimPrefix(networkMode, NetworkModeServicePrefix)
	}
	return ""
}
