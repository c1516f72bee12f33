// Package graph models service start-up dependencies of a compose document.
package graph

// Node is one service in the dependency graph.
type Node struct {
	ID string

	// Dependencies are the services this one must start after:
	// if web depends on db, db is in web's Dependencies.
	Dependencies []string

	// Metadata carries display hints such as image and container_name
	Metadata map[string]string
}

// Graph is a dependency graph of services. Every walk follows insertion
// order so results are deterministic.
type Graph struct {
	Nodes map[string]*Node

	// dependents is the reverse edge list: dependency -> services needing it
	dependents map[string][]string
	order      []string
}

func NewGraph() *Graph {
	return &Graph{
		Nodes:      make(map[string]*Node),
		dependents: make(map[string][]string),
	}
}

// AddNode inserts node, replacing any node with the same ID.
func (g *Graph) AddNode(node *Node) {
	if old, exists := g.Nodes[node.ID]; exists {
		for _, dep := range old.Dependencies {
			g.dependents[dep] = without(g.dependents[dep], node.ID)
		}
	} else {
		g.order = append(g.order, node.ID)
	}
	g.Nodes[node.ID] = node

	for _, dep := range node.Dependencies {
		g.dependents[dep] = append(g.dependents[dep], node.ID)
	}
}

func without(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	node, ok := g.Nodes[id]
	return node, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// IDs returns node IDs in insertion order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.order...)
}

// Dependents returns the services that depend on id, in insertion order.
func (g *Graph) Dependents(id string) []string {
	return append([]string{}, g.dependents[id]...)
}

// MissingDependencies maps each node to the dependencies that are not
// nodes of the graph.
func (g *Graph) MissingDependencies() map[string][]string {
	missing := make(map[string][]string)
	for _, id := range g.order {
		for _, dep := range g.Nodes[id].Dependencies {
			if _, ok := g.Nodes[dep]; !ok {
				missing[id] = append(missing[id], dep)
			}
		}
	}
	return missing
}
