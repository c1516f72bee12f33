package graph

import (
	"errors"
)

// ErrCycle is returned when an order is requested for a cyclic graph.
var ErrCycle = errors.New("cycle detected in dependency graph")

// TopologicalSort returns nodes in dependency order using Kahn's algorithm.
// Nodes with no dependencies come first, then nodes that depend on them, etc.
// Among nodes that are ready at the same time, the earlier-inserted wins.
// Dependencies on nodes outside the graph are ignored.
// Returns ErrCycle if the graph contains cycles.
func (g *Graph) TopologicalSort() ([]string, error) {
	// In-degree counts only dependencies that exist in the graph
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		seen := make(map[string]bool)
		for _, depID := range g.Nodes[id].Dependencies {
			if _, exists := g.Nodes[depID]; exists && !seen[depID] {
				seen[depID] = true
				inDegree[id]++
			}
		}
	}

	done := make(map[string]bool, len(g.order))
	sorted := make([]string, 0, len(g.order))

	for len(sorted) < len(g.order) {
		next := ""
		for _, id := range g.order {
			if !done[id] && inDegree[id] == 0 {
				next = id
				break
			}
		}
		if next == "" {
			return nil, ErrCycle
		}

		done[next] = true
		sorted = append(sorted, next)

		notified := make(map[string]bool)
		for _, dependent := range g.Dependents(next) {
			if _, exists := g.Nodes[dependent]; !exists || notified[dependent] {
				continue
			}
			notified[dependent] = true
			inDegree[dependent]--
		}
	}

	return sorted, nil
}

// StartOrder returns the order in which services should be started:
// dependencies first.
func (g *Graph) StartOrder() ([]string, error) {
	return g.TopologicalSort()
}

// StopOrder returns the order in which services should be stopped.
// This is the REVERSE of start order - dependents first.
func (g *Graph) StopOrder() ([]string, error) {
	startOrder, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	stopOrder := make([]string, len(startOrder))
	for i, j := 0, len(startOrder)-1; i < len(startOrder); i, j = i+1, j-1 {
		stopOrder[i] = startOrder[j]
	}

	return stopOrder, nil
}
