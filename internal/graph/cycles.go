package graph

// visit states for the cycle search
const (
	unvisited = iota
	onStack
	done
)

// HasCycles checks if the graph contains any circular dependencies.
func (g *Graph) HasCycles() bool {
	return g.FindCycle() != nil
}

// FindCycle returns the first cycle found, walking nodes in insertion order.
// The path starts and ends with the same node and follows dependency edges:
// [a b a] means a depends on b and b depends on a.
// Returns nil if no cycle exists. Dependencies on unknown nodes are ignored.
func (g *Graph) FindCycle() []string {
	state := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = onStack
		stack = append(stack, id)

		for _, dep := range g.Nodes[id].Dependencies {
			if _, known := g.Nodes[dep]; !known {
				continue
			}
			switch state[dep] {
			case onStack:
				return closeCycle(stack, dep)
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range g.order {
		if state[id] != unvisited {
			continue
		}
		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// closeCycle cuts the DFS stack at the first occurrence of start and appends
// start again to close the loop.
func closeCycle(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			cycle := make([]string, 0, len(stack)-i+1)
			cycle = append(cycle, stack[i:]...)
			return append(cycle, start)
		}
	}
	return nil
}
