package validator

import (
	"sort"

	"bmadflow/internal/definition"
)

// buildDependencyGraph returns, for every step, the indices of the steps
// that create an artifact it requires. Self-edges are dropped.
func buildDependencyGraph(steps []definition.Step) [][]int {
	creators := make(map[string][]int)
	for i, step := range steps {
		if step.Creates != "" {
			creators[step.Creates] = append(creators[step.Creates], i)
		}
	}

	graph := make([][]int, len(steps))
	for i, step := range steps {
		seen := make(map[int]bool)
		for _, req := range step.Requires {
			for _, j := range creators[req] {
				if j == i || seen[j] {
					continue
				}
				seen[j] = true
				graph[i] = append(graph[i], j)
			}
		}
		sort.Ints(graph[i])
	}
	return graph
}

type visitState uint8

const (
	unvisited visitState = iota
	onStack
	done
)

// frame is one entry of the explicit DFS stack: a node and the position of
// the next edge to explore.
type frame struct {
	node int
	next int
}

// findCycle runs an iterative depth-first search and returns the first cycle
// found as a node path that starts and ends on the same node, or nil.
func findCycle(graph [][]int) []int {
	state := make([]visitState, len(graph))
	var stack []frame

	for root := range graph {
		if state[root] != unvisited {
			continue
		}
		stack = append(stack[:0], frame{node: root})
		state[root] = onStack

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(graph[top.node]) {
				state[top.node] = done
				stack = stack[:len(stack)-1]
				continue
			}

			neighbor := graph[top.node][top.next]
			top.next++

			switch state[neighbor] {
			case onStack:
				return cyclePath(stack, neighbor)
			case unvisited:
				state[neighbor] = onStack
				stack = append(stack, frame{node: neighbor})
			}
		}
	}
	return nil
}

// cyclePath extracts the cycle closed by a back-edge into target.
func cyclePath(stack []frame, target int) []int {
	start := 0
	for i, f := range stack {
		if f.node == target {
			start = i
			break
		}
	}
	path := make([]int, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.node)
	}
	return append(path, target)
}
