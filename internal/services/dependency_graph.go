package services

import "fintrack/internal/core"

// DependencyGraph maps a goal id to the ids of its prerequisites.
type DependencyGraph map[string][]string

func NewDependencyGraph(goals []core.Goal) DependencyGraph {
	g := make(DependencyGraph, len(goals))
	for _, goal := range goals {
		g[goal.ID] = append([]string(nil), goal.DependencyGoalIDs...)
	}
	return g
}

// Reaches reports whether to can be reached from from by following
// prerequisite edges. from reaches itself.
func (g DependencyGraph) Reaches(from, to string) bool {
	stack := []string{from}
	visited := map[string]bool{}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, g[id]...)
	}
	return false
}

// WouldCycle reports whether adding the edge goalID -> depID closes a cycle,
// i.e. whether goalID is already a prerequisite of depID.
func (g DependencyGraph) WouldCycle(goalID, depID string) bool {
	return g.Reaches(depID, goalID)
}
