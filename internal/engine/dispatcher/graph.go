package dispatcher

import (
	"slices"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/zerr"
)

// graph is the dependency graph of one dispatch, indexed by action ID.
type graph struct {
	actions    map[domain.ActionID]Action
	order      []domain.ActionID
	deps       map[domain.ActionID][]domain.ActionID
	dependents map[domain.ActionID][]domain.ActionID
}

// newGraph indexes actions by ID. Dependencies on actions outside the set are
// ignored: they were settled by an earlier dispatch or never existed.
func newGraph(actions []Action) *graph {
	g := &graph{
		actions:    make(map[domain.ActionID]Action, len(actions)),
		deps:       make(map[domain.ActionID][]domain.ActionID, len(actions)),
		dependents: make(map[domain.ActionID][]domain.ActionID, len(actions)),
	}
	for _, a := range actions {
		if _, dup := g.actions[a.ID()]; dup {
			continue
		}
		g.actions[a.ID()] = a
		g.order = append(g.order, a.ID())
	}

	for _, id := range g.order {
		for _, dep := range g.actions[id].Dependencies() {
			if _, ok := g.actions[dep]; !ok || dep == id || slices.Contains(g.deps[id], dep) {
				continue
			}
			g.deps[id] = append(g.deps[id], dep)
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}
	return g
}

// validate checks for cycles with a depth-first walk in ID order.
func (g *graph) validate() error {
	visited := make(map[domain.ActionID]int, len(g.order)) // 0: unvisited, 1: visiting, 2: visited
	var path []domain.ActionID

	var visit func(u domain.ActionID) error
	visit = func(u domain.ActionID) error {
		visited[u] = 1
		path = append(path, u)

		for _, dep := range g.deps[u] {
			if visited[dep] == 1 {
				return g.cycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		return nil
	}

	ids := slices.Clone(g.order)
	slices.Sort(ids)
	for _, id := range ids {
		if visited[id] == 0 {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *graph) cycleError(path []domain.ActionID, dep domain.ActionID) error {
	start := slices.Index(path, dep)
	cycle := ""
	for _, id := range path[start:] {
		cycle += g.actions[id].Name() + " -> "
	}
	cycle += g.actions[dep].Name()
	return zerr.With(zerr.Wrap(domain.ErrCycleDetected, "invalid action graph"), "cycle", cycle)
}

// inDegrees counts the unfinished dependencies of every action.
func (g *graph) inDegrees() map[domain.ActionID]int {
	degrees := make(map[domain.ActionID]int, len(g.order))
	for _, id := range g.order {
		degrees[id] = len(g.deps[id])
	}
	return degrees
}
