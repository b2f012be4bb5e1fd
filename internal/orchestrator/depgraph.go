package orchestrator

import "sort"

// paramDepGraph orders the parameters of one chosen derivation tree so that
// every parameter is computed after everything it reads from. It is built
// fresh per pathway from the tree's edges; dependency direction is
// "dependent -> depended-upon", mirroring how a derivation tree records
// which parameters an applied method consumed.
type paramDepGraph struct {
	nodes    map[string]struct{}
	outgoing map[string]map[string]struct{} // dependent -> set of dependencies
	incoming map[string]map[string]struct{} // dependency -> set of dependents
}

func newParamDepGraph() *paramDepGraph {
	return &paramDepGraph{
		nodes:    make(map[string]struct{}),
		outgoing: make(map[string]map[string]struct{}),
		incoming: make(map[string]map[string]struct{}),
	}
}

func (g *paramDepGraph) addNode(name string) {
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = struct{}{}
	g.outgoing[name] = make(map[string]struct{})
	g.incoming[name] = make(map[string]struct{})
}

// addDependency records that dependent reads the value of dependency.
func (g *paramDepGraph) addDependency(dependent, dependency string) {
	g.addNode(dependent)
	g.addNode(dependency)
	g.outgoing[dependent][dependency] = struct{}{}
	g.incoming[dependency][dependent] = struct{}{}
}

// order returns nodes such that every dependency precedes its dependents,
// ties broken by name for determinism (spec §5.2: "topological order ...
// tie-break by name").
func (g *paramDepGraph) order() []string {
	remaining := make(map[string]int, len(g.nodes))
	for node := range g.nodes {
		remaining[node] = len(g.outgoing[node])
	}

	var ready []string
	for node, deps := range remaining {
		if deps == 0 {
			ready = append(ready, node)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		result = append(result, current)

		dependents := make([]string, 0, len(g.incoming[current]))
		for d := range g.incoming[current] {
			dependents = append(dependents, d)
		}
		sort.Strings(dependents)

		for _, dependent := range dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
				sort.Strings(ready)
			}
		}
	}

	return result
}
