// Package graph implements the immutable DAG of derivation rules: parameter
// nodes (OR logic — any one incoming edge suffices) and merge nodes (AND
// logic — every incoming edge must contribute). The graph is built once via
// a builder, validated and frozen by Seal, and is referentially transparent
// thereafter.
package graph

import (
	"fmt"
	"sort"

	paramerrors "github.com/arlobrook/paramgraph/pkg/errors"
)

// Kind tags a node as a Parameter (OR logic) or a Merge (AND logic).
type Kind int

const (
	// Parameter is an OR-logic node: any one incoming edge produces it.
	Parameter Kind = iota
	// Merge is an AND-logic node: every incoming edge must contribute.
	Merge
)

func (k Kind) String() string {
	switch k {
	case Parameter:
		return "parameter"
	case Merge:
		return "merge"
	default:
		return "unknown"
	}
}

// Level tags a parameter node as belonging to the per-sub-record (Layer)
// scope or the whole-record (Slab) scope. Source and intermediate merge
// nodes carry no level.
type Level int

const (
	// NoLevel marks a node with no level — the source node and merge nodes.
	NoLevel Level = iota
	// Layer marks a parameter computed per sub-record.
	Layer
	// Slab marks a parameter computed once per record.
	Slab
)

func (l Level) String() string {
	switch l {
	case Layer:
		return "layer"
	case Slab:
		return "slab"
	default:
		return "none"
	}
}

// DataFlow is the sentinel edge label for a pass-through/rename edge — no
// computation occurs along it.
const DataFlow = ""

// Node is a vertex in the graph: either a parameter (OR) or a merge (AND).
type Node struct {
	Name  string
	Kind  Kind
	Level Level
}

// Edge is a directed edge. Label is either a method identifier or the
// DataFlow sentinel.
type Edge struct {
	Source string
	Target string
	Label  string
}

// IsDataFlow reports whether this edge is a pass-through edge.
func (e Edge) IsDataFlow() bool {
	return e.Label == DataFlow
}

// Graph is the DAG of derivation rules. Construct with NewBuilder, finish
// with Builder.Seal, then use the read-only Graph methods.
type Graph struct {
	nodes    map[string]*Node
	incoming map[string][]Edge
	outgoing map[string][]Edge
	source   string

	sealed         bool
	byLevel        map[Level]map[string]struct{}
	cacheableNodes map[string]struct{}
}

// Builder assembles a Graph incrementally. It is not safe for concurrent
// use; callers build the graph once at startup on a single goroutine.
type Builder struct {
	g *Graph
}

// NewBuilder returns an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		g: &Graph{
			nodes:          make(map[string]*Node),
			incoming:       make(map[string][]Edge),
			outgoing:       make(map[string][]Edge),
			cacheableNodes: make(map[string]struct{}),
		},
	}
}

// AddSourceNode registers the single distinguished source node: a parameter
// node with no level. It fails with DuplicateNameError on collision.
func (b *Builder) AddSourceNode(name string) error {
	if err := b.addNode(name, Parameter, NoLevel); err != nil {
		return err
	}
	b.g.source = name
	return nil
}

// AddParameterNode registers a parameter (OR-logic) node at the given level.
func (b *Builder) AddParameterNode(name string, level Level) error {
	return b.addNode(name, Parameter, level)
}

// AddMergeNode registers a merge (AND-logic) node.
func (b *Builder) AddMergeNode(name string) error {
	return b.addNode(name, Merge, NoLevel)
}

func (b *Builder) addNode(name string, kind Kind, level Level) error {
	if b.g.sealed {
		return paramerrors.NewSealedGraphError("add node " + name)
	}
	if _, exists := b.g.nodes[name]; exists {
		return paramerrors.NewDuplicateNameError(name)
	}
	b.g.nodes[name] = &Node{Name: name, Kind: kind, Level: level}
	return nil
}

// AddEdge adds a directed edge. label is either a method identifier or
// graph.DataFlow. Structural rules (§3): edges into a merge node must be
// DataFlow; edges out of a merge node must carry a method identifier and
// target a parameter node.
func (b *Builder) AddEdge(source, target, label string) error {
	if b.g.sealed {
		return paramerrors.NewSealedGraphError("add edge " + source + "->" + target)
	}
	src, ok := b.g.nodes[source]
	if !ok {
		return paramerrors.NewMissingNodeError(source)
	}
	dst, ok := b.g.nodes[target]
	if !ok {
		return paramerrors.NewMissingNodeError(target)
	}

	if dst.Kind == Merge && label != DataFlow {
		return paramerrors.NewInvalidEdgeError(source, target, "edges into a merge node must be DataFlow")
	}
	if src.Kind == Merge {
		if label == DataFlow {
			return paramerrors.NewInvalidEdgeError(source, target, "edges out of a merge node must carry a method identifier")
		}
		if dst.Kind != Parameter {
			return paramerrors.NewInvalidEdgeError(source, target, "edges out of a merge node must target a parameter node")
		}
	}
	// Method identifiers are unique per target parameter regardless of the
	// source node's kind (spec §3); DataFlow edges are exempt since a merge
	// node legitimately has several DataFlow incoming edges.
	if label != DataFlow {
		for _, e := range b.g.incoming[target] {
			if e.Label == label {
				return paramerrors.NewDuplicateMethodError(target, label)
			}
		}
	}

	edge := Edge{Source: source, Target: target, Label: label}
	b.g.outgoing[source] = append(b.g.outgoing[source], edge)
	b.g.incoming[target] = append(b.g.incoming[target], edge)
	return nil
}

// MarkCacheable tags a layer-level parameter as cacheable across pathways
// within one execute_all run (spec §4.4, §9 Open Question 2). The default
// is not cacheable; graph builders opt individual parameters in explicitly.
func (b *Builder) MarkCacheable(parameter string) error {
	if b.g.sealed {
		return paramerrors.NewSealedGraphError("mark cacheable " + parameter)
	}
	if _, ok := b.g.nodes[parameter]; !ok {
		return paramerrors.NewMissingNodeError(parameter)
	}
	b.g.cacheableNodes[parameter] = struct{}{}
	return nil
}

// Seal finalizes the graph: verifies acyclicity via depth-first search,
// verifies structural invariants, precomputes the per-level parameter sets,
// and freezes the graph against further mutation.
func (b *Builder) Seal() (*Graph, error) {
	g := b.g
	if g.sealed {
		return g, nil
	}
	if g.source == "" {
		return nil, paramerrors.NewInvalidEdgeError("", "", "graph has no source node")
	}

	if err := g.verifyAcyclic(); err != nil {
		return nil, err
	}
	if err := g.verifyInvariants(); err != nil {
		return nil, err
	}

	g.byLevel = map[Level]map[string]struct{}{Layer: {}, Slab: {}}
	for name, n := range g.nodes {
		if n.Kind == Parameter && (n.Level == Layer || n.Level == Slab) {
			g.byLevel[n.Level][name] = struct{}{}
		}
	}

	g.sealed = true
	return g, nil
}

func (g *Graph) verifyAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	names := g.sortedNodeNames()

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		for _, e := range g.outgoing[name] {
			switch color[e.Target] {
			case white:
				if err := visit(e.Target); err != nil {
					return err
				}
			case gray:
				return paramerrors.NewInvalidEdgeError(e.Source, e.Target, "cycle detected")
			}
		}
		color[name] = black
		return nil
	}

	for _, name := range names {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) verifyInvariants() error {
	for _, name := range g.sortedNodeNames() {
		n := g.nodes[name]
		switch n.Kind {
		case Merge:
			in := g.incoming[name]
			if len(in) < 2 {
				return paramerrors.NewInvalidEdgeError("", name, "merge node requires at least two incoming edges")
			}
			for _, e := range in {
				if !e.IsDataFlow() {
					return paramerrors.NewInvalidEdgeError(e.Source, e.Target, "merge node incoming edges must be DataFlow")
				}
			}
		case Parameter:
			if name == g.source {
				continue
			}
			if len(g.incoming[name]) == 0 {
				return paramerrors.NewInvalidEdgeError("", name, "parameter node other than the source requires at least one incoming edge")
			}
		}
	}

	reachable := g.reachableFromLeveledParameters()
	for _, name := range g.sortedNodeNames() {
		if name == g.source {
			continue
		}
		if _, ok := reachable[name]; !ok {
			return paramerrors.NewInvalidEdgeError("", name, "node is not reachable backward from any leveled parameter node")
		}
	}
	return nil
}

func (g *Graph) reachableFromLeveledParameters() map[string]struct{} {
	reached := make(map[string]struct{})
	var visit func(name string)
	visit = func(name string) {
		if _, ok := reached[name]; ok {
			return
		}
		reached[name] = struct{}{}
		for _, e := range g.incoming[name] {
			visit(e.Source)
		}
	}
	for _, name := range g.sortedNodeNames() {
		n := g.nodes[name]
		if n.Kind == Parameter && (n.Level == Layer || n.Level == Slab) {
			visit(name)
		}
	}
	return reached
}

func (g *Graph) sortedNodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetNode looks up a node by name.
func (g *Graph) GetNode(name string) (*Node, error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, paramerrors.NewUnknownNodeError(name)
	}
	return n, nil
}

// Incoming returns the edges terminating at name, in insertion order.
func (g *Graph) Incoming(name string) []Edge {
	return append([]Edge(nil), g.incoming[name]...)
}

// Outgoing returns the edges originating at name, in insertion order.
func (g *Graph) Outgoing(name string) []Edge {
	return append([]Edge(nil), g.outgoing[name]...)
}

// Source returns the name of the distinguished source node.
func (g *Graph) Source() string {
	return g.source
}

// IsSealed reports whether Seal has completed successfully on this graph.
func (g *Graph) IsSealed() bool {
	return g.sealed
}

// IsCacheable reports whether the named parameter was marked cacheable by
// the builder.
func (g *Graph) IsCacheable(parameter string) bool {
	_, ok := g.cacheableNodes[parameter]
	return ok
}

// ParametersByLevel returns the derived view of parameter names at the
// given level, computed once at seal time.
func (g *Graph) ParametersByLevel(level Level) (map[string]struct{}, error) {
	if !g.sealed {
		return nil, paramerrors.NewGraphNotSealedError()
	}
	out := make(map[string]struct{}, len(g.byLevel[level]))
	for name := range g.byLevel[level] {
		out[name] = struct{}{}
	}
	return out, nil
}

// Describe renders a short human-readable summary, useful for diagnostics.
func (g *Graph) Describe() string {
	return fmt.Sprintf("graph{nodes=%d, source=%q, sealed=%t}", len(g.nodes), g.source, g.sealed)
}
