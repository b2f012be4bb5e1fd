// Package enumerator computes, for a target parameter node, every distinct
// derivation tree rooted at that target and grounded at the graph's source
// node (spec §4.2): a pure backward recursion over the sealed graph with
// memoization and method-fingerprint deduplication.
package enumerator

import (
	"sort"
	"strings"

	"github.com/arlobrook/paramgraph/internal/graph"
	paramerrors "github.com/arlobrook/paramgraph/pkg/errors"
)

// ChildEdge pairs a chosen incoming edge's label with the subtree it leads
// to.
type ChildEdge struct {
	Label string
	Child *Tree
}

// Tree is a concrete derivation tree: a node name and the ordered list of
// (child, edge label) pairs committed to at that node. Parameter nodes
// other than the source have exactly one child; merge nodes have one child
// per incoming edge; the source has none.
type Tree struct {
	Node     string
	Children []ChildEdge
}

// MethodChoice is one (parameter, method_id) commitment recorded while
// walking a tree.
type MethodChoice struct {
	Parameter string
	MethodID  string
}

// Fingerprint is the sorted list of MethodChoice pairs a tree commits to
// (spec §4.2). Two trees with equal fingerprints are semantically
// identical executions.
type Fingerprint []MethodChoice

// Key renders the fingerprint as a stable string for deduplication and
// equality checks.
func (f Fingerprint) Key() string {
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = c.Parameter + "=" + c.MethodID
	}
	return strings.Join(parts, "|")
}

// Enumerator computes and memoizes derivation trees for a sealed graph. Not
// safe for concurrent first-use of the same target; the memo is expected to
// be populated by a single goroutine at startup or lazily before any
// concurrent readers exist (spec §5).
type Enumerator struct {
	g    *graph.Graph
	memo map[string][]*Tree
}

// New returns an enumerator bound to a sealed graph. The memo starts empty;
// entries are filled lazily by Enumerate unless Precompute is called.
func New(g *graph.Graph) (*Enumerator, error) {
	if !g.IsSealed() {
		return nil, paramerrors.NewGraphNotSealedError()
	}
	return &Enumerator{g: g, memo: make(map[string][]*Tree)}, nil
}

// Precompute eagerly enumerates every layer- and slab-level parameter node,
// trading startup latency for uniformly fast per-call lookups (spec §9
// Open Question 1 — calling it is left to the caller; without it, Enumerate
// fills the memo lazily per target).
func (e *Enumerator) Precompute() error {
	for _, level := range []graph.Level{graph.Layer, graph.Slab} {
		params, err := e.g.ParametersByLevel(level)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, err := e.Enumerate(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Enumerate returns every distinct derivation tree rooted at target,
// deduplicated by method fingerprint, in first-produced order.
func (e *Enumerator) Enumerate(target string) ([]*Tree, error) {
	if _, err := e.g.GetNode(target); err != nil {
		return nil, paramerrors.NewUnknownTargetError(target)
	}
	return e.enumerate(target)
}

func (e *Enumerator) enumerate(v string) ([]*Tree, error) {
	if trees, ok := e.memo[v]; ok {
		return trees, nil
	}

	node, err := e.g.GetNode(v)
	if err != nil {
		return nil, err
	}

	var out []*Tree
	switch {
	case v == e.g.Source():
		out = []*Tree{{Node: v}}
	case node.Kind == graph.Parameter:
		out, err = e.enumerateParameter(v)
	default:
		out, err = e.enumerateMerge(v)
	}
	if err != nil {
		return nil, err
	}

	out = e.deduplicate(out)
	e.memo[v] = out
	return out, nil
}

// enumerateParameter implements the OR branch: every incoming edge is an
// independent alternative.
func (e *Enumerator) enumerateParameter(v string) ([]*Tree, error) {
	var out []*Tree
	for _, edge := range e.g.Incoming(v) {
		subtrees, err := e.enumerate(edge.Source)
		if err != nil {
			return nil, err
		}
		for _, sub := range subtrees {
			out = append(out, &Tree{
				Node:     v,
				Children: []ChildEdge{{Label: edge.Label, Child: sub}},
			})
		}
	}
	return out, nil
}

// enumerateMerge implements the AND branch: the cartesian product of each
// incoming edge's alternative subtrees, one list per edge, preserving edge
// identity.
func (e *Enumerator) enumerateMerge(v string) ([]*Tree, error) {
	edges := e.g.Incoming(v)
	lists := make([][]ChildEdge, len(edges))
	for i, edge := range edges {
		subtrees, err := e.enumerate(edge.Source)
		if err != nil {
			return nil, err
		}
		branch := make([]ChildEdge, len(subtrees))
		for j, sub := range subtrees {
			branch[j] = ChildEdge{Label: edge.Label, Child: sub}
		}
		lists[i] = branch
	}

	var out []*Tree
	for _, combo := range cartesianProduct(lists) {
		out = append(out, &Tree{Node: v, Children: combo})
	}
	return out, nil
}

func cartesianProduct(lists [][]ChildEdge) [][]ChildEdge {
	if len(lists) == 0 {
		return nil
	}
	combos := [][]ChildEdge{{}}
	for _, list := range lists {
		var next [][]ChildEdge
		for _, combo := range combos {
			for _, item := range list {
				extended := make([]ChildEdge, len(combo)+1)
				copy(extended, combo)
				extended[len(combo)] = item
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}

// deduplicate collapses trees sharing a method fingerprint to the first
// one produced (spec §4.2).
func (e *Enumerator) deduplicate(trees []*Tree) []*Tree {
	seen := make(map[string]struct{}, len(trees))
	out := make([]*Tree, 0, len(trees))
	for _, t := range trees {
		key := e.Fingerprint(t).Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Fingerprint walks a tree and records, for each parameter node reached by
// a method edge, the (parameter, method_id) pair — skipping DataFlow edges
// and merge nodes — then returns the sorted result.
func (e *Enumerator) Fingerprint(t *Tree) Fingerprint {
	var choices []MethodChoice
	e.walkFingerprint(t, &choices)
	sort.Slice(choices, func(i, j int) bool {
		if choices[i].Parameter != choices[j].Parameter {
			return choices[i].Parameter < choices[j].Parameter
		}
		return choices[i].MethodID < choices[j].MethodID
	})
	return choices
}

func (e *Enumerator) walkFingerprint(t *Tree, out *[]MethodChoice) {
	node, err := e.g.GetNode(t.Node)
	if err != nil {
		return
	}
	for _, child := range t.Children {
		if node.Kind == graph.Parameter && child.Label != graph.DataFlow {
			*out = append(*out, MethodChoice{Parameter: t.Node, MethodID: child.Label})
		}
		e.walkFingerprint(child.Child, out)
	}
}
