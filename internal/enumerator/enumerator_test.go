package enumerator

import (
	"testing"

	"github.com/arlobrook/paramgraph/internal/graph"
	"github.com/stretchr/testify/require"
)

func sealGraph(t *testing.T, build func(b *graph.Builder)) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	build(b)
	g, err := b.Seal()
	require.NoError(t, err)
	return g
}

func TestEnumerateSingleDirectMethod(t *testing.T) {
	t.Parallel()

	g := sealGraph(t, func(b *graph.Builder) {
		require.NoError(t, b.AddSourceNode("raw"))
		require.NoError(t, b.AddParameterNode("p_out", graph.Layer))
		require.NoError(t, b.AddEdge("raw", "p_out", "direct"))
	})

	e, err := New(g)
	require.NoError(t, err)

	trees, err := e.Enumerate("p_out")
	require.NoError(t, err)
	require.Len(t, trees, 1)

	fp := e.Fingerprint(trees[0])
	require.Equal(t, Fingerprint{{Parameter: "p_out", MethodID: "direct"}}, fp)
}

func TestEnumerateParameterORAlternatives(t *testing.T) {
	t.Parallel()

	g := sealGraph(t, func(b *graph.Builder) {
		require.NoError(t, b.AddSourceNode("raw"))
		require.NoError(t, b.AddParameterNode("density", graph.Layer))
		require.NoError(t, b.AddEdge("raw", "density", "method_a"))
		require.NoError(t, b.AddEdge("raw", "density", "method_b"))
	})

	e, err := New(g)
	require.NoError(t, err)

	trees, err := e.Enumerate("density")
	require.NoError(t, err)
	require.Len(t, trees, 2)

	var methods []string
	for _, tr := range trees {
		methods = append(methods, e.Fingerprint(tr)[0].MethodID)
	}
	require.ElementsMatch(t, []string{"method_a", "method_b"}, methods)
}

func TestEnumerateMergeCartesianProduct(t *testing.T) {
	t.Parallel()

	g := sealGraph(t, func(b *graph.Builder) {
		require.NoError(t, b.AddSourceNode("raw"))
		require.NoError(t, b.AddParameterNode("a", graph.Layer))
		require.NoError(t, b.AddParameterNode("b", graph.Layer))
		require.NoError(t, b.AddEdge("raw", "a", "a1"))
		require.NoError(t, b.AddEdge("raw", "a", "a2"))
		require.NoError(t, b.AddEdge("raw", "b", "b1"))
		require.NoError(t, b.AddMergeNode("m"))
		require.NoError(t, b.AddEdge("a", "m", graph.DataFlow))
		require.NoError(t, b.AddEdge("b", "m", graph.DataFlow))
		require.NoError(t, b.AddParameterNode("t", graph.Layer))
		require.NoError(t, b.AddEdge("m", "t", "combine"))
	})

	e, err := New(g)
	require.NoError(t, err)

	trees, err := e.Enumerate("t")
	require.NoError(t, err)
	// 2 choices for a * 1 choice for b = 2 distinct fingerprints.
	require.Len(t, trees, 2)
}

func TestFingerprintDeduplicationCollapsesSharedSubtree(t *testing.T) {
	t.Parallel()

	// p2 depends on both E(p1) and nu(p1) through a merge; a single p1
	// method choice must not produce two distinct trees for p2.
	g := sealGraph(t, func(b *graph.Builder) {
		require.NoError(t, b.AddSourceNode("raw"))
		require.NoError(t, b.AddParameterNode("p1", graph.Layer))
		require.NoError(t, b.AddEdge("raw", "p1", "density_method"))
		require.NoError(t, b.AddParameterNode("e", graph.Layer))
		require.NoError(t, b.AddEdge("p1", "e", "e_method"))
		require.NoError(t, b.AddParameterNode("nu", graph.Layer))
		require.NoError(t, b.AddEdge("p1", "nu", "nu_method"))
		require.NoError(t, b.AddMergeNode("m"))
		require.NoError(t, b.AddEdge("e", "m", graph.DataFlow))
		require.NoError(t, b.AddEdge("nu", "m", graph.DataFlow))
		require.NoError(t, b.AddParameterNode("p2", graph.Layer))
		require.NoError(t, b.AddEdge("m", "p2", "p2_method"))
	})

	e, err := New(g)
	require.NoError(t, err)

	trees, err := e.Enumerate("p2")
	require.NoError(t, err)
	require.Len(t, trees, 1)

	seen := make(map[string]struct{})
	for _, tr := range trees {
		seen[e.Fingerprint(tr).Key()] = struct{}{}
	}
	require.Len(t, seen, len(trees))
}

func TestEnumerateUnknownTargetFails(t *testing.T) {
	t.Parallel()

	g := sealGraph(t, func(b *graph.Builder) {
		require.NoError(t, b.AddSourceNode("raw"))
	})

	e, err := New(g)
	require.NoError(t, err)

	_, err = e.Enumerate("ghost")
	require.Error(t, err)
}

func TestPrecomputeFillsMemoForAllLeveledParameters(t *testing.T) {
	t.Parallel()

	g := sealGraph(t, func(b *graph.Builder) {
		require.NoError(t, b.AddSourceNode("raw"))
		require.NoError(t, b.AddParameterNode("density", graph.Layer))
		require.NoError(t, b.AddEdge("raw", "density", "m1"))
	})

	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Precompute())

	require.Contains(t, e.memo, "density")
}
