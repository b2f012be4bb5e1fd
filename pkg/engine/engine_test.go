package engine

import (
	"testing"

	"github.com/arlobrook/paramgraph/pkg/uncertain"
	"github.com/stretchr/testify/require"
)

// buildDensityEngine assembles a tiny two-method OR graph for "density",
// mirroring the direct-method and alternative-method scenarios.
func buildDensityEngine(t *testing.T) *Engine {
	t.Helper()

	gb := NewGraphBuilder()
	require.NoError(t, gb.AddSourceNode("raw"))
	require.NoError(t, gb.AddParameterNode("density", Layer))
	require.NoError(t, gb.AddEdge("raw", "density", "archie"))
	require.NoError(t, gb.AddEdge("raw", "density", "gardner"))
	g, err := gb.Seal()
	require.NoError(t, err)

	rb := NewRegistryBuilder()
	require.NoError(t, rb.Register(MethodSpec{
		Parameter: "density", MethodID: "archie", Level: Layer,
		RequiredInputs: []string{"resistivity"},
		Callable: func(in Inputs, _ bool) (uncertain.Value, error) {
			return in.Values["resistivity"].Mul(uncertain.Exact(2)), nil
		},
	}))
	require.NoError(t, rb.Register(MethodSpec{
		Parameter: "density", MethodID: "gardner", Level: Layer,
		RequiredInputs: []string{"velocity"},
		Callable: func(in Inputs, _ bool) (uncertain.Value, error) {
			return in.Values["velocity"].Mul(uncertain.Exact(3)), nil
		},
	}))

	eng, err := NewEngine(g, rb.Build())
	require.NoError(t, err)
	return eng
}

func TestEngineExecuteAllRunsEveryAlternative(t *testing.T) {
	t.Parallel()

	eng := buildDensityEngine(t)

	record := NewRecord(1)
	record.SubRecords[0] = record.SubRecords[0].With("resistivity", uncertain.New(10, 0))
	record.SubRecords[0] = record.SubRecords[0].With("velocity", uncertain.New(5, 0))

	results, err := eng.ExecuteAll(record, "density", DefaultExecutionConfig())
	require.NoError(t, err)
	require.Equal(t, 2, results.Total)
	require.Equal(t, 2, results.Successful)
	require.Equal(t, 0, results.Failed)

	var sawArchie, sawGardner bool
	for _, pw := range results.Pathways {
		switch pw.Methods["density"] {
		case "archie":
			sawArchie = true
			v, ok := pw.Record.SubRecords[0].Get("density")
			require.True(t, ok)
			require.Equal(t, 20.0, v.Mean)
		case "gardner":
			sawGardner = true
			v, ok := pw.Record.SubRecords[0].Get("density")
			require.True(t, ok)
			require.Equal(t, 15.0, v.Mean)
		}
	}
	require.True(t, sawArchie)
	require.True(t, sawGardner)
}

func TestEngineExecuteSingleMatchesRequestedMapping(t *testing.T) {
	t.Parallel()

	eng := buildDensityEngine(t)

	record := NewRecord(1)
	record.SubRecords[0] = record.SubRecords[0].With("resistivity", uncertain.New(10, 0))

	pw, err := eng.ExecuteSingle(record, "density", map[string]string{"density": "archie"}, DefaultExecutionConfig())
	require.NoError(t, err)
	require.True(t, pw.Success)
	require.Equal(t, "archie", pw.Methods["density"])
}

func TestEngineExecuteSingleUnmatchedMappingFails(t *testing.T) {
	t.Parallel()

	eng := buildDensityEngine(t)
	record := NewRecord(1)

	_, err := eng.ExecuteSingle(record, "density", map[string]string{"density": "no_such_method"}, DefaultExecutionConfig())
	require.Error(t, err)
}

func TestEngineListPathwaysDescribesEveryAlternative(t *testing.T) {
	t.Parallel()

	eng := buildDensityEngine(t)

	descriptions, err := eng.ListPathways("density")
	require.NoError(t, err)
	require.Len(t, descriptions, 2)

	ids := make(map[string]bool)
	for _, d := range descriptions {
		ids[d.ID] = true
	}
	require.True(t, ids["density=archie"])
	require.True(t, ids["density=gardner"])
}

func TestEngineExecuteAllUnknownTargetFails(t *testing.T) {
	t.Parallel()

	eng := buildDensityEngine(t)
	_, err := eng.ExecuteAll(NewRecord(1), "ghost", DefaultExecutionConfig())
	require.Error(t, err)
}
