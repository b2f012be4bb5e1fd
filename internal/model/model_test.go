package model

import (
	"testing"

	"github.com/arlobrook/paramgraph/internal/registry"
	"github.com/arlobrook/paramgraph/pkg/uncertain"
	"github.com/stretchr/testify/require"
)

func TestSubRecordWithDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	original := NewSubRecord()
	original.Values["raw"] = uncertain.New(1, 0)

	updated := original.With("density", uncertain.New(2, 0.1))

	_, present := original.Get("density")
	require.False(t, present)

	v, present := updated.Get("density")
	require.True(t, present)
	require.Equal(t, 2.0, v.Mean)
}

func TestRecordWithSubRecordSharesUntouchedSubRecords(t *testing.T) {
	t.Parallel()

	rec := NewRecord(2)
	rec.SubRecords[0] = rec.SubRecords[0].With("raw", uncertain.New(5, 0))
	rec.SubRecords[1] = rec.SubRecords[1].With("raw", uncertain.New(9, 0))

	updated := rec.WithSubRecord(0, rec.SubRecords[0].With("density", uncertain.New(1.2, 0.05)))

	// Untouched sub-record 1 shares its underlying map with the original —
	// writing through one is visible through the other.
	rec.SubRecords[1].Values["probe"] = uncertain.Exact(42)
	probe, present := updated.SubRecords[1].Get("probe")
	require.True(t, present)
	require.Equal(t, 42.0, probe.Mean)

	// Original record is unaffected by the update to sub-record 0.
	_, present = rec.SubRecords[0].Get("density")
	require.False(t, present)

	v, present := updated.SubRecords[0].Get("density")
	require.True(t, present)
	require.Equal(t, 1.2, v.Mean)
}

func TestComputationTraceForParameterFiltersInOrder(t *testing.T) {
	t.Parallel()

	var trace ComputationTrace
	trace.Append(StepTrace{Parameter: "density", SubRecordIndex: 0, Outcome: registry.Outcome{Success: true}})
	trace.Append(StepTrace{Parameter: "thickness", SubRecordIndex: 0, Outcome: registry.Outcome{Success: true}})
	trace.Append(StepTrace{Parameter: "density", SubRecordIndex: 1, Outcome: registry.Outcome{Success: true}})

	densitySteps := trace.ForParameter("density")
	require.Len(t, densitySteps, 2)
	require.Equal(t, 0, densitySteps[0].SubRecordIndex)
	require.Equal(t, 1, densitySteps[1].SubRecordIndex)
}

func TestStepTraceFailureReason(t *testing.T) {
	t.Parallel()

	failing := StepTrace{
		Parameter: "density",
		Outcome: registry.Outcome{
			Success: false,
			Failure: &registry.Failure{Kind: registry.MissingInput, Detail: "raw_mass"},
		},
	}
	require.Contains(t, failing.FailureReason(), "raw_mass")

	succeeding := StepTrace{Outcome: registry.Outcome{Success: true}}
	require.Empty(t, succeeding.FailureReason())
}
