// Package model defines the record types that flow through a pathway
// execution: the input record and its sub-records, the per-step trace kept
// alongside them, and the aggregate results returned to a caller.
package model

import (
	"maps"

	"github.com/arlobrook/paramgraph/internal/registry"
	"github.com/arlobrook/paramgraph/pkg/uncertain"
)

// SubRecord is one layer of an input record: named numeric fields (raw
// scalars and computed parameter slots, all uncertainty-bearing) plus named
// categorical fields consumed by methods with domain-resolution tables.
type SubRecord struct {
	Values      map[string]uncertain.Value
	Categorical map[string]string
}

// NewSubRecord returns an empty SubRecord ready for field assignment.
func NewSubRecord() SubRecord {
	return SubRecord{
		Values:      make(map[string]uncertain.Value),
		Categorical: make(map[string]string),
	}
}

// Clone returns a copy-on-write duplicate independent of the receiver.
func (s SubRecord) Clone() SubRecord {
	out := NewSubRecord()
	maps.Copy(out.Values, s.Values)
	maps.Copy(out.Categorical, s.Categorical)
	return out
}

// Get implements registry.InputSource.
func (s SubRecord) Get(name string) (uncertain.Value, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// GetCategorical implements registry.InputSource.
func (s SubRecord) GetCategorical(name string) (string, bool) {
	v, ok := s.Categorical[name]
	return v, ok
}

// With returns a copy of s with a numeric field set, leaving s untouched.
func (s SubRecord) With(field string, value uncertain.Value) SubRecord {
	out := s.Clone()
	out.Values[field] = value
	return out
}

var _ registry.InputSource = SubRecord{}

// Record is the whole-record (slab) scope: an ordered list of sub-records
// (layers) plus slab-level fields already populated on the record itself.
type Record struct {
	SubRecords []SubRecord
	SlabFields SubRecord
}

// NewRecord returns an empty record with N sub-records, each empty.
func NewRecord(subRecordCount int) Record {
	subs := make([]SubRecord, subRecordCount)
	for i := range subs {
		subs[i] = NewSubRecord()
	}
	return Record{SubRecords: subs, SlabFields: NewSubRecord()}
}

// Clone returns a copy-on-write duplicate of the record. Sub-records are
// shared by reference (see WithSubRecord) until a pathway writes to one —
// the result record then owns a replacement copy, exactly as prescribed by
// the copy-on-write rule for unmodified sub-records.
func (r Record) Clone() Record {
	subs := make([]SubRecord, len(r.SubRecords))
	copy(subs, r.SubRecords)
	return Record{
		SubRecords: subs,
		SlabFields: r.SlabFields.Clone(),
	}
}

// WithSubRecord returns a copy of the record with SubRecords[index] replaced.
func (r Record) WithSubRecord(index int, sub SubRecord) Record {
	out := r.Clone()
	out.SubRecords[index] = sub
	return out
}

// WithSlabField returns a copy of the record with a slab-level field set.
func (r Record) WithSlabField(field string, value uncertain.Value) Record {
	out := r.Clone()
	out.SlabFields = out.SlabFields.With(field, value)
	return out
}

// Get implements registry.InputSource for slab-level execution: it reads
// only record-level fields, per Open Question 3's resolution that a
// record-level method's own inputs are all layer-level parameters checked
// as a precondition, not resolved through this source.
func (r Record) Get(name string) (uncertain.Value, bool) {
	return r.SlabFields.Get(name)
}

// GetCategorical implements registry.InputSource for slab-level execution.
func (r Record) GetCategorical(name string) (string, bool) {
	return r.SlabFields.GetCategorical(name)
}

var _ registry.InputSource = Record{}

// StepTrace is one entry of a ComputationTrace (spec §3): a single call
// site into the registry, whether it succeeded, and full diagnostics.
type StepTrace struct {
	Parameter      string
	MethodID       string
	SubRecordIndex int // -1 for a slab-level step
	Outcome        registry.Outcome
	Cached         bool
}

// Success reports whether this step produced a usable value.
func (t StepTrace) Success() bool {
	return t.Outcome.Success
}

// FailureReason renders the step's failure kind and detail, or "" on success.
func (t StepTrace) FailureReason() string {
	if t.Outcome.Success || t.Outcome.Failure == nil {
		return ""
	}
	return t.Outcome.Failure.Error()
}

// ComputationTrace is the ordered log of every step attempted while running
// one pathway, including steps that failed.
type ComputationTrace struct {
	Steps []StepTrace
}

// Append records a step in the trace.
func (t *ComputationTrace) Append(step StepTrace) {
	t.Steps = append(t.Steps, step)
}

// ForParameter returns every trace entry recorded for the given parameter,
// in execution order (used to check trace totality: §8).
func (t ComputationTrace) ForParameter(parameter string) []StepTrace {
	var out []StepTrace
	for _, s := range t.Steps {
		if s.Parameter == parameter {
			out = append(out, s)
		}
	}
	return out
}

// MethodChoice is one (parameter, method_id) commitment within a
// derivation tree's method fingerprint.
type MethodChoice struct {
	Parameter string
	MethodID  string
}

// Fingerprint is the sorted list of MethodChoice pairs committed to by a
// derivation tree (spec §4.2).
type Fingerprint []MethodChoice

// PathwayResult is the outcome of running one enumerated derivation tree
// against one input record (spec §6 ExecutionResults shape).
type PathwayResult struct {
	ID          string
	Description string
	Methods     map[string]string
	Record      Record
	Traces      ComputationTrace
	Success     bool
	Warnings    []string
}

// ExecutionResults aggregates every pathway run for one execute_all call.
type ExecutionResults struct {
	TargetParameter string
	SourceRecord    Record
	Pathways        map[string]PathwayResult
	Total           int
	Successful      int
	Failed          int
	CacheStats      CacheStats
}

// CacheStats mirrors the cache's own stats() shape (spec §4.4) inside the
// aggregate result so callers don't need a separate handle to the cache.
type CacheStats struct {
	Hits    int
	Misses  int
	HitRate float64
}
