// Package engine is the public facade over the parameterization graph
// engine: build a graph and a method registry, seal them into an Engine,
// then run execute_all / execute_single / list_pathways against records.
// Everything under internal/ is an implementation detail; callers only
// need this package and pkg/uncertain.
package engine

import (
	"github.com/arlobrook/paramgraph/internal/enumerator"
	"github.com/arlobrook/paramgraph/internal/graph"
	"github.com/arlobrook/paramgraph/internal/model"
	"github.com/arlobrook/paramgraph/internal/orchestrator"
	"github.com/arlobrook/paramgraph/internal/ports"
	"github.com/arlobrook/paramgraph/internal/registry"
)

// Logger is the structured logging contract the engine reports through, when
// one is attached via Engine.WithLogger.
type Logger = ports.Logger

// GraphBuilder assembles the DAG of derivation rules. It wraps
// internal/graph.Builder one-to-one; see that package's doc comments for
// the structural rules enforced at AddEdge and Seal time.
type GraphBuilder struct {
	b *graph.Builder
}

// NewGraphBuilder returns an empty graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{b: graph.NewBuilder()}
}

// Level tags a parameter node's scope: per-sub-record (Layer) or
// whole-record (Slab).
type Level = graph.Level

const (
	Layer = graph.Layer
	Slab  = graph.Slab
)

// DataFlow is the sentinel edge label for a pass-through/rename edge.
const DataFlow = graph.DataFlow

// AddSourceNode registers the graph's single distinguished source node.
func (gb *GraphBuilder) AddSourceNode(name string) error {
	return gb.b.AddSourceNode(name)
}

// AddParameterNode registers an OR-logic node at the given level.
func (gb *GraphBuilder) AddParameterNode(name string, level Level) error {
	return gb.b.AddParameterNode(name, level)
}

// AddMergeNode registers an AND-logic node.
func (gb *GraphBuilder) AddMergeNode(name string) error {
	return gb.b.AddMergeNode(name)
}

// AddEdge adds a directed edge; label is a method identifier or DataFlow.
func (gb *GraphBuilder) AddEdge(source, target, label string) error {
	return gb.b.AddEdge(source, target, label)
}

// MarkCacheable opts a layer-level parameter into cross-pathway caching
// within one execute_all call. Uncacheable is the default.
func (gb *GraphBuilder) MarkCacheable(parameter string) error {
	return gb.b.MarkCacheable(parameter)
}

// Seal validates and freezes the graph.
func (gb *GraphBuilder) Seal() (*graph.Graph, error) {
	return gb.b.Seal()
}

// RegistryBuilder assembles the method registry. It wraps
// internal/registry.Registry one-to-one.
type RegistryBuilder struct {
	r *registry.Registry
}

// NewRegistryBuilder returns an empty method registry builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{r: registry.NewRegistry()}
}

// MethodSpec describes one (parameter, method_id) computation.
type MethodSpec = registry.MethodSpec

// DomainTable is the two-tier categorical resolution table for one
// required input name.
type DomainTable = registry.DomainTable

// Inputs is what a Callable receives: resolved numeric and categorical
// inputs.
type Inputs = registry.Inputs

// CallableFunc is the uniform calling convention every domain formula is
// registered behind.
type CallableFunc = registry.CallableFunc

// Register adds a MethodSpec, failing on a (parameter, method_id) collision.
func (rb *RegistryBuilder) Register(spec MethodSpec) error {
	return rb.r.Register(spec)
}

// Build returns the assembled registry.
func (rb *RegistryBuilder) Build() *registry.Registry {
	return rb.r
}

// ExecutionConfig mirrors the engine's run-time options.
type ExecutionConfig struct {
	// IncludeMethodUncertainty defaults to true; set false to ask methods
	// that support the mode to suppress their own uncertainty contribution.
	IncludeMethodUncertainty bool
	Verbose                  bool
}

// DefaultExecutionConfig returns IncludeMethodUncertainty: true, matching
// the documented default.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{IncludeMethodUncertainty: true}
}

func (c ExecutionConfig) toOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{IncludeMethodUncertainty: c.IncludeMethodUncertainty, Verbose: c.Verbose}
}

// Record and SubRecord are the input/output record shapes threaded through
// a run.
type Record = model.Record
type SubRecord = model.SubRecord

// NewRecord returns an empty record with the given number of sub-records.
func NewRecord(subRecordCount int) Record {
	return model.NewRecord(subRecordCount)
}

// NewSubRecord returns an empty sub-record ready for field assignment.
func NewSubRecord() SubRecord {
	return model.NewSubRecord()
}

// ExecutionResults, PathwayResult, CacheStats, ComputationTrace, and
// StepTrace are the result shapes returned by Engine methods.
type ExecutionResults = model.ExecutionResults
type PathwayResult = model.PathwayResult
type CacheStats = model.CacheStats
type ComputationTrace = model.ComputationTrace
type StepTrace = model.StepTrace

// PathwayDescription is the metadata shape returned by ListPathways.
type PathwayDescription = orchestrator.PathwayDescription

// Engine binds a sealed graph and a built registry and drives every
// execution entry point against them.
type Engine struct {
	orch *orchestrator.Orchestrator
}

// NewEngine precomputes the enumerator's memo over every leveled parameter
// (spec §9 Open Question 1's eager option) and returns a ready-to-use
// Engine.
func NewEngine(g *graph.Graph, reg *registry.Registry) (*Engine, error) {
	enum, err := enumerator.New(g)
	if err != nil {
		return nil, err
	}
	if err := enum.Precompute(); err != nil {
		return nil, err
	}
	return &Engine{orch: orchestrator.New(g, enum, reg)}, nil
}

// WithLogger returns an Engine that reports each run through logger.
func (e *Engine) WithLogger(logger Logger) *Engine {
	return &Engine{orch: e.orch.WithLogger(logger)}
}

// ExecuteAll runs every enumerated derivation tree for target against
// record and returns the aggregate results.
func (e *Engine) ExecuteAll(record Record, target string, cfg ExecutionConfig) (ExecutionResults, error) {
	return e.orch.ExecuteAll(record, target, cfg.toOrchestratorConfig())
}

// ExecuteSingle runs the one pathway whose method fingerprint matches the
// caller-supplied mapping, failing with a NoSuchPathwayError otherwise.
func (e *Engine) ExecuteSingle(record Record, target string, methods map[string]string, cfg ExecutionConfig) (PathwayResult, error) {
	return e.orch.ExecuteSingle(record, target, methods, cfg.toOrchestratorConfig())
}

// ListPathways describes every enumerated derivation tree for target
// without executing any of them.
func (e *Engine) ListPathways(target string) ([]PathwayDescription, error) {
	return e.orch.ListPathways(target)
}
