// Package orchestrator drives execute_all/execute_pathway/execute_single
// (spec §4.5): it walks enumerated derivation trees against a record,
// consulting the cache and method registry at each step, and assembles the
// per-pathway and aggregate results.
package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"context"

	"github.com/arlobrook/paramgraph/internal/cache"
	"github.com/arlobrook/paramgraph/internal/enumerator"
	"github.com/arlobrook/paramgraph/internal/graph"
	logginginfra "github.com/arlobrook/paramgraph/internal/infrastructure/logging"
	"github.com/arlobrook/paramgraph/internal/model"
	"github.com/arlobrook/paramgraph/internal/ports"
	"github.com/arlobrook/paramgraph/internal/registry"
	paramerrors "github.com/arlobrook/paramgraph/pkg/errors"
)

// Config mirrors ExecutionConfig from spec §6.
type Config struct {
	// IncludeMethodUncertainty defaults to true; set false to ask methods
	// that support the mode to suppress their own contribution to the
	// reported uncertainty.
	IncludeMethodUncertainty bool
	Verbose                  bool
}

// DefaultConfig returns the spec's documented default (include_method_uncertainty: true).
func DefaultConfig() Config {
	return Config{IncludeMethodUncertainty: true}
}

// Orchestrator binds a sealed graph, its enumerator, and a method registry.
type Orchestrator struct {
	g      *graph.Graph
	enum   *enumerator.Enumerator
	reg    *registry.Registry
	logger ports.Logger
}

// New constructs an Orchestrator that discards its logs. Use WithLogger to
// attach a structured logger.
func New(g *graph.Graph, enum *enumerator.Enumerator, reg *registry.Registry) *Orchestrator {
	return &Orchestrator{g: g, enum: enum, reg: reg, logger: logginginfra.NewNoOpLogger()}
}

// WithLogger returns an Orchestrator that logs each execute_all/execute_single
// call and every failed pathway through logger (component: orchestrator).
func (o *Orchestrator) WithLogger(logger ports.Logger) *Orchestrator {
	if logger == nil {
		return o
	}
	clone := *o
	clone.logger = logger.With("component", "orchestrator")
	return &clone
}

// ExecuteAll runs every enumerated derivation tree for target against
// record and returns the aggregate results (spec §4.5 execute_all).
func (o *Orchestrator) ExecuteAll(record model.Record, target string, cfg Config) (model.ExecutionResults, error) {
	ctx := ports.WithCorrelationID(context.Background(), ports.GenerateCorrelationID())
	if _, err := o.g.GetNode(target); err != nil {
		o.logger.Warn(ctx, "execute_all: unknown target", "parameter", target)
		return model.ExecutionResults{}, paramerrors.NewUnknownTargetError(target)
	}

	trees, err := o.enum.Enumerate(target)
	if err != nil {
		return model.ExecutionResults{}, err
	}
	o.logger.Info(ctx, "execute_all: enumerated pathways", "parameter", target, "pathway_count", len(trees))

	c := cache.New()
	results := model.ExecutionResults{
		TargetParameter: target,
		SourceRecord:    record,
		Pathways:        make(map[string]model.PathwayResult, len(trees)),
	}

	for _, tree := range trees {
		pr, err := o.executeTree(record, tree, target, cfg, c)
		if err != nil {
			return model.ExecutionResults{}, err
		}
		results.Pathways[pr.Description] = pr
		results.Total++
		if pr.Success {
			results.Successful++
		} else {
			results.Failed++
			o.logger.Debug(ctx, "execute_all: pathway failed", "parameter", target, "pathway", pr.Description)
		}
	}

	stats := c.Stats()
	results.CacheStats = model.CacheStats{Hits: stats.Hits, Misses: stats.Misses, HitRate: stats.HitRate}
	o.logger.Info(ctx, "execute_all: completed", "parameter", target,
		"successful", results.Successful, "failed", results.Failed,
		"cache_hits", stats.Hits, "cache_misses", stats.Misses)
	return results, nil
}

// ExecuteSingle runs the one pathway whose method fingerprint matches the
// caller-supplied mapping (spec §4.5 execute_single).
func (o *Orchestrator) ExecuteSingle(record model.Record, target string, methods map[string]string, cfg Config) (model.PathwayResult, error) {
	ctx := ports.WithCorrelationID(context.Background(), ports.GenerateCorrelationID())
	if _, err := o.g.GetNode(target); err != nil {
		o.logger.Warn(ctx, "execute_single: unknown target", "parameter", target)
		return model.PathwayResult{}, paramerrors.NewUnknownTargetError(target)
	}

	trees, err := o.enum.Enumerate(target)
	if err != nil {
		return model.PathwayResult{}, err
	}

	wantKey := mappingKey(methods)
	for _, tree := range trees {
		m, _ := o.buildMapping(tree)
		if mappingKey(m) == wantKey {
			c := cache.New()
			o.logger.Info(ctx, "execute_single: matched pathway", "parameter", target, "pathway", pathwayDescription(m))
			return o.executeTree(record, tree, target, cfg, c)
		}
	}
	o.logger.Warn(ctx, "execute_single: no matching pathway", "parameter", target)
	return model.PathwayResult{}, paramerrors.NewNoSuchPathwayError(target)
}

// ListPathways describes every enumerated derivation tree for target
// without executing any of them.
func (o *Orchestrator) ListPathways(target string) ([]PathwayDescription, error) {
	if _, err := o.g.GetNode(target); err != nil {
		return nil, paramerrors.NewUnknownTargetError(target)
	}
	trees, err := o.enum.Enumerate(target)
	if err != nil {
		return nil, err
	}
	out := make([]PathwayDescription, 0, len(trees))
	for _, tree := range trees {
		methods, _ := o.buildMapping(tree)
		out = append(out, PathwayDescription{
			ID:          pathwayID(methods),
			Description: pathwayDescription(methods),
			Methods:     methods,
		})
	}
	return out, nil
}

// PathwayDescription is the metadata shape returned by ListPathways.
type PathwayDescription struct {
	ID          string
	Description string
	Methods     map[string]string
}

func mappingKey(methods map[string]string) string {
	names := make([]string, 0, len(methods))
	for k := range methods {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + methods[name]
	}
	return strings.Join(parts, "|")
}

func pathwayID(methods map[string]string) string {
	return mappingKey(methods)
}

func pathwayDescription(methods map[string]string) string {
	names := make([]string, 0, len(methods))
	for k := range methods {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, methods[name])
	}
	return strings.Join(parts, ", ")
}

// buildMapping walks a derivation tree once, returning the parameter to
// method-id mapping (method edges) and the parameter to source-node
// aliasing (DataFlow edges terminating at a parameter node).
func (o *Orchestrator) buildMapping(t *enumerator.Tree) (methods, aliases map[string]string) {
	methods = make(map[string]string)
	aliases = make(map[string]string)
	o.walkMapping(t, methods, aliases)
	return
}

func (o *Orchestrator) walkMapping(t *enumerator.Tree, methods, aliases map[string]string) {
	node, err := o.g.GetNode(t.Node)
	if err != nil {
		return
	}
	for _, child := range t.Children {
		if node.Kind == graph.Parameter {
			if child.Label == graph.DataFlow {
				aliases[t.Node] = child.Child.Node
			} else {
				methods[t.Node] = child.Label
			}
		}
		o.walkMapping(child.Child, methods, aliases)
	}
}

func (o *Orchestrator) executeTree(record model.Record, tree *enumerator.Tree, target string, cfg Config, c *cache.Cache) (model.PathwayResult, error) {
	methods, aliases := o.buildMapping(tree)
	return o.executeMapping(record, methods, aliases, target, cfg, c)
}

func (o *Orchestrator) executeMapping(record model.Record, methods, aliases map[string]string, target string, cfg Config, c *cache.Cache) (model.PathwayResult, error) {
	order := o.parameterOrder(methods, aliases)

	result := record.Clone()
	var trace model.ComputationTrace
	var warnings []string

	for i := range result.SubRecords {
		working := result.SubRecords[i]
		changed := false

		for _, p := range order {
			methodID, isMethod := methods[p]
			if isMethod {
				if spec, specOk := o.reg.Lookup(p, methodID); specOk && spec.Level != graph.Layer {
					continue
				}
			}

			if aliasSrc, isAlias := aliases[p]; isAlias && !isMethod {
				value, ok := working.Get(aliasSrc)
				outcome := registry.Outcome{Success: ok, Value: value}
				if !ok {
					outcome.Failure = &registry.Failure{Kind: registry.MissingInput, Detail: aliasSrc}
				}
				trace.Append(model.StepTrace{Parameter: p, SubRecordIndex: i, Outcome: outcome})
				if ok {
					working = working.With(p, value)
					changed = true
				}
				continue
			}
			if !isMethod {
				continue
			}

			cacheable := o.g.IsCacheable(p)
			key := cache.Key{SubRecordIndex: i, Parameter: p, MethodID: methodID}

			var outcome registry.Outcome
			cached := false
			if cacheable {
				if v, ok := c.Get(key); ok {
					outcome = registry.Outcome{Success: true, Value: v}
					cached = true
				}
			}
			if !cached {
				outcome = o.reg.Execute(p, methodID, working, cfg.IncludeMethodUncertainty)
				if outcome.Success && cacheable {
					c.Put(key, outcome.Value)
				}
			}

			trace.Append(model.StepTrace{Parameter: p, MethodID: methodID, SubRecordIndex: i, Outcome: outcome, Cached: cached})
			if outcome.Success {
				working = working.With(p, outcome.Value)
				changed = true
			}
			if outcome.UsedFallback {
				warnings = append(warnings, fmt.Sprintf("parameter %s used general-prefix domain fallback for input %s", p, outcome.FallbackField))
			}
		}

		if changed {
			result = result.WithSubRecord(i, working)
		}
	}

	targetNode, err := o.g.GetNode(target)
	if err != nil {
		return model.PathwayResult{}, err
	}
	if targetNode.Level == graph.Slab {
		o.executeSlabStep(&result, &trace, methods, target, cfg)
	}

	success := false
	for _, s := range trace.ForParameter(target) {
		if s.Success() {
			success = true
			break
		}
	}

	return model.PathwayResult{
		ID:          pathwayID(methods),
		Description: pathwayDescription(methods),
		Methods:     methods,
		Record:      result,
		Traces:      trace,
		Success:     success,
		Warnings:    warnings,
	}, nil
}

// executeSlabStep runs the single record-level method for target, after
// verifying every sub-record has the transitive required layer-level
// parameters populated (spec §4.5 step 5).
func (o *Orchestrator) executeSlabStep(result *model.Record, trace *model.ComputationTrace, methods map[string]string, target string, cfg Config) {
	methodID, ok := methods[target]
	if !ok {
		return
	}
	spec, ok := o.reg.Lookup(target, methodID)
	if !ok {
		return
	}

	for _, name := range spec.RequiredInputs {
		if _, isComputedParam := methods[name]; !isComputedParam {
			continue
		}
		for i, sub := range result.SubRecords {
			if _, present := sub.Get(name); !present {
				trace.Append(model.StepTrace{
					Parameter:      target,
					SubRecordIndex: -1,
					Outcome: registry.Outcome{
						Failure: &registry.Failure{
							Kind:   registry.MissingPrerequisite,
							Detail: fmt.Sprintf("%s@%d", name, i),
						},
					},
				})
				return
			}
		}
	}

	outcome := o.reg.Execute(target, methodID, *result, cfg.IncludeMethodUncertainty)
	trace.Append(model.StepTrace{Parameter: target, MethodID: methodID, SubRecordIndex: -1, Outcome: outcome})
	if outcome.Success {
		*result = result.WithSlabField(target, outcome.Value)
	}
}

// parameterOrder computes a topological order over the parameters in
// methods and aliases, ordered by their dependency on one another (tie
// break by name), restricted to layer-level parameters — slab-level steps
// run separately, after every sub-record is processed (spec §4.5 step 3).
func (o *Orchestrator) parameterOrder(methods, aliases map[string]string) []string {
	dg := newParamDepGraph()

	for p, methodID := range methods {
		spec, ok := o.reg.Lookup(p, methodID)
		if !ok || spec.Level != graph.Layer {
			continue
		}
		dg.addNode(p)
		for _, name := range spec.RequiredInputs {
			if _, isParam := methods[name]; isParam {
				dg.addDependency(p, name)
			}
			if _, isAlias := aliases[name]; isAlias {
				dg.addDependency(p, name)
			}
		}
	}
	for p, src := range aliases {
		dg.addNode(p)
		dg.addDependency(p, src)
	}

	return dg.order()
}
