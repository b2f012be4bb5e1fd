// Package registry binds (parameter, method_id) pairs to executable
// computation functions and drives the per-step input resolution procedure
// described for the method registry: reading required inputs off a
// sub-record or record, applying categorical domain resolution, invoking
// the callable, and reporting a structured, non-fatal Failure instead of
// aborting the caller.
package registry

import (
	"fmt"

	"github.com/arlobrook/paramgraph/internal/graph"
	paramerrors "github.com/arlobrook/paramgraph/pkg/errors"
	"github.com/arlobrook/paramgraph/pkg/uncertain"
)

// FailureKind classifies a non-fatal step failure (spec §7).
type FailureKind int

const (
	// MissingInput means a required raw field or parameter slot was empty.
	MissingInput FailureKind = iota
	// UnsupportedDomain means a categorical input matched neither the
	// specific nor the general fallback table.
	UnsupportedDomain
	// MethodFailed means the callable returned an error.
	MethodFailed
	// NumericalFailure means the callable's result was NaN.
	NumericalFailure
	// MissingPrerequisite means a record-level step could not run because
	// a transitively required layer-level parameter was not populated on
	// every sub-record. Constructed by the orchestrator, not by Execute.
	MissingPrerequisite
)

func (k FailureKind) String() string {
	switch k {
	case MissingInput:
		return "MissingInput"
	case UnsupportedDomain:
		return "UnsupportedDomain"
	case MethodFailed:
		return "MethodFailed"
	case NumericalFailure:
		return "NumericalFailure"
	case MissingPrerequisite:
		return "MissingPrerequisite"
	default:
		return "Unknown"
	}
}

// Failure is a structured, recoverable step failure (spec §7): it never
// aborts sibling pathways or sibling sub-records.
type Failure struct {
	Kind         FailureKind
	Detail       string
	InputSummary map[string]string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Inputs is what a callable receives: numeric inputs already resolved to
// uncertain.Value, and categorical inputs already resolved through a
// method's domain tables.
type Inputs struct {
	Values      map[string]uncertain.Value
	Categorical map[string]string
}

// CallableFunc is the uniform calling convention every domain formula is
// registered behind (spec §4.3, §9: "a uniform calling convention").
type CallableFunc func(in Inputs, includeMethodUncertainty bool) (uncertain.Value, error)

// DomainTable is the two-tier categorical resolution table for one
// required input name: use the raw code if it is in Specific; else take
// its first PrefixLen characters and use that if it is in General; else
// the input is Unresolved.
type DomainTable struct {
	Specific  map[string]struct{}
	General   map[string]struct{}
	PrefixLen int
}

// resolve applies the two-tier lookup rule. ok is false on Unresolved;
// usedFallback reports whether the general table (rather than the exact
// code) produced the match — the orchestrator surfaces this as a warning.
func (d DomainTable) resolve(code string) (resolved string, usedFallback bool, ok bool) {
	if _, exact := d.Specific[code]; exact {
		return code, false, true
	}
	n := d.PrefixLen
	if n > len(code) {
		n = len(code)
	}
	prefix := code[:n]
	if _, general := d.General[prefix]; general {
		return prefix, true, true
	}
	return "", false, false
}

// MethodSpec describes one registered (parameter, method_id) computation.
type MethodSpec struct {
	Parameter                 string `validate:"required,identifier"`
	MethodID                  string `validate:"required,identifier"`
	Level                     graph.Level
	RequiredInputs            []string
	DomainTables              map[string]DomainTable
	SupportsMethodUncertainty bool
	Callable                  CallableFunc `validate:"required"`
}

// InputSource resolves a named numeric or categorical field, whether it is
// a raw field or an already-computed parameter slot.
type InputSource interface {
	Get(name string) (uncertain.Value, bool)
	GetCategorical(name string) (string, bool)
}

// Registry holds every registered MethodSpec, keyed by (parameter, method).
type Registry struct {
	specs map[methodKey]*MethodSpec
}

type methodKey struct {
	parameter string
	methodID  string
}

// NewRegistry returns an empty method registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[methodKey]*MethodSpec)}
}

// Register adds a MethodSpec, failing with DuplicateMethodError on a
// (parameter, method_id) collision.
func (r *Registry) Register(spec MethodSpec) error {
	if err := validatorInstance().Struct(spec); err != nil {
		return fmt.Errorf("invalid method spec for %s/%s: %w", spec.Parameter, spec.MethodID, err)
	}
	key := methodKey{parameter: spec.Parameter, methodID: spec.MethodID}
	if _, exists := r.specs[key]; exists {
		return paramerrors.NewDuplicateMethodError(spec.Parameter, spec.MethodID)
	}
	specCopy := spec
	r.specs[key] = &specCopy
	return nil
}

// Lookup returns the registered spec for (parameter, method_id), if any.
func (r *Registry) Lookup(parameter, methodID string) (*MethodSpec, bool) {
	spec, ok := r.specs[methodKey{parameter: parameter, methodID: methodID}]
	return spec, ok
}

// Outcome is the result of Execute: either a successful value or a
// structured Failure, plus bookkeeping the orchestrator needs for tracing.
type Outcome struct {
	Success       bool
	Value         uncertain.Value
	Failure       *Failure
	InputSummary  map[string]string
	UsedFallback  bool
	FallbackField string
}

// Execute runs the five-step resolution procedure from spec §4.3 against
// the given input source.
func (r *Registry) Execute(parameter, methodID string, source InputSource, includeMethodUncertainty bool) Outcome {
	spec, ok := r.Lookup(parameter, methodID)
	if !ok {
		return Outcome{Failure: &Failure{Kind: MissingInput, Detail: fmt.Sprintf("no method %q registered for %q", methodID, parameter)}}
	}

	inputs := Inputs{
		Values:      make(map[string]uncertain.Value),
		Categorical: make(map[string]string),
	}
	summary := make(map[string]string, len(spec.RequiredInputs))
	usedFallback := false
	fallbackField := ""

	for _, name := range spec.RequiredInputs {
		if table, isCategorical := spec.DomainTables[name]; isCategorical {
			code, present := source.GetCategorical(name)
			if !present {
				return Outcome{Failure: &Failure{Kind: MissingInput, Detail: name, InputSummary: summary}, InputSummary: summary}
			}
			resolved, fellBack, ok := table.resolve(code)
			if !ok {
				return Outcome{Failure: &Failure{Kind: UnsupportedDomain, Detail: fmt.Sprintf("%s=%s", name, code), InputSummary: summary}, InputSummary: summary}
			}
			inputs.Categorical[name] = resolved
			summary[name] = resolved
			if fellBack {
				usedFallback = true
				fallbackField = name
			}
			continue
		}

		value, present := source.Get(name)
		if !present {
			return Outcome{Failure: &Failure{Kind: MissingInput, Detail: name, InputSummary: summary}, InputSummary: summary}
		}
		inputs.Values[name] = value
		summary[name] = fmt.Sprintf("%.6g±%.6g", value.Mean, value.StdDev)
	}

	result, err := spec.Callable(inputs, includeMethodUncertainty)
	if err != nil {
		return Outcome{Failure: &Failure{Kind: MethodFailed, Detail: err.Error(), InputSummary: summary}, InputSummary: summary}
	}
	if result.IsNaN() {
		return Outcome{Failure: &Failure{Kind: NumericalFailure, Detail: "result is NaN", InputSummary: summary}, InputSummary: summary}
	}

	return Outcome{
		Success:       true,
		Value:         result,
		InputSummary:  summary,
		UsedFallback:  usedFallback,
		FallbackField: fallbackField,
	}
}
