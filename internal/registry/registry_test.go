package registry

import (
	"errors"
	"testing"

	paramerrors "github.com/arlobrook/paramgraph/pkg/errors"
	"github.com/arlobrook/paramgraph/pkg/uncertain"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	values      map[string]uncertain.Value
	categorical map[string]string
}

func (f fakeSource) Get(name string) (uncertain.Value, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f fakeSource) GetCategorical(name string) (string, bool) {
	v, ok := f.categorical[name]
	return v, ok
}

func directMethod(in Inputs, _ bool) (uncertain.Value, error) {
	return in.Values["m_raw"], nil
}

func TestRegisterRejectsDuplicateMethod(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	spec := MethodSpec{Parameter: "p_out", MethodID: "direct", RequiredInputs: []string{"m_raw"}, Callable: directMethod}
	require.NoError(t, r.Register(spec))

	err := r.Register(spec)
	var dup *paramerrors.DuplicateMethodError
	require.ErrorAs(t, err, &dup)
}

func TestExecuteSuccessReadsRawField(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(MethodSpec{
		Parameter:      "p_out",
		MethodID:       "direct",
		RequiredInputs: []string{"m_raw"},
		Callable:       directMethod,
	}))

	source := fakeSource{values: map[string]uncertain.Value{"m_raw": uncertain.New(10, 1)}}
	outcome := r.Execute("p_out", "direct", source, true)

	require.True(t, outcome.Success)
	require.Equal(t, 10.0, outcome.Value.Mean)
	require.Equal(t, 1.0, outcome.Value.StdDev)
}

func TestExecuteMissingInputFails(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(MethodSpec{
		Parameter:      "p_out",
		MethodID:       "direct",
		RequiredInputs: []string{"m_raw"},
		Callable:       directMethod,
	}))

	outcome := r.Execute("p_out", "direct", fakeSource{}, true)
	require.False(t, outcome.Success)
	require.Equal(t, MissingInput, outcome.Failure.Kind)
}

func TestExecuteNumericalFailureOnNaN(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(MethodSpec{
		Parameter:      "p_out",
		MethodID:       "bad",
		RequiredInputs: []string{"m_raw"},
		Callable: func(in Inputs, _ bool) (uncertain.Value, error) {
			return uncertain.NaN(), nil
		},
	}))

	source := fakeSource{values: map[string]uncertain.Value{"m_raw": uncertain.New(1, 1)}}
	outcome := r.Execute("p_out", "bad", source, true)
	require.False(t, outcome.Success)
	require.Equal(t, NumericalFailure, outcome.Failure.Kind)
}

func TestExecuteMethodFailedWrapsCallableError(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(MethodSpec{
		Parameter:      "p_out",
		MethodID:       "explodes",
		RequiredInputs: nil,
		Callable: func(in Inputs, _ bool) (uncertain.Value, error) {
			return uncertain.Value{}, errors.New("boom")
		},
	}))

	outcome := r.Execute("p_out", "explodes", fakeSource{}, true)
	require.False(t, outcome.Success)
	require.Equal(t, MethodFailed, outcome.Failure.Kind)
	require.Contains(t, outcome.Failure.Detail, "boom")
}

func TestExecuteDomainResolutionSpecificCode(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(MethodSpec{
		Parameter:      "grain_param",
		MethodID:       "vocab",
		RequiredInputs: []string{"code"},
		DomainTables: map[string]DomainTable{
			"code": {
				Specific:  map[string]struct{}{"ABc": {}},
				General:   map[string]struct{}{"AB": {}},
				PrefixLen: 2,
			},
		},
		Callable: func(in Inputs, _ bool) (uncertain.Value, error) {
			return uncertain.Exact(1), nil
		},
	}))

	source := fakeSource{categorical: map[string]string{"code": "ABc"}}
	outcome := r.Execute("grain_param", "vocab", source, true)
	require.True(t, outcome.Success)
	require.False(t, outcome.UsedFallback)
}

func TestExecuteDomainResolutionGeneralFallback(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(MethodSpec{
		Parameter:      "grain_param",
		MethodID:       "vocab",
		RequiredInputs: []string{"code"},
		DomainTables: map[string]DomainTable{
			"code": {
				Specific:  map[string]struct{}{"ABc": {}},
				General:   map[string]struct{}{"AB": {}},
				PrefixLen: 2,
			},
		},
		Callable: func(in Inputs, _ bool) (uncertain.Value, error) {
			return uncertain.Exact(1), nil
		},
	}))

	source := fakeSource{categorical: map[string]string{"code": "ABx"}}
	outcome := r.Execute("grain_param", "vocab", source, true)
	require.True(t, outcome.Success)
	require.True(t, outcome.UsedFallback)
	require.Equal(t, "code", outcome.FallbackField)
}

func TestExecuteDomainResolutionUnsupported(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(MethodSpec{
		Parameter:      "grain_param",
		MethodID:       "vocab",
		RequiredInputs: []string{"code"},
		DomainTables: map[string]DomainTable{
			"code": {
				Specific:  map[string]struct{}{"ABc": {}},
				General:   map[string]struct{}{"AB": {}},
				PrefixLen: 2,
			},
		},
		Callable: func(in Inputs, _ bool) (uncertain.Value, error) {
			return uncertain.Exact(1), nil
		},
	}))

	source := fakeSource{categorical: map[string]string{"code": "XY"}}
	outcome := r.Execute("grain_param", "vocab", source, true)
	require.False(t, outcome.Success)
	require.Equal(t, UnsupportedDomain, outcome.Failure.Kind)
	require.False(t, outcome.UsedFallback)
}

func TestExecuteUnknownMethodIsMissingInput(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	outcome := r.Execute("ghost", "none", fakeSource{}, true)
	require.False(t, outcome.Success)
	require.Equal(t, MissingInput, outcome.Failure.Kind)
}
