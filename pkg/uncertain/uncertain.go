// Package uncertain provides a scalar value type carrying a mean and a
// standard deviation, closed under first-order uncorrelated error
// propagation. Domain calculation methods registered with the engine read
// and return Values; the engine itself only uses NaN detection.
package uncertain

import "math"

// Value is a scalar measurement with an associated standard deviation.
// Zero value is the exact quantity 0 with no uncertainty.
type Value struct {
	Mean   float64
	StdDev float64
}

// Exact constructs a Value with no uncertainty.
func Exact(mean float64) Value {
	return Value{Mean: mean}
}

// New constructs a Value from an explicit mean and standard deviation.
func New(mean, stdDev float64) Value {
	return Value{Mean: mean, StdDev: stdDev}
}

// IsNaN reports whether either component is NaN, the sentinel the engine
// uses to detect numerical failure (spec §4.3 step 4).
func (v Value) IsNaN() bool {
	return math.IsNaN(v.Mean) || math.IsNaN(v.StdDev)
}

// NaN returns the sentinel failure value.
func NaN() Value {
	return Value{Mean: math.NaN(), StdDev: math.NaN()}
}

// Add returns v + other, propagating uncorrelated standard deviations in
// quadrature.
func (v Value) Add(other Value) Value {
	return Value{
		Mean:   v.Mean + other.Mean,
		StdDev: math.Hypot(v.StdDev, other.StdDev),
	}
}

// Sub returns v - other.
func (v Value) Sub(other Value) Value {
	return Value{
		Mean:   v.Mean - other.Mean,
		StdDev: math.Hypot(v.StdDev, other.StdDev),
	}
}

// Mul returns v * other, propagating relative uncertainty in quadrature.
func (v Value) Mul(other Value) Value {
	mean := v.Mean * other.Mean
	if mean == 0 {
		return Value{Mean: 0, StdDev: 0}
	}
	relA := safeRatio(v.StdDev, v.Mean)
	relB := safeRatio(other.StdDev, other.Mean)
	return Value{
		Mean:   mean,
		StdDev: math.Abs(mean) * math.Hypot(relA, relB),
	}
}

// Div returns v / other. A zero divisor mean yields a NaN sentinel.
func (v Value) Div(other Value) Value {
	if other.Mean == 0 {
		return NaN()
	}
	mean := v.Mean / other.Mean
	relA := safeRatio(v.StdDev, v.Mean)
	relB := safeRatio(other.StdDev, other.Mean)
	return Value{
		Mean:   mean,
		StdDev: math.Abs(mean) * math.Hypot(relA, relB),
	}
}

// Pow raises v to an integer or rational exponent n, propagating relative
// uncertainty scaled by n (first-order approximation).
func (v Value) Pow(n float64) Value {
	mean := math.Pow(v.Mean, n)
	rel := safeRatio(v.StdDev, v.Mean)
	return Value{
		Mean:   mean,
		StdDev: math.Abs(mean * n * rel),
	}
}

func safeRatio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
