// Package stats provides sample statistics for measurement streams and the
// on-disk run-artifact index.
package stats

import (
	"fmt"
	"math"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance of xs.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

// Std returns the population standard deviation of xs.
func Std(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Stride extracts every step-th element of xs starting at start.
func Stride(xs []float64, start, step int) []float64 {
	if step <= 0 || start < 0 {
		return nil
	}
	var out []float64
	for i := start; i < len(xs); i += step {
		out = append(out, xs[i])
	}
	return out
}

// Combine returns the elementwise combination ca*a + cb*b over the common
// prefix of a and b.
func Combine(a, b []float64, ca, cb float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = ca*a[i] + cb*b[i]
	}
	return out
}

// LinearCombination evaluates a nullifier-style combination across sample
// streams: out[k] = sum_i coeffs[i] * streams[i][k+lags[i]], for every k at
// which all lagged terms exist.
func LinearCombination(streams [][]float64, coeffs []float64, lags []int) ([]float64, error) {
	if len(streams) != len(coeffs) || len(streams) != len(lags) {
		return nil, fmt.Errorf("streams, coeffs and lags must have equal length: %d, %d, %d",
			len(streams), len(coeffs), len(lags))
	}
	if len(streams) == 0 {
		return nil, nil
	}
	length := -1
	for i, stream := range streams {
		if lags[i] < 0 {
			return nil, fmt.Errorf("lag %d must be non-negative", lags[i])
		}
		avail := len(stream) - lags[i]
		if length < 0 || avail < length {
			length = avail
		}
	}
	if length <= 0 {
		return nil, nil
	}
	out := make([]float64, length)
	for k := 0; k < length; k++ {
		var sum float64
		for i := range streams {
			sum += coeffs[i] * streams[i][k+lags[i]]
		}
		out[k] = sum
	}
	return out, nil
}
