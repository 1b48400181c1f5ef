// Package stats provides the numeric primitives behind the analytics endpoints.
//
// Every function is pure. Non-finite values (NaN, ±Inf) are dropped before a
// reduction runs, and an empty effective input yields 0 instead of an error.
// Variance and covariance are population statistics (divide by n).
package stats

import (
	"math"
	"sort"
)

// Regression holds the result of an ordinary least-squares fit y = Alpha + Beta*x.
type Regression struct {
	Alpha float64
	Beta  float64
	// R2 is the explained-over-total sum of squares, Σ(pred-ȳ)² / Σ(y-ȳ)²,
	// not 1 - SSres/SStot. The two differ when x and y are truncated to
	// different lengths.
	R2 float64
	N  int
}

// Finite returns the finite values of xs in their original order.
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Sum returns the sum of the finite values.
func Sum(xs []float64) float64 {
	var s float64
	for _, v := range Finite(xs) {
		s += v
	}
	return s
}

// Mean returns the arithmetic mean of the finite values.
func Mean(xs []float64) float64 {
	return mean(Finite(xs))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}

// Median returns the middle finite value, averaging the two middle values for
// an even count.
func Median(xs []float64) float64 {
	a := Finite(xs)
	if len(a) == 0 {
		return 0
	}
	sort.Float64s(a)
	m := len(a) / 2
	if len(a)%2 == 1 {
		return a[m]
	}
	return (a[m-1] + a[m]) / 2
}

// Variance returns the population variance of the finite values.
func Variance(xs []float64) float64 {
	return variance(Finite(xs))
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var s float64
	for _, v := range xs {
		s += (v - m) * (v - m)
	}
	return s / float64(len(xs))
}

// StdDev returns the population standard deviation of the finite values.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Min returns the smallest finite value.
func Min(xs []float64) float64 {
	a := Finite(xs)
	if len(a) == 0 {
		return 0
	}
	m := a[0]
	for _, v := range a[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest finite value.
func Max(xs []float64) float64 {
	a := Finite(xs)
	if len(a) == 0 {
		return 0
	}
	m := a[0]
	for _, v := range a[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Covariance returns the population covariance of a and b.
//
// Each input is filtered independently; the means use every finite value of
// their own input while the cross-product sum runs over the first
// min(len(a), len(b)) finite pairs and is divided by that count.
func Covariance(a, b []float64) float64 {
	fa, fb := Finite(a), Finite(b)
	n := min(len(fa), len(fb))
	if n == 0 {
		return 0
	}
	ma, mb := mean(fa), mean(fb)
	var s float64
	for i := 0; i < n; i++ {
		s += (fa[i] - ma) * (fb[i] - mb)
	}
	return s / float64(n)
}

// Correlation returns Covariance(a, b) / sqrt(Variance(a) * Variance(b)),
// substituting 1 for a zero denominator.
func Correlation(a, b []float64) float64 {
	den := math.Sqrt(Variance(a) * Variance(b))
	if den == 0 {
		den = 1
	}
	return Covariance(a, b) / den
}

// OLS fits y = alpha + beta*x by least squares.
//
// Beta is 0 when x has no variance. See Regression.R2 for the goodness-of-fit
// definition.
func OLS(x, y []float64) Regression {
	fx, fy := Finite(x), Finite(y)
	n := min(len(fx), len(fy))
	if n == 0 {
		return Regression{}
	}
	xm, ym := mean(fx), mean(fy)

	var num, den float64
	for i := 0; i < n; i++ {
		num += (fx[i] - xm) * (fy[i] - ym)
		den += (fx[i] - xm) * (fx[i] - xm)
	}

	var beta float64
	if den != 0 {
		beta = num / den
	}
	alpha := ym - beta*xm

	var ssr, ssy float64
	for i := 0; i < n; i++ {
		pred := alpha + beta*fx[i]
		ssr += (pred - ym) * (pred - ym)
		ssy += (fy[i] - ym) * (fy[i] - ym)
	}

	var r2 float64
	if ssy != 0 {
		r2 = ssr / ssy
	}

	return Regression{Alpha: alpha, Beta: beta, R2: r2, N: n}
}

// ZScore returns (value - mean) / stddev of window, using 1 when the standard
// deviation is zero.
func ZScore(value float64, window []float64) float64 {
	sd := StdDev(window)
	if sd == 0 {
		sd = 1
	}
	return (value - Mean(window)) / sd
}

// Rolling applies fn to the trailing window ending at every index of values.
// Leading windows are shorter than window until enough values exist. The
// reduction is recomputed from scratch at each index.
func Rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		window = 1
	}
	for i := range values {
		start := max(0, i-window+1)
		out[i] = fn(values[start : i+1])
	}
	return out
}

// RollingPair is Rolling over two equally indexed series.
func RollingPair(a, b []float64, window int, fn func(a, b []float64) float64) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	if window < 1 {
		window = 1
	}
	for i := 0; i < n; i++ {
		start := max(0, i-window+1)
		out[i] = fn(a[start:i+1], b[start:i+1])
	}
	return out
}
