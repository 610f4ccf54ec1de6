// Package algo holds the numeric kernels shared by the analyzers.
package algo

import (
	"math"

	"github.com/huangsam/perfscope/schema"
	"gonum.org/v1/gonum/stat"
)

// DefaultSmoothingAlpha is the default exponential smoothing factor.
const DefaultSmoothingAlpha = 0.3

// Round rounds v to the given number of decimal places. NaN and Inf become zero.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return Round(v, 2)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean returns the arithmetic mean, zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// MeanNonZero averages only the positive values. Zero marks a missing measurement.
func MeanNonZero(values []float64) float64 {
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			kept = append(kept, v)
		}
	}
	return Mean(kept)
}

// Pearson returns the correlation of xs and ys paired index-wise up to the shorter length.
//
// With no pairs it returns 0. With one pair it falls back to the similarity
// 1 - |x-y|/max(|x|,|y|), which is not a true correlation. When either series
// has zero variance it returns 1 if both are the same constant, else 0.
func Pearson(xs, ys []float64) float64 {
	n := min(len(xs), len(ys))
	switch n {
	case 0:
		return 0
	case 1:
		return pointSimilarity(xs[0], ys[0])
	}

	x, y := xs[:n], ys[:n]
	xConst, yConst := isConstant(x), isConstant(y)
	if xConst || yConst {
		if xConst && yConst && x[0] == y[0] {
			return 1
		}
		return 0
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return Clamp(r, -1, 1)
}

func pointSimilarity(x, y float64) float64 {
	denom := math.Max(math.Abs(x), math.Abs(y))
	if denom == 0 {
		return 1
	}
	return Clamp(1-math.Abs(x-y)/denom, -1, 1)
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// Significance approximates a two-tailed significance for a correlation r over n pairs.
// It uses t = r*sqrt((n-2)/(1-r^2)) and p = exp(-0.5t^2)*(1+|t|/df). This is a
// ranking heuristic and not an exact Student's t distribution.
func Significance(r float64, n int) float64 {
	if n < 3 {
		return 0
	}
	if math.Abs(r) >= 1 {
		return 1
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	p := math.Exp(-0.5*t*t) * (1 + math.Abs(t)/df)
	return Clamp(1-p, 0, 1)
}

// SampleConfidence maps the smaller sample size of a comparison to a confidence level.
func SampleConfidence(minSamples int) float64 {
	switch {
	case minSamples >= 20:
		return 0.9
	case minSamples >= 10:
		return 0.7
	case minSamples >= 5:
		return 0.5
	default:
		return 0.3
	}
}

// IntervalConfidence derives a confidence from a prediction interval:
// max(0.1, 1 - min(range/midpoint, 1)).
func IntervalConfidence(ci schema.ConfidenceInterval) float64 {
	mid := math.Abs((ci.Upper + ci.Lower) / 2)
	if mid == 0 {
		return 0.1
	}
	spread := math.Abs(ci.Upper - ci.Lower)
	return math.Max(0.1, 1-math.Min(spread/mid, 1))
}

// FitLinear returns the ordinary least-squares fit of ys over xs.
// A constant ys series is a perfect fit with zero slope.
func FitLinear(xs, ys []float64) schema.LinearTrend {
	n := min(len(xs), len(ys))
	switch n {
	case 0:
		return schema.LinearTrend{}
	case 1:
		return schema.LinearTrend{Intercept: ys[0], N: 1}
	}

	x, y := xs[:n], ys[:n]
	if isConstant(y) {
		return schema.LinearTrend{Intercept: y[0], RSquared: 1, N: n}
	}
	if isConstant(x) {
		return schema.LinearTrend{Intercept: stat.Mean(y, nil), N: n}
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) {
		r2 = 0
	}
	return schema.LinearTrend{Slope: beta, Intercept: alpha, RSquared: r2, N: n}
}

// FitIndexed fits ys against their index 0..n-1.
func FitIndexed(ys []float64) schema.LinearTrend {
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	return FitLinear(xs, ys)
}

// PredictLinear evaluates the trend at x.
func PredictLinear(trend schema.LinearTrend, x float64) float64 {
	return trend.Intercept + trend.Slope*x
}

// ResidualStdDev returns sqrt(SSres/(n-2)) of the fit, zero when n <= 2.
func ResidualStdDev(xs, ys []float64, trend schema.LinearTrend) float64 {
	n := min(len(xs), len(ys))
	if n <= 2 {
		return 0
	}
	var ss float64
	for i := range n {
		r := ys[i] - PredictLinear(trend, xs[i])
		ss += r * r
	}
	return math.Sqrt(ss / float64(n-2))
}

// ExponentialSmoothing applies s_t = a*x_t + (1-a)*s_{t-1} seeded with the first value.
// An alpha outside (0, 1] falls back to DefaultSmoothingAlpha.
func ExponentialSmoothing(series []float64, alpha float64) []float64 {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSmoothingAlpha
	}
	out := make([]float64, len(series))
	for i, x := range series {
		if i == 0 {
			out[i] = x
			continue
		}
		out[i] = alpha*x + (1-alpha)*out[i-1]
	}
	return out
}

// SmoothingForecast projects the smoothed series horizon steps ahead.
// A damping of zero holds the last level flat. A damping in (0, 1] adds the
// last smoothed step damped by phi^i for each step ahead.
func SmoothingForecast(series []float64, alpha, damping float64, horizon int) float64 {
	smoothed := ExponentialSmoothing(series, alpha)
	n := len(smoothed)
	if n == 0 {
		return 0
	}
	level := smoothed[n-1]
	if damping <= 0 || n < 2 || horizon <= 0 {
		return level
	}
	damping = math.Min(damping, 1)
	step := smoothed[n-1] - smoothed[n-2]
	var factor, phi float64 = 0, 1
	for range horizon {
		phi *= damping
		factor += phi
	}
	return level + factor*step
}

// ZScores returns the standard score of each value. A zero spread yields zeros.
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) < 2 {
		return out
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
