package core

import (
	"math"
	"sort"
	"time"

	"github.com/huangsam/perfscope/core/agg"
	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// trendMetrics are the metrics that get forecasts, regressions and seasonality.
// navigation_time stands for every load-time metric.
var trendMetrics = []schema.MetricType{
	schema.FpsMetric,
	schema.MemoryMetric,
	schema.CPUMetric,
	schema.NavigationTimeMetric,
}

// Regression severity cutoff between medium and high.
const regressionHighChange = 0.35

// ciZ is the normal quantile of a 95% prediction interval.
const ciZ = 1.96

// hourPoint is the mean of one metric over one clock hour.
type hourPoint struct {
	at    time.Time
	value float64
	n     int
}

// matchesMetric reports whether a sample belongs to the metric series.
func matchesMetric(sample, metric schema.MetricType) bool {
	if metric.IsLoadTime() {
		return sample.IsLoadTime()
	}
	return sample == metric
}

// hourlySeries averages one metric per clock hour, oldest first.
func hourlySeries(samples []schema.MetricSample, metric schema.MetricType) []hourPoint {
	if metric == schema.PerformanceScoreMetric {
		return hourlyScores(samples)
	}
	sums := make(map[int64]*hourPoint)
	for _, s := range samples {
		if !matchesMetric(s.MetricType, metric) {
			continue
		}
		hour := s.Timestamp.UTC().Truncate(time.Hour)
		p, ok := sums[hour.Unix()]
		if !ok {
			p = &hourPoint{at: hour}
			sums[hour.Unix()] = p
		}
		p.value += s.Value
		p.n++
	}
	out := make([]hourPoint, 0, len(sums))
	for _, p := range sums {
		out = append(out, hourPoint{at: p.at, value: p.value / float64(p.n), n: p.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

// hourlyScores scores the per-hour averages of every metric.
func hourlyScores(samples []schema.MetricSample) []hourPoint {
	accs := make(map[int64]*agg.Accumulator)
	for _, s := range samples {
		if s.MetricType == schema.ScreenTimeMetric {
			continue
		}
		key := s.Timestamp.UTC().Truncate(time.Hour).Unix()
		acc, ok := accs[key]
		if !ok {
			acc = agg.NewAccumulator()
			accs[key] = acc
		}
		acc.Add(s.MetricType, s.Value)
	}
	out := make([]hourPoint, 0, len(accs))
	for key, acc := range accs {
		out = append(out, hourPoint{
			at:    time.Unix(key, 0).UTC(),
			value: algo.ScoreAverages(acc.Averages()),
			n:     acc.Len(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

// PredictMetrics forecasts each metric and the performance score app-wide, and the
// score per route, horizon hours past now. The forecast averages the linear trend
// and the smoothed series.
func PredictMetrics(samples []schema.MetricSample, now time.Time, policy contract.PredictionPolicy, norm *agg.Normalizer) []schema.PerformancePrediction {
	out := []schema.PerformancePrediction{}
	if norm == nil {
		norm = agg.DefaultNormalizer()
	}
	metrics := append(append([]schema.MetricType{}, trendMetrics...), schema.PerformanceScoreMetric)
	for _, m := range metrics {
		if p, ok := predictSeries(hourlySeries(samples, m), m, "", now, policy); ok {
			out = append(out, p)
		}
	}

	byRoute := agg.GroupByRoute(samples, norm)
	routes := make([]string, 0, len(byRoute))
	for r := range byRoute {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	for _, r := range routes {
		series := hourlySeries(byRoute[r], schema.PerformanceScoreMetric)
		if p, ok := predictSeries(series, schema.PerformanceScoreMetric, r, now, policy); ok {
			out = append(out, p)
		}
	}
	return out
}

func predictSeries(series []hourPoint, metric schema.MetricType, route string, now time.Time, policy contract.PredictionPolicy) (schema.PerformancePrediction, bool) {
	n := len(series)
	if n < max(policy.MinPoints, 2) {
		return schema.PerformancePrediction{}, false
	}
	horizon := max(policy.HorizonHours, 1)
	target := now.Add(time.Duration(horizon) * time.Hour)

	origin := series[0].at
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range series {
		xs[i] = p.at.Sub(origin).Hours()
		ys[i] = p.value
	}

	trend := algo.FitLinear(xs, ys)
	ols := algo.PredictLinear(trend, target.Sub(origin).Hours())
	steps := max(int(math.Ceil(target.Sub(series[n-1].at).Hours())), 1)
	smoothed := algo.SmoothingForecast(ys, policy.Alpha, policy.Damping, steps)
	predicted := boundMetric(metric, (ols+smoothed)/2)

	half := ciZ * algo.ResidualStdDev(xs, ys, trend) * math.Sqrt(1+1/float64(n))
	ci := schema.ConfidenceInterval{
		Lower: algo.Round2(boundMetric(metric, predicted-half)),
		Upper: algo.Round2(boundMetric(metric, predicted+half)),
	}

	return schema.PerformancePrediction{
		MetricType:         metric,
		RoutePattern:       route,
		CurrentValue:       algo.Round2(ys[n-1]),
		PredictedValue:     algo.Round2(predicted),
		ConfidenceInterval: ci,
		Confidence:         algo.Round2(algo.IntervalConfidence(ci)),
		Trend: schema.LinearTrend{
			Slope:     algo.Round(trend.Slope, 4),
			Intercept: algo.Round2(trend.Intercept),
			RSquared:  algo.Round(trend.RSquared, 4),
			N:         trend.N,
		},
		HorizonHours: horizon,
		PredictedFor: target,
	}, true
}

// boundMetric keeps forecasts within the metric's physical range.
func boundMetric(metric schema.MetricType, v float64) float64 {
	switch metric {
	case schema.PerformanceScoreMetric, schema.CPUMetric:
		return algo.Clamp(v, 0, 100)
	default:
		return math.Max(v, 0)
	}
}

// DetectRegressions compares each metric's recent window against its baseline,
// app-wide and per route. Lower fps is worse; higher values of the others are worse.
func DetectRegressions(samples []schema.MetricSample, now time.Time, policy contract.RegressionPolicy, norm *agg.Normalizer) []schema.PerformanceRegression {
	out := []schema.PerformanceRegression{}
	if norm == nil {
		norm = agg.DefaultNormalizer()
	}
	out = append(out, regressionsFor(samples, "", now, policy)...)

	byRoute := agg.GroupByRoute(samples, norm)
	routes := make([]string, 0, len(byRoute))
	for r := range byRoute {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	for _, r := range routes {
		out = append(out, regressionsFor(byRoute[r], r, now, policy)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return math.Abs(out[i].ChangePercent) > math.Abs(out[j].ChangePercent)
	})
	return out
}

func regressionsFor(samples []schema.MetricSample, route string, now time.Time, policy contract.RegressionPolicy) []schema.PerformanceRegression {
	recentStart := now.Add(-policy.RecentWindow)
	baselineStart := now.Add(-policy.BaselineWindow)

	var out []schema.PerformanceRegression
	for _, m := range trendMetrics {
		var recent, baseline []float64
		for _, s := range samples {
			if !matchesMetric(s.MetricType, m) || s.Timestamp.After(now) {
				continue
			}
			switch {
			case !s.Timestamp.Before(recentStart):
				recent = append(recent, s.Value)
			case !s.Timestamp.Before(baselineStart):
				baseline = append(baseline, s.Value)
			}
		}
		if len(recent) < policy.MinSamples || len(baseline) < policy.MinSamples {
			continue
		}
		base, cur := algo.Mean(baseline), algo.Mean(recent)
		if base == 0 {
			continue
		}
		change := (cur - base) / base
		degradation := change
		if m.LowerIsWorse() {
			degradation = -change
		}
		if degradation <= policy.Threshold {
			continue
		}
		severity := schema.SeverityMedium
		switch {
		case degradation > policy.CriticalThreshold:
			severity = schema.SeverityCritical
		case degradation > regressionHighChange:
			severity = schema.SeverityHigh
		}
		out = append(out, schema.PerformanceRegression{
			MetricType:      m,
			RoutePattern:    route,
			BaselineMean:    algo.Round2(base),
			RecentMean:      algo.Round2(cur),
			ChangePercent:   algo.Round2(change * 100),
			Severity:        severity,
			BaselineSamples: len(baseline),
			RecentSamples:   len(recent),
			DetectedAt:      now,
		})
	}
	return out
}

// DetectAnomalies flags hourly means whose z-score exceeds the threshold.
func DetectAnomalies(samples []schema.MetricSample, zThreshold float64) []schema.Anomaly {
	out := []schema.Anomaly{}
	if zThreshold <= 0 {
		zThreshold = 3
	}
	for _, m := range trendMetrics {
		series := hourlySeries(samples, m)
		values := make([]float64, len(series))
		for i, p := range series {
			values[i] = p.value
		}
		mean := algo.Mean(values)
		for i, z := range algo.ZScores(values) {
			if math.Abs(z) > zThreshold {
				out = append(out, schema.Anomaly{
					MetricType: m,
					Timestamp:  series[i].at,
					Value:      algo.Round2(values[i]),
					Mean:       algo.Round2(mean),
					ZScore:     algo.Round2(z),
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
