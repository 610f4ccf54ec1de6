package core

import (
	"testing"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hoursBefore(now time.Time, h int) time.Time {
	return now.Add(-time.Duration(h) * time.Hour)
}

func findPrediction(preds []schema.PerformancePrediction, metric schema.MetricType, route string) (schema.PerformancePrediction, bool) {
	for _, p := range preds {
		if p.MetricType == metric && p.RoutePattern == route {
			return p, true
		}
	}
	return schema.PerformancePrediction{}, false
}

func TestPredictMetrics(t *testing.T) {
	policy := contract.DefaultPolicy().Prediction
	now := t0

	t.Run("too few points", func(t *testing.T) {
		samples := []schema.MetricSample{
			newSample("s1", hoursBefore(now, 1), schema.MemoryMetric, 100, ""),
			newSample("s1", now, schema.MemoryMetric, 200, ""),
		}
		preds := PredictMetrics(samples, now, policy, nil)
		assert.NotNil(t, preds)
		assert.Empty(t, preds)
	})

	t.Run("rising memory", func(t *testing.T) {
		var samples []schema.MetricSample
		for h := 5; h >= 0; h-- {
			samples = append(samples, newSample("s1", hoursBefore(now, h), schema.MemoryMetric, float64(600-100*h), "/feed"))
		}

		preds := PredictMetrics(samples, now, policy, nil)

		mem, ok := findPrediction(preds, schema.MemoryMetric, "")
		require.True(t, ok)
		assert.InDelta(t, 600, mem.CurrentValue, 0.01)
		assert.Greater(t, mem.PredictedValue, mem.CurrentValue)
		assert.InDelta(t, 100, mem.Trend.Slope, 0.01)
		assert.InDelta(t, 1, mem.Trend.RSquared, 0.01)
		assert.Equal(t, policy.HorizonHours, mem.HorizonHours)
		assert.Equal(t, now.Add(24*time.Hour), mem.PredictedFor)
		assert.LessOrEqual(t, mem.ConfidenceInterval.Lower, mem.PredictedValue)
		assert.GreaterOrEqual(t, mem.ConfidenceInterval.Upper, mem.PredictedValue)

		score, ok := findPrediction(preds, schema.PerformanceScoreMetric, "")
		require.True(t, ok)
		assert.Less(t, score.PredictedValue, score.CurrentValue, "rising memory lowers the score")
		assert.GreaterOrEqual(t, score.PredictedValue, 0.0)

		_, ok = findPrediction(preds, schema.PerformanceScoreMetric, "/feed")
		assert.True(t, ok, "routes get their own score forecast")

		_, ok = findPrediction(preds, schema.FpsMetric, "")
		assert.False(t, ok, "no fps samples, no fps forecast")
	})
}

func TestDetectRegressions(t *testing.T) {
	policy := contract.DefaultPolicy().Regression
	now := t0

	var samples []schema.MetricSample
	for i := range 3 {
		samples = append(samples,
			newSample("s1", hoursBefore(now, 20-i), schema.FpsMetric, 60, ""),
			newSample("s1", hoursBefore(now, 20-i), schema.MemoryMetric, 300, ""),
			newSample("s1", hoursBefore(now, 2-i), schema.FpsMetric, 30, ""),
			newSample("s1", hoursBefore(now, 2-i), schema.MemoryMetric, 310, ""),
		)
	}
	// Samples after now are ignored
	samples = append(samples, newSample("s1", now.Add(time.Hour), schema.MemoryMetric, 5000, ""))

	regs := DetectRegressions(samples, now, policy, nil)
	require.Len(t, regs, 1)

	r := regs[0]
	assert.Equal(t, schema.FpsMetric, r.MetricType)
	assert.Empty(t, r.RoutePattern)
	assert.InDelta(t, 60, r.BaselineMean, 0.01)
	assert.InDelta(t, 30, r.RecentMean, 0.01)
	assert.InDelta(t, -50, r.ChangePercent, 0.01)
	assert.Equal(t, schema.SeverityHigh, r.Severity)
	assert.Equal(t, 3, r.BaselineSamples)
	assert.Equal(t, 3, r.RecentSamples)

	// Not enough samples in either window
	assert.Empty(t, DetectRegressions(samples[:4], now, policy, nil))
}

func TestDetectAnomalies(t *testing.T) {
	var samples []schema.MetricSample
	for h := range 20 {
		samples = append(samples, newSample("s1", hoursBefore(t0, 30-h), schema.FpsMetric, 50+float64(h%2), ""))
	}
	spike := hoursBefore(t0, 5)
	samples = append(samples, newSample("s1", spike, schema.FpsMetric, 5, ""))

	out := DetectAnomalies(samples, 3)
	require.Len(t, out, 1)
	assert.Equal(t, schema.FpsMetric, out[0].MetricType)
	assert.Equal(t, spike, out[0].Timestamp)
	assert.InDelta(t, 5, out[0].Value, 0.01)
	assert.Less(t, out[0].ZScore, -3.0)

	assert.Empty(t, DetectAnomalies(samples[:20], 3))
}
