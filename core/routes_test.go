package core

import (
	"testing"

	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRoutePerformance(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		out := AnalyzeRoutePerformance(nil, nil, RouteOptions{})
		assert.NotNil(t, out.Routes)
		assert.Empty(t, out.Routes)
		assert.Equal(t, 0, out.Summary.TotalRoutes)
		assert.NotNil(t, out.Summary.HighRiskRoutes)
	})

	t.Run("two routes", func(t *testing.T) {
		sessions, samples := twoRouteDataset()
		out := AnalyzeRoutePerformance(sessions, samples, RouteOptions{})
		require.Len(t, out.Routes, 2)

		// Ranked best first
		assert.Equal(t, "/home", out.Routes[0].RoutePattern)
		assert.Equal(t, "/game", out.Routes[1].RoutePattern)
		assert.Greater(t, out.Routes[0].PerformanceScore, out.Routes[1].PerformanceScore)

		game, ok := routeByPattern(out.Routes, "/game")
		require.True(t, ok)
		assert.Equal(t, 2, game.TotalSessions)
		assert.Equal(t, 2, game.UniqueDevices)
		assert.InDelta(t, 20, game.AvgFps, 0.01)
		assert.InDelta(t, 900, game.AvgMemory, 0.01)
		assert.Equal(t, schema.HighRisk, game.RiskLevel)
		assert.Equal(t, schema.TrendStable, game.PerformanceTrend)
		assert.Len(t, game.Series.Fps, 2)
		assert.Less(t, game.RelativePerformance.Score, 0.0)

		home, ok := routeByPattern(out.Routes, "/home")
		require.True(t, ok)
		assert.Equal(t, schema.MediumRisk, home.RiskLevel, "two sessions are too few for low risk")

		assert.Equal(t, 2, out.Summary.TotalRoutes)
		assert.Equal(t, 2, out.Summary.TotalSessions)
		assert.Equal(t, []string{"/home", "/game"}, out.Summary.BestPerformingRoutes)
		assert.Equal(t, []string{"/game", "/home"}, out.Summary.WorstPerformingRoutes)
		assert.Equal(t, []string{"/game"}, out.Summary.HighRiskRoutes)
		assert.Equal(t, []string{"/game"}, out.Summary.RoutesWithHighMemoryUsage)
		assert.Equal(t, []string{"/game"}, out.Summary.RoutesWithLowFps)

		assert.InDelta(t, 40, out.AppAverages.Fps, 0.01)
		assert.InDelta(t, 550, out.AppAverages.Memory, 0.01)
	})

	t.Run("route filter and top n", func(t *testing.T) {
		sessions, samples := twoRouteDataset()
		out := AnalyzeRoutePerformance(sessions, samples, RouteOptions{RouteFilter: "/ga", TopN: 1})
		require.Len(t, out.Routes, 1)
		assert.Equal(t, "/game", out.Routes[0].RoutePattern)
		assert.Len(t, out.Summary.BestPerformingRoutes, 1)
	})

	t.Run("dynamic segments share a pattern", func(t *testing.T) {
		sessions := []schema.Session{
			newSession("s1", "u1", at(0), nil),
			newSession("s2", "u2", at(0), nil),
		}
		samples := []schema.MetricSample{
			newSample("s1", at(0), schema.FpsMetric, 55, "/user/123"),
			newSample("s2", at(5), schema.FpsMetric, 50, "/user/456"),
		}
		out := AnalyzeRoutePerformance(sessions, samples, RouteOptions{})
		require.Len(t, out.Routes, 1)
		assert.Equal(t, "/user/:id", out.Routes[0].RoutePattern)
		assert.Equal(t, 2, out.Routes[0].TotalSessions)
	})
}

func TestClassifyRisk(t *testing.T) {
	memOnly := schema.MetricAverages{Memory: 100, Counts: map[schema.MetricType]int{schema.MemoryMetric: 1}}
	stalled := schema.MetricAverages{Fps: 10, Counts: map[schema.MetricType]int{schema.FpsMetric: 1}}
	smooth := schema.MetricAverages{Fps: 58, Memory: 150, Counts: map[schema.MetricType]int{schema.FpsMetric: 1, schema.MemoryMetric: 1}}

	tests := []struct {
		name     string
		avg      schema.MetricAverages
		sessions int
		want     schema.RiskLevel
	}{
		{"missing fps is not a stall", memOnly, 10, schema.LowRisk},
		{"low fps", stalled, 10, schema.HighRisk},
		{"smooth with many sessions", smooth, 10, schema.LowRisk},
		{"smooth with one session", smooth, 1, schema.HighRisk},
		{"smooth with few sessions", smooth, 3, schema.MediumRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRisk(schema.RouteRiskThresholds, tt.avg, tt.sessions))
		})
	}

	assert.Equal(t, schema.HighRisk, SessionRisk(stalled))
	assert.Equal(t, schema.LowRisk, SessionRisk(smooth))
}

func TestScoreTrend(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   schema.PerformanceTrend
	}{
		{"too few", []float64{10, 90, 10}, schema.TrendStable},
		{"improving", []float64{40, 40, 80, 80}, schema.TrendImproving},
		{"degrading", []float64{80, 80, 40, 40}, schema.TrendDegrading},
		{"flat", []float64{50, 52, 51, 53}, schema.TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreTrend(tt.scores))
		})
	}
}

func TestAnalyzeDevices(t *testing.T) {
	assert.Empty(t, AnalyzeDevices(nil, nil))

	sessions, samples := twoRouteDataset()
	pixel := newSession("s3", "user3", at(0), nil)
	pixel.DeviceType = "Pixel 8"
	pixel.Platform = "android"
	sessions = append(sessions, pixel)

	out := AnalyzeDevices(sessions, samples)
	require.Len(t, out, 2)

	assert.Equal(t, "iPhone 15", out[0].DeviceType)
	assert.Equal(t, "ios", out[0].Platform)
	assert.Equal(t, 2, out[0].TotalSessions)
	assert.Equal(t, 2, out[0].UniqueDevices)
	assert.InDelta(t, 40, out[0].AvgFps, 0.01)
	assert.True(t, out[0].HasFps)
	assert.Equal(t, 2, out[0].HighRiskSessions)

	// Sessions without samples count but do not average
	assert.Equal(t, "Pixel 8", out[1].DeviceType)
	assert.Equal(t, 1, out[1].TotalSessions)
	assert.Zero(t, out[1].AvgFps)
	assert.False(t, out[1].HasFps)
	assert.Zero(t, out[1].HighRiskSessions)
}

func TestAnalyzeRoutePerformanceWithoutFps(t *testing.T) {
	sessions, samples := twoRouteDataset()
	samples = append(samples,
		newSample("s1", at(40), schema.MemoryMetric, 150, "/settings"),
		newSample("s2", at(41), schema.MemoryMetric, 160, "/settings"),
	)
	out := AnalyzeRoutePerformance(sessions, samples, RouteOptions{})

	settings, ok := routeByPattern(out.Routes, "/settings")
	require.True(t, ok)
	assert.False(t, settings.HasFps)
	assert.Zero(t, settings.AvgFps)
	assert.Empty(t, settings.Series.Fps)
	assert.NotContains(t, out.Summary.RoutesWithLowFps, "/settings")

	home, ok := routeByPattern(out.Routes, "/home")
	require.True(t, ok)
	assert.True(t, home.HasFps)
}

func BenchmarkAnalyzeRoutePerformance(b *testing.B) {
	sessions, samples := twoRouteDataset()
	for b.Loop() {
		AnalyzeRoutePerformance(sessions, samples, RouteOptions{})
	}
}
