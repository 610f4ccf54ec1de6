package parquet

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/perfscope/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader := parquet.NewGenericReader[T](file)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	return rows[:n]
}

func TestStructTags(t *testing.T) {
	tests := []struct {
		name    string
		row     any
		columns []string
	}{
		{"analysis runs", new(AnalysisRun), []string{"analysis_id", "start_time", "end_time", "run_duration_ms", "total_sessions", "total_metrics", "total_routes", "config_params"}},
		{"samples", new(MetricSample), []string{"session_id", "timestamp", "metric_type", "value", "route", "screen_name"}},
		{"routes", new(RoutePerformance), []string{"analysis_time", "route_pattern", "avg_fps", "avg_memory", "performance_score", "risk_level", "score_label"}},
		{"journeys", new(Journey), []string{"journey_id", "route_sequence", "journey_score", "completion_status", "journey_duration"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parquet.SchemaOf(tt.row)
			require.NotNil(t, s)
			for _, col := range tt.columns {
				_, ok := s.Lookup(col)
				assert.True(t, ok, "column %s should exist", col)
			}
		})
	}
}

func TestWriteAnalysisRunsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "analysis_runs.parquet")

	now := time.Date(2026, 3, 2, 12, 0, 0, 123456789, time.UTC)
	end := now.Add(2 * time.Second)
	duration := int32(2000)
	params := `{"limit":25}`
	data := ConvertAnalysisRunRecords([]schema.AnalysisRunRecord{
		{AnalysisID: 1, StartTime: now, EndTime: &end, RunDurationMs: &duration, TotalSessions: 10, TotalMetrics: 200, TotalRoutes: 4, ConfigParams: &params},
		{AnalysisID: 2, StartTime: now},
	})

	require.NoError(t, WriteAnalysisRunsParquet(data, outputPath))

	got := readAll[AnalysisRun](t, outputPath)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].AnalysisID)
	assert.Equal(t, int32(200), got[0].TotalMetrics)
	require.NotNil(t, got[0].EndTime)
	assert.WithinDuration(t, end, *got[0].EndTime, time.Nanosecond)
	require.NotNil(t, got[0].ConfigParams)
	assert.Equal(t, params, *got[0].ConfigParams)

	assert.Nil(t, got[1].EndTime)
	assert.Nil(t, got[1].RunDurationMs)
	assert.Nil(t, got[1].ConfigParams)
}

func TestWriteRoutePerformanceParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "routes.parquet")
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	routes := []schema.RoutePerformanceData{
		{RoutePattern: "/game", TotalSessions: 4, AvgFps: 22.5, AvgMemory: 810, PerformanceScore: 31.2, RiskLevel: schema.HighRisk, PerformanceTrend: schema.TrendDegrading},
		{RoutePattern: "/home", TotalSessions: 9, AvgFps: 59, AvgMemory: 180, PerformanceScore: 84, RiskLevel: schema.LowRisk, PerformanceTrend: schema.TrendStable},
	}
	label := func(score float64) string {
		if score >= 80 {
			return "Excellent"
		}
		return "Poor"
	}
	require.NoError(t, WriteRoutePerformanceParquet(ConvertRoutePerformance(routes, at, label), outputPath))

	got := readAll[RoutePerformance](t, outputPath)
	require.Len(t, got, 2)
	assert.Equal(t, "/game", got[0].RoutePattern)
	assert.Equal(t, "high", got[0].RiskLevel)
	assert.Equal(t, "Poor", got[0].ScoreLabel)
	assert.Equal(t, "Excellent", got[1].ScoreLabel)
	assert.InDelta(t, 59, got[1].AvgFps, 0.001)
	assert.True(t, got[1].AnalysisTime.Equal(at))
}

func TestWriteMetricSamplesParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "samples.parquet")
	ts := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	samples := []schema.MetricSample{
		{SessionID: "s1", Timestamp: ts, MetricType: schema.FpsMetric, Value: 58, Context: schema.MetricContext{Route: "/home"}},
		{SessionID: "s1", Timestamp: ts.Add(time.Second), MetricType: schema.MemoryMetric, Value: 240, Context: schema.MetricContext{ScreenName: "Settings"}},
	}
	require.NoError(t, WriteMetricSamplesParquet(ConvertMetricSamples(samples), outputPath))

	got := readAll[MetricSample](t, outputPath)
	require.Len(t, got, 2)
	assert.Equal(t, "fps", got[0].MetricType)
	assert.Equal(t, "/home", got[0].Route)
	assert.Equal(t, "Settings", got[1].ScreenName)
	assert.Empty(t, got[1].Route)
}

func TestConvertJourneys(t *testing.T) {
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	journeys := []schema.UserJourney{{
		JourneyID:        "j1",
		SessionIDs:       []string{"s1", "s2"},
		RouteSequence:    []schema.RouteVisit{{RoutePattern: "/home"}, {RoutePattern: "/game"}},
		BottleneckPoints: []schema.BottleneckPoint{{BottleneckType: schema.MemorySpike}},
		JourneyScore:     71.5,
		CompletionStatus: schema.JourneyInProgress,
		JourneyStart:     start,
		JourneyDuration:  95,
	}}

	rows := ConvertJourneys(journeys)
	require.Len(t, rows, 1)
	assert.Equal(t, "/home > /game", rows[0].RouteSequence)
	assert.Equal(t, int32(2), rows[0].SessionCount)
	assert.Equal(t, int32(1), rows[0].Bottlenecks)
	assert.Equal(t, "in_progress", rows[0].CompletionStatus)

	outputPath := filepath.Join(t.TempDir(), "journeys.parquet")
	require.NoError(t, WriteJourneysParquet(rows, outputPath))
	got := readAll[Journey](t, outputPath)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].RouteSequence, "/home"))
}

func TestWriteParquetEmptyData(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteAnalysisRunsParquet([]AnalysisRun{}, outputPath))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "output file should contain schema even if empty")
}

func TestWriteParquetInvalidPath(t *testing.T) {
	err := WriteJourneysParquet([]Journey{}, "/nonexistent/directory/output.parquet")
	require.Error(t, err)
}
