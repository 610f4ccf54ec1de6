package outwriter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, output schema.OutputMode) *contract.Config {
	t.Helper()
	return &contract.Config{
		Output:      output,
		OutputFile:  filepath.Join(t.TempDir(), "out."+string(output)),
		Precision:   1,
		ResultLimit: 10,
		Width:       120,
		Workers:     2,
		Backend:     schema.SQLiteBackend,
	}
}

func readOutput(t *testing.T, cfg *contract.Config) string {
	t.Helper()
	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	return string(data)
}

func sampleAnalysis() schema.RoutePerformanceAnalysis {
	analysis := schema.EmptyRoutePerformanceAnalysis()
	analysis.Routes = []schema.RoutePerformanceData{
		{RoutePattern: "/home", TotalSessions: 9, AvgFps: 59, HasFps: true, AvgMemory: 180, PerformanceScore: 84.3, RiskLevel: schema.LowRisk, PerformanceTrend: schema.TrendStable},
		{RoutePattern: "/game", TotalSessions: 4, AvgFps: 22, HasFps: true, AvgMemory: 810, PerformanceScore: 31, RiskLevel: schema.HighRisk, PerformanceTrend: schema.TrendDegrading},
	}
	analysis.Summary.TotalRoutes = 2
	analysis.Summary.HighRiskRoutes = []string{"/game"}
	return analysis
}

func TestPrintRoutes(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		cfg := testConfig(t, schema.CSVOut)
		require.NoError(t, PrintRoutes(sampleAnalysis(), cfg, time.Second))

		records, err := csv.NewReader(strings.NewReader(readOutput(t, cfg))).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "rank", records[0][0])
		assert.Equal(t, []string{"1", "/home", "84.3", "Excellent", "low"}, records[1][:5])
		assert.Equal(t, "Poor", records[2][3])
	})

	t.Run("json", func(t *testing.T) {
		cfg := testConfig(t, schema.JSONOut)
		require.NoError(t, PrintRoutes(sampleAnalysis(), cfg, time.Second))

		var decoded schema.RoutePerformanceAnalysis
		require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg)), &decoded))
		assert.Len(t, decoded.Routes, 2)
		assert.Equal(t, []string{"/game"}, decoded.Summary.HighRiskRoutes)
		assert.Empty(t, decoded.Summary.RoutesWithLowFps)
	})

	t.Run("text", func(t *testing.T) {
		cfg := testConfig(t, schema.TextOut)
		cfg.Detail = true
		require.NoError(t, PrintRoutes(sampleAnalysis(), cfg, time.Second))

		out := readOutput(t, cfg)
		assert.Contains(t, out, "/home")
		assert.Contains(t, out, "/game")
		assert.Contains(t, out, "Summary")
		assert.Contains(t, out, "Analysis completed in 1s with 2 workers. Backend: sqlite")
	})

	t.Run("parquet", func(t *testing.T) {
		cfg := testConfig(t, schema.ParquetOut)
		require.NoError(t, PrintRoutes(sampleAnalysis(), cfg, time.Second))
		info, err := os.Stat(cfg.OutputFile)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	})
}

func TestPrintRoutesWithoutFps(t *testing.T) {
	analysis := sampleAnalysis()
	analysis.Routes = append(analysis.Routes, schema.RoutePerformanceData{
		RoutePattern: "/settings", TotalSessions: 2, AvgMemory: 140, PerformanceScore: 70, RiskLevel: schema.LowRisk,
	})

	cfg := testConfig(t, schema.CSVOut)
	require.NoError(t, PrintRoutes(analysis, cfg, time.Second))
	records, err := csv.NewReader(strings.NewReader(readOutput(t, cfg))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "avg_fps", records[0][7])
	assert.Equal(t, "59.0", records[1][7])
	assert.Empty(t, records[3][7], "missing fps is not printed as zero")
}

func TestPrintTrendsCSVSections(t *testing.T) {
	cfg := testConfig(t, schema.CSVOut)
	trends := schema.TrendAnalysis{
		Predictions: []schema.PerformancePrediction{{MetricType: schema.MemoryMetric, CurrentValue: 300, PredictedValue: 420, Confidence: 0.8}},
		Regressions: []schema.PerformanceRegression{},
		Seasonal:    []schema.SeasonalPattern{},
		Anomalies:   []schema.Anomaly{{MetricType: schema.FpsMetric, Value: 12, Mean: 58, ZScore: -3.4}},
	}
	require.NoError(t, PrintTrends(trends, cfg, 0))

	out := readOutput(t, cfg)
	assert.Contains(t, out, "# Predictions\n")
	assert.Contains(t, out, "# Anomalies\n")
	assert.Contains(t, out, "memory_usage,,300.0,420.0")
	assert.Contains(t, out, "-3.40")
}

func TestPrintViewsParquetUnsupported(t *testing.T) {
	cfg := testConfig(t, schema.ParquetOut)
	err := PrintWarnings([]schema.EarlyWarningAlert{}, cfg, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parquet")
}

func TestPrintReport(t *testing.T) {
	report := schema.NewAnalyticsReport(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), schema.ReportWindow{})
	report.RoutePerf = sampleAnalysis()
	report.PartialFailures = []schema.PartialFailure{{Section: "journeys", Error: "panic: boom"}}

	t.Run("text", func(t *testing.T) {
		cfg := testConfig(t, schema.TextOut)
		require.NoError(t, PrintReport(report, cfg, time.Second))
		out := readOutput(t, cfg)
		for _, title := range []string{"Overview", "Route performance", "User journeys", "Early warnings", "Partial failures"} {
			assert.Contains(t, out, title)
		}
		assert.Contains(t, out, "No journeys in the selected window.")
	})

	t.Run("parquet", func(t *testing.T) {
		cfg := testConfig(t, schema.ParquetOut)
		require.NoError(t, PrintReport(report, cfg, time.Second))
		base := strings.TrimSuffix(cfg.OutputFile, ".parquet")
		assert.FileExists(t, base+".routes.parquet")
		assert.FileExists(t, base+".journeys.parquet")
	})
}

func TestPrintAlerts(t *testing.T) {
	triggered := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	acked := triggered.Add(time.Minute)

	t.Run("instances csv", func(t *testing.T) {
		cfg := testConfig(t, schema.CSVOut)
		instances := []schema.AlertInstance{{ID: 3, ConfigID: 1, Status: schema.AlertAcknowledged, TriggeredValue: 21, Threshold: 30, TriggeredAt: triggered, AcknowledgedAt: &acked}}
		require.NoError(t, PrintAlertInstances(instances, cfg))

		records, err := csv.NewReader(strings.NewReader(readOutput(t, cfg))).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "acknowledged", records[1][2])
		assert.Equal(t, acked.Format(contract.DateTimeFormat), records[1][6])
		assert.Empty(t, records[1][7])
	})

	t.Run("check result json", func(t *testing.T) {
		cfg := testConfig(t, schema.JSONOut)
		result := schema.CheckResult{CheckedAt: triggered, Evaluated: 2, Violations: 1, Triggered: []schema.AlertInstance{}}
		require.NoError(t, PrintCheckResult(result, cfg))
		assert.Contains(t, readOutput(t, cfg), `"triggered": []`)
	})

	t.Run("configs text", func(t *testing.T) {
		cfg := testConfig(t, schema.TextOut)
		configs := []schema.AlertConfig{{ID: 1, Name: "low fps", MetricType: schema.FpsMetric, Condition: schema.ConditionBelow, Threshold: 30, WindowMinutes: 15, Severity: schema.SeverityHigh, Enabled: true}}
		require.NoError(t, PrintAlertConfigs(configs, cfg))
		out := readOutput(t, cfg)
		assert.Contains(t, out, "fps below 30.0")
		assert.NotContains(t, out, "Analysis completed")
	})
}

func TestPrintRuns(t *testing.T) {
	cfg := testConfig(t, schema.CSVOut)
	duration := int32(1500)
	runs := []schema.AnalysisRunRecord{
		{AnalysisID: 2, StartTime: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), TotalSessions: 4},
		{AnalysisID: 1, StartTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), RunDurationMs: &duration, TotalRoutes: 3},
	}
	require.NoError(t, PrintRuns(runs, cfg))

	records, err := csv.NewReader(strings.NewReader(readOutput(t, cfg))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "running", records[1][3])
	assert.Equal(t, "1500", records[2][3])
}

func TestWriteCSVViewsSingle(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVViews(&buf, []view{{title: "ignored", csvHeader: []string{"a", "b"}, csvRows: [][]string{{"1", "2"}}}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", buf.String())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, []int{1, 2}, head([]int{1, 2, 3}, 2))
	assert.Equal(t, []int{1, 2, 3}, head([]int{1, 2, 3}, 0))

	fmtFloat, fmtInt := createFormatters(2)
	assert.Equal(t, "+1.50", signed(fmtFloat, 1.5))
	assert.Equal(t, "-0.25", signed(fmtFloat, -0.25))
	assert.Equal(t, "42", fmtInt(42))
	assert.Equal(t, "40%", percent(0.4))
	assert.Equal(t, "app", scopeOf(""))

	assert.Equal(t, 15, getMaxTableRouteWidth(&contract.Config{Width: 40}, 70))
	assert.Equal(t, 60, getMaxTableRouteWidth(&contract.Config{Width: 400}, 70))
	assert.Equal(t, 30, getMaxTableRouteWidth(&contract.Config{Width: 120}, 70))
}
