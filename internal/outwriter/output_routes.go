package outwriter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/parquet"
	"github.com/huangsam/perfscope/schema"
)

// PrintRoutes outputs the route analysis, dispatching based on the output format configured.
func PrintRoutes(analysis schema.RoutePerformanceAnalysis, cfg *contract.Config, duration time.Duration) error {
	if cfg.Output == schema.ParquetOut {
		rows := parquet.ConvertRoutePerformance(analysis.Routes, time.Now().UTC(), contract.GetPlainLabel)
		if err := parquet.WriteRoutePerformanceParquet(rows, cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing parquet output: %w", err)
		}
		return nil
	}
	views := []view{routesView(analysis.Routes, cfg)}
	if cfg.Output == schema.TextOut {
		views = append(views, routeSummaryView(analysis, cfg))
	}
	return printViews(cfg, duration, analysis, views...)
}

func routesView(routes []schema.RoutePerformanceData, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)

	headers := []string{"Rank", "Route", "Score", "Label", "Risk", "Sessions", "FPS", "Memory"}
	fixed := 70
	if cfg.Detail {
		headers = append(headers, "CPU", "Load", "Screen", "Trend", "vs App")
		fixed += 45
	}
	routeWidth := getMaxTableRouteWidth(cfg, fixed)

	v := view{
		title:   "Route performance",
		headers: headers,
		csvHeader: []string{
			"rank", "route", "score", "label", "risk", "sessions", "devices", "avg_fps", "avg_memory",
			"avg_cpu", "avg_load_time", "avg_screen_duration", "trend", "excellent", "good", "fair", "poor", "score_vs_app",
		},
		empty: "No routes in the selected window.",
	}
	for i, r := range head(routes, cfg.ResultLimit) {
		row := []string{
			strconv.Itoa(i + 1),
			contract.TruncateRoute(r.RoutePattern, routeWidth),
			fmtFloat(r.PerformanceScore),
			contract.GetColorLabel(r.PerformanceScore),
			contract.GetRiskColorLabel(r.RiskLevel),
			fmtInt(r.TotalSessions),
			fpsCell(r.HasFps, r.AvgFps, fmtFloat, "-"),
			fmtFloat(r.AvgMemory),
		}
		if cfg.Detail {
			row = append(row,
				fmtFloat(r.AvgCpu),
				fmtFloat(r.AvgLoadTime),
				fmtFloat(r.AvgScreenDuration),
				string(r.PerformanceTrend),
				signed(fmtFloat, r.RelativePerformance.Score),
			)
		}
		v.rows = append(v.rows, row)
	}
	for i, r := range routes {
		v.csvRows = append(v.csvRows, []string{
			strconv.Itoa(i + 1),
			r.RoutePattern,
			fmtFloat(r.PerformanceScore),
			contract.GetPlainLabel(r.PerformanceScore),
			string(r.RiskLevel),
			fmtInt(r.TotalSessions),
			fmtInt(r.UniqueDevices),
			fpsCell(r.HasFps, r.AvgFps, fmtFloat, ""),
			fmtFloat(r.AvgMemory),
			fmtFloat(r.AvgCpu),
			fmtFloat(r.AvgLoadTime),
			fmtFloat(r.AvgScreenDuration),
			string(r.PerformanceTrend),
			fmtInt(r.Distribution.Excellent),
			fmtInt(r.Distribution.Good),
			fmtInt(r.Distribution.Fair),
			fmtInt(r.Distribution.Poor),
			fmtFloat(r.RelativePerformance.Score),
		})
	}
	return v
}

func routeSummaryView(analysis schema.RoutePerformanceAnalysis, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	s := analysis.Summary
	app := analysis.AppAverages
	list := func(routes []string) string {
		if len(routes) == 0 {
			return "-"
		}
		return strings.Join(routes, ", ")
	}
	return view{
		title:   "Summary",
		headers: []string{"Key", "Value"},
		rows: [][]string{
			{"Routes", fmtInt(s.TotalRoutes)},
			{"Sessions", fmtInt(s.TotalSessions)},
			{"App score", fmtFloat(app.PerformanceScore)},
			{"App FPS / memory", fmtFloat(app.Fps) + " / " + fmtFloat(app.Memory)},
			{"Best", list(s.BestPerformingRoutes)},
			{"Worst", list(s.WorstPerformingRoutes)},
			{"High memory", list(s.RoutesWithHighMemoryUsage)},
			{"Low FPS", list(s.RoutesWithLowFps)},
			{"High risk", list(s.HighRiskRoutes)},
		},
	}
}

// PrintDevices outputs the per-device breakdown.
func PrintDevices(devices []schema.DeviceBreakdown, cfg *contract.Config, duration time.Duration) error {
	return printViews(cfg, duration, devices, devicesView(devices, cfg))
}

func devicesView(devices []schema.DeviceBreakdown, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	v := view{
		title:     "Devices",
		headers:   []string{"Device", "Platform", "Sessions", "Score", "Risk", "FPS", "Memory", "CPU", "High-risk sessions"},
		csvHeader: []string{"device_type", "platform", "sessions", "devices", "score", "risk", "avg_fps", "avg_memory", "avg_cpu", "avg_load_time", "high_risk_sessions"},
		empty:     "No devices in the selected window.",
	}
	for _, d := range head(devices, cfg.ResultLimit) {
		v.rows = append(v.rows, []string{
			d.DeviceType,
			d.Platform,
			fmtInt(d.TotalSessions),
			fmtFloat(d.PerformanceScore),
			contract.GetRiskColorLabel(d.RiskLevel),
			fpsCell(d.HasFps, d.AvgFps, fmtFloat, "-"),
			fmtFloat(d.AvgMemory),
			fmtFloat(d.AvgCpu),
			fmtInt(d.HighRiskSessions),
		})
	}
	for _, d := range devices {
		v.csvRows = append(v.csvRows, []string{
			d.DeviceType, d.Platform, fmtInt(d.TotalSessions), fmtInt(d.UniqueDevices),
			fmtFloat(d.PerformanceScore), string(d.RiskLevel), fpsCell(d.HasFps, d.AvgFps, fmtFloat, ""), fmtFloat(d.AvgMemory),
			fmtFloat(d.AvgCpu), fmtFloat(d.AvgLoadTime), fmtInt(d.HighRiskSessions),
		})
	}
	return v
}

// PrintCorrelations outputs pairwise route correlations.
func PrintCorrelations(correlations []schema.RouteCorrelationAnalysis, cfg *contract.Config, duration time.Duration) error {
	return printViews(cfg, duration, correlations, correlationsView(correlations, cfg))
}

func correlationsView(correlations []schema.RouteCorrelationAnalysis, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(2)
	routeWidth := getMaxTableRouteWidth(cfg, 90) / 2
	headers := []string{"Source", "Target", "Type", "Strength", "Impact", "Confidence", "n"}
	if cfg.Detail {
		headers = append(headers, "FPS r", "Memory r", "CPU r")
	}
	v := view{
		title:   "Route correlations",
		headers: headers,
		csvHeader: []string{
			"source_route", "target_route", "type", "strength", "overall", "fps_r", "memory_r", "cpu_r",
			"impact", "significance", "confidence", "sample_size", "insight",
		},
		empty: "No correlated route pairs above the strength threshold.",
	}
	for _, c := range head(correlations, cfg.ResultLimit) {
		row := []string{
			contract.TruncateRoute(c.SourceRoute, routeWidth),
			contract.TruncateRoute(c.TargetRoute, routeWidth),
			string(c.CorrelationType),
			fmtFloat(c.CorrelationStrength),
			string(c.PerformanceImpact),
			fmtFloat(c.ConfidenceLevel),
			fmtInt(c.SampleSize),
		}
		if cfg.Detail {
			row = append(row, fmtFloat(c.FpsCorrelation), fmtFloat(c.MemoryCorrelation), fmtFloat(c.CpuCorrelation))
		}
		v.rows = append(v.rows, row)
	}
	for _, c := range correlations {
		v.csvRows = append(v.csvRows, []string{
			c.SourceRoute, c.TargetRoute, string(c.CorrelationType), fmtFloat(c.CorrelationStrength),
			fmtFloat(c.OverallCorrelation), fmtFloat(c.FpsCorrelation), fmtFloat(c.MemoryCorrelation),
			fmtFloat(c.CpuCorrelation), string(c.PerformanceImpact), fmtFloat(c.StatisticalSignificance),
			fmtFloat(c.ConfidenceLevel), fmtInt(c.SampleSize), c.Insight,
		})
	}
	return v
}

// signed prefixes non-negative values with a plus sign.
func signed(fmtFloat func(float64) string, v float64) string {
	if v >= 0 {
		return "+" + fmtFloat(v)
	}
	return fmtFloat(v)
}

// fpsCell renders an fps average, or missing when no fps samples were seen.
func fpsCell(has bool, v float64, fmtFloat func(float64) string, missing string) string {
	if !has {
		return missing
	}
	return fmtFloat(v)
}
