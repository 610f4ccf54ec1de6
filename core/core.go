// Package core has core logic for route analysis, journeys, trends and warnings.
package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/huangsam/perfscope/core/agg"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/outwriter"
	"github.com/huangsam/perfscope/internal/parquet"
	"github.com/huangsam/perfscope/schema"
)

// ExecutorFunc defines the function signature for executing different analysis modes.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

func routeOptions(cfg *contract.Config) RouteOptions {
	return RouteOptions{
		Normalizer:  agg.DefaultNormalizer(),
		TopN:        cfg.Policy.SummaryTopN,
		RouteFilter: cfg.RouteFilter,
	}
}

func journeyOptions(cfg *contract.Config) JourneyOptions {
	return JourneyOptions{
		Journey:    cfg.Policy.Journey,
		Bottleneck: cfg.Policy.Bottleneck,
		Normalizer: agg.DefaultNormalizer(),
	}
}

// analysisNow is the reference time of forward-looking analyses.
func analysisNow(cfg *contract.Config) time.Time {
	if cfg.EndTime.IsZero() {
		return time.Now().UTC()
	}
	return cfg.EndTime
}

func routeAnalysis(cfg *contract.Config, data Dataset) schema.RoutePerformanceAnalysis {
	return AnalyzeRoutePerformance(data.Sessions, data.Samples, routeOptions(cfg))
}

func correlationAnalysis(cfg *contract.Config, data Dataset) ([]schema.RouteCorrelationAnalysis, int) {
	analysis := routeAnalysis(cfg, data)
	return AnalyzeCorrelations(analysis.Routes, cfg.Policy.Correlation), len(analysis.Routes)
}

func journeyAnalysis(cfg *contract.Config, data Dataset) []schema.UserJourney {
	return ReconstructJourneys(data.Sessions, data.Samples, journeyOptions(cfg))
}

func warningAnalysis(cfg *contract.Config, data Dataset) []schema.EarlyWarningAlert {
	now := analysisNow(cfg)
	return GenerateEarlyWarnings(WarningInputs{
		Predictions: PredictMetrics(data.Samples, now, cfg.Policy.Prediction, agg.DefaultNormalizer()),
		Seasonal:    DetectSeasonality(data.Samples, now, cfg.Policy.Seasonal),
	}, cfg.Policy.Warning, now)
}

// Analysis computes one named result over a loaded dataset. It returns the result
// and the number of routes it covered.
type Analysis func(cfg *contract.Config, data Dataset) (any, int)

var analyses = map[string]Analysis{
	"routes": func(cfg *contract.Config, data Dataset) (any, int) {
		a := routeAnalysis(cfg, data)
		return a, len(a.Routes)
	},
	"devices": func(_ *contract.Config, data Dataset) (any, int) {
		return AnalyzeDevices(data.Sessions, data.Samples), 0
	},
	"correlations": func(cfg *contract.Config, data Dataset) (any, int) {
		return correlationAnalysis(cfg, data)
	},
	"journeys": func(cfg *contract.Config, data Dataset) (any, int) {
		journeys := rankJourneys(journeyAnalysis(cfg, data))
		return journeys, countJourneyRoutes(journeys)
	},
	"patterns": func(cfg *contract.Config, data Dataset) (any, int) {
		journeys := journeyAnalysis(cfg, data)
		return AnalyzeJourneyPatterns(journeys, MinPatternFrequency), countJourneyRoutes(journeys)
	},
	"abandonment": func(cfg *contract.Config, data Dataset) (any, int) {
		journeys := journeyAnalysis(cfg, data)
		return AnalyzeAbandonment(journeys), countJourneyRoutes(journeys)
	},
	"trends": func(cfg *contract.Config, data Dataset) (any, int) {
		return AnalyzeTrends(data.Samples, analysisNow(cfg), cfg.Policy, agg.DefaultNormalizer()), 0
	},
	"warnings": func(cfg *contract.Config, data Dataset) (any, int) {
		return warningAnalysis(cfg, data), 0
	},
	"report": func(cfg *contract.Config, data Dataset) (any, int) {
		report := AnalyzeDataset(cfg, data)
		return report, len(report.RoutePerf.Routes)
	},
}

// AnalysisNames returns the names accepted by RunAnalysis, sorted.
func AnalysisNames() []string {
	return slices.Sorted(maps.Keys(analyses))
}

// RunAnalysis loads the configured window and returns the named result without
// printing anything. It is used by the HTTP API and the MCP tools.
func RunAnalysis(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, name string) (any, error) {
	analysis, ok := analyses[name]
	if !ok {
		return nil, fmt.Errorf("unknown analysis %q", name)
	}
	var result any
	err := runAnalysisCore(withSuppressHeader(ctx), cfg, mgr, func(_ context.Context, data Dataset) int {
		var routes int
		result, routes = analysis(cfg, data)
		return routes
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteRoutes runs the route performance analysis and prints results to stdout.
// It serves as the main entry point for the 'routes' mode.
func ExecuteRoutes(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var analysis schema.RoutePerformanceAnalysis
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		analysis = routeAnalysis(cfg, data)
		return len(analysis.Routes)
	})
	if err != nil {
		return err
	}
	return outwriter.PrintRoutes(analysis, cfg, time.Since(start))
}

// ExecuteDevices runs the per-device breakdown.
func ExecuteDevices(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var devices []schema.DeviceBreakdown
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		devices = AnalyzeDevices(data.Sessions, data.Samples)
		return 0
	})
	if err != nil {
		return err
	}
	return outwriter.PrintDevices(devices, cfg, time.Since(start))
}

// ExecuteCorrelations profiles routes and correlates every pair of them.
func ExecuteCorrelations(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var correlations []schema.RouteCorrelationAnalysis
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		var routes int
		correlations, routes = correlationAnalysis(cfg, data)
		return routes
	})
	if err != nil {
		return err
	}
	return outwriter.PrintCorrelations(correlations, cfg, time.Since(start))
}

// ExecuteJourneys reconstructs user journeys, worst score first.
func ExecuteJourneys(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var journeys []schema.UserJourney
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		journeys = rankJourneys(journeyAnalysis(cfg, data))
		return countJourneyRoutes(journeys)
	})
	if err != nil {
		return err
	}
	return outwriter.PrintJourneys(journeys, cfg, time.Since(start))
}

// ExecutePatterns mines recurring journey patterns.
func ExecutePatterns(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var patterns []schema.JourneyPattern
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		journeys := journeyAnalysis(cfg, data)
		patterns = AnalyzeJourneyPatterns(journeys, MinPatternFrequency)
		return countJourneyRoutes(journeys)
	})
	if err != nil {
		return err
	}
	return outwriter.PrintPatterns(patterns, cfg, time.Since(start))
}

// ExecuteAbandonment reports the routes where abandoned journeys end.
func ExecuteAbandonment(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var points []schema.AbandonmentPoint
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		journeys := journeyAnalysis(cfg, data)
		points = AnalyzeAbandonment(journeys)
		return countJourneyRoutes(journeys)
	})
	if err != nil {
		return err
	}
	return outwriter.PrintAbandonment(points, cfg, time.Since(start))
}

// ExecuteTrends runs predictions, regression, seasonality and anomaly detection.
func ExecuteTrends(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var trends schema.TrendAnalysis
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		trends = AnalyzeTrends(data.Samples, analysisNow(cfg), cfg.Policy, agg.DefaultNormalizer())
		return 0
	})
	if err != nil {
		return err
	}
	return outwriter.PrintTrends(trends, cfg, time.Since(start))
}

// ExecuteWarnings derives early warnings from the trend engine outputs.
func ExecuteWarnings(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var warnings []schema.EarlyWarningAlert
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		warnings = warningAnalysis(cfg, data)
		return 0
	})
	if err != nil {
		return err
	}
	return outwriter.PrintWarnings(warnings, cfg, time.Since(start))
}

// ExecuteReport runs every analysis and prints the full report.
func ExecuteReport(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	var report *schema.AnalyticsReport
	err := runAnalysisCore(ctx, cfg, mgr, func(_ context.Context, data Dataset) int {
		report = AnalyzeDataset(cfg, data)
		return len(report.RoutePerf.Routes)
	})
	if err != nil {
		return err
	}
	return outwriter.PrintReport(report, cfg, time.Since(start))
}

// ExecuteExport writes the raw samples, route profiles, journeys and the run log
// of the configured window to Parquet files named after cfg.OutputFile.
func ExecuteExport(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	if cfg.OutputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	var data Dataset
	var report *schema.AnalyticsReport
	err := runAnalysisCore(withSuppressHeader(ctx), cfg, mgr, func(_ context.Context, d Dataset) int {
		data = d
		report = AnalyzeDataset(cfg, d)
		return len(report.RoutePerf.Routes)
	})
	if err != nil {
		return err
	}

	base := cfg.OutputFile
	fmt.Printf("Exporting %d sessions and %d samples from %s backend...\n", len(data.Sessions), len(data.Samples), cfg.Backend)

	samplesFile := base + ".samples.parquet"
	if err := parquet.WriteMetricSamplesParquet(parquet.ConvertMetricSamples(data.Samples), samplesFile); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	fmt.Printf("Exported %d samples to: %s\n", len(data.Samples), samplesFile)

	routesFile := base + ".routes.parquet"
	routes := parquet.ConvertRoutePerformance(report.RoutePerf.Routes, report.GeneratedAt, contract.GetPlainLabel)
	if err := parquet.WriteRoutePerformanceParquet(routes, routesFile); err != nil {
		return fmt.Errorf("failed to write routes: %w", err)
	}
	fmt.Printf("Exported %d routes to: %s\n", len(routes), routesFile)

	journeysFile := base + ".journeys.parquet"
	if err := parquet.WriteJourneysParquet(parquet.ConvertJourneys(report.Journeys), journeysFile); err != nil {
		return fmt.Errorf("failed to write journeys: %w", err)
	}
	fmt.Printf("Exported %d journeys to: %s\n", len(report.Journeys), journeysFile)

	if runs := mgr.GetAnalysisStore(); runs != nil {
		records, err := runs.ListRuns(0)
		if err != nil {
			return fmt.Errorf("failed to retrieve analysis runs: %w", err)
		}
		runsFile := base + ".analysis_runs.parquet"
		if err := parquet.WriteAnalysisRunsParquet(parquet.ConvertAnalysisRunRecords(records), runsFile); err != nil {
			return fmt.Errorf("failed to write analysis runs: %w", err)
		}
		fmt.Printf("Exported %d analysis runs to: %s\n", len(records), runsFile)
	}
	return nil
}
