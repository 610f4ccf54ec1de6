package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/huangsam/perfscope/core/agg"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
	"golang.org/x/sync/errgroup"
)

// Report sections, as recorded in PartialFailures.
const (
	SectionRoutes          = "route_performance"
	SectionDevices         = "devices"
	SectionCorrelations    = "correlations"
	SectionJourneys        = "journeys"
	SectionPatterns        = "journey_patterns"
	SectionAbandonment     = "abandonment"
	SectionTrends          = "trends"
	SectionWarnings        = "early_warnings"
	SectionRecommendations = "recommendations"
)

// Dataset is the raw input of one analysis window.
type Dataset struct {
	Sessions []schema.Session
	Samples  []schema.MetricSample
}

// LoadDataset lists the sessions of the configured window and fetches their samples
// in batches of session IDs, cfg.Workers batches at a time. Samples come back sorted
// by timestamp and capped at the row limit, which keeps the most recent rows since
// trends and warnings are anchored at the end of the window. Data source failures are
// UpstreamErrors.
func LoadDataset(ctx context.Context, cfg *contract.Config, src contract.DataSource) (Dataset, error) {
	sessions, err := src.ListSessions(ctx, cfg.SessionFilter())
	if err != nil {
		return Dataset{}, contract.NewUpstreamError("list sessions", err)
	}
	if len(sessions) == 0 {
		return Dataset{Sessions: []schema.Session{}, Samples: []schema.MetricSample{}}, nil
	}

	batchSize := max(cfg.BatchSize, 1)
	var batches [][]string
	for start := 0; start < len(sessions); start += batchSize {
		end := min(start+batchSize, len(sessions))
		ids := make([]string, 0, end-start)
		for _, s := range sessions[start:end] {
			ids = append(ids, s.ID)
		}
		batches = append(batches, ids)
	}

	filter := schema.MetricFilter{Start: cfg.StartTime, End: cfg.EndTime, Limit: cfg.RowLimit, Newest: true}
	results := make([][]schema.MetricSample, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, ids := range batches {
		g.Go(func() error {
			rows, err := src.ListMetrics(gctx, ids, filter)
			if err != nil {
				return contract.NewUpstreamError("list metrics", err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	var total int
	for _, rows := range results {
		total += len(rows)
	}
	samples := make([]schema.MetricSample, 0, total)
	for _, rows := range results {
		samples = append(samples, rows...)
	}
	agg.SortSamples(samples)
	if cfg.RowLimit > 0 && len(samples) > cfg.RowLimit {
		samples = samples[len(samples)-cfg.RowLimit:]
	}

	analysisID, _ := getAnalysisID(ctx)
	logging.Debug().
		Int64("analysis", analysisID).
		Int("sessions", len(sessions)).
		Int("samples", len(samples)).
		Int("batches", len(batches)).
		Msg("dataset loaded")
	return Dataset{Sessions: sessions, Samples: samples}, nil
}

// BuildReport loads the configured window and runs every analysis over it. A section
// that panics is logged, recorded in PartialFailures and left empty while the rest of
// the report is still returned. Only data source failures are returned as errors.
func BuildReport(ctx context.Context, cfg *contract.Config, src contract.DataSource) (*schema.AnalyticsReport, error) {
	data, err := LoadDataset(ctx, cfg, src)
	if err != nil {
		return nil, err
	}
	return AnalyzeDataset(cfg, data), nil
}

// AnalyzeDataset runs every analysis over an already loaded dataset.
func AnalyzeDataset(cfg *contract.Config, data Dataset) *schema.AnalyticsReport {
	now := cfg.EndTime
	if now.IsZero() {
		now = time.Now().UTC()
	}
	policy := cfg.Policy
	norm := agg.DefaultNormalizer()

	report := schema.NewAnalyticsReport(time.Now().UTC(), schema.ReportWindow{Start: cfg.StartTime, End: cfg.EndTime})
	report.TotalSessions = len(data.Sessions)
	report.TotalMetrics = len(data.Samples)

	section := func(name string, fn func()) {
		if err := recoverSection(fn); err != nil {
			logging.Err(err).Str("section", name).Msg("report section failed")
			report.PartialFailures = append(report.PartialFailures, schema.PartialFailure{Section: name, Error: err.Error()})
		}
	}

	section(SectionRoutes, func() {
		report.RoutePerf = AnalyzeRoutePerformance(data.Sessions, data.Samples, RouteOptions{
			Normalizer:  norm,
			TopN:        policy.SummaryTopN,
			RouteFilter: cfg.RouteFilter,
		})
	})
	section(SectionDevices, func() {
		report.Devices = AnalyzeDevices(data.Sessions, data.Samples)
	})
	section(SectionCorrelations, func() {
		report.Correlations = AnalyzeCorrelations(report.RoutePerf.Routes, policy.Correlation)
	})
	section(SectionJourneys, func() {
		report.Journeys = ReconstructJourneys(data.Sessions, data.Samples, JourneyOptions{
			Journey:    policy.Journey,
			Bottleneck: policy.Bottleneck,
			Normalizer: norm,
		})
	})
	section(SectionPatterns, func() {
		report.Patterns = AnalyzeJourneyPatterns(report.Journeys, MinPatternFrequency)
	})
	section(SectionAbandonment, func() {
		report.Abandonment = AnalyzeAbandonment(report.Journeys)
	})
	section(SectionTrends, func() {
		report.Trends = AnalyzeTrends(data.Samples, now, policy, norm)
	})
	section(SectionWarnings, func() {
		report.Warnings = GenerateEarlyWarnings(WarningInputs{
			Predictions: report.Trends.Predictions,
			Seasonal:    report.Trends.Seasonal,
		}, policy.Warning, now)
	})
	section(SectionRecommendations, func() {
		report.Recommendations = GenerateRecommendations(RecommendationInputs{
			Routes:       report.RoutePerf.Routes,
			Correlations: report.Correlations,
			Patterns:     report.Patterns,
			Abandonment:  report.Abandonment,
		})
	})
	return report
}

// AnalyzeTrends runs the trend engine over one window.
func AnalyzeTrends(samples []schema.MetricSample, now time.Time, policy contract.AnalysisPolicy, norm *agg.Normalizer) schema.TrendAnalysis {
	return schema.TrendAnalysis{
		Predictions: PredictMetrics(samples, now, policy.Prediction, norm),
		Regressions: DetectRegressions(samples, now, policy.Regression, norm),
		Seasonal:    DetectSeasonality(samples, now, policy.Seasonal),
		Anomalies:   DetectAnomalies(samples, policy.Prediction.ZThreshold),
	}
}

// recoverSection runs fn and turns a panic into an error.
func recoverSection(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Debug().Bytes("stack", debug.Stack()).Msg("recovered panic")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
