package outwriter

import (
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// PrintTrends outputs predictions, regressions, seasonal patterns and anomalies.
func PrintTrends(trends schema.TrendAnalysis, cfg *contract.Config, duration time.Duration) error {
	return printViews(cfg, duration, trends, trendViews(trends, cfg)...)
}

func trendViews(trends schema.TrendAnalysis, cfg *contract.Config) []view {
	return []view{
		predictionsView(trends.Predictions, cfg),
		regressionsView(trends.Regressions, cfg),
		seasonalView(trends.Seasonal, cfg),
		anomaliesView(trends.Anomalies, cfg),
	}
}

func scopeOf(route string) string {
	if route == "" {
		return "app"
	}
	return route
}

func predictionsView(predictions []schema.PerformancePrediction, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	v := view{
		title:   "Predictions",
		headers: []string{"Metric", "Scope", "Current", "Predicted", "Interval", "Confidence", "Slope/h"},
		csvHeader: []string{
			"metric", "route", "current", "predicted", "lower", "upper", "confidence", "slope", "r_squared",
			"horizon_hours", "predicted_for",
		},
		empty: "Not enough hourly history to forecast.",
	}
	for _, p := range head(predictions, cfg.ResultLimit) {
		v.rows = append(v.rows, []string{
			string(p.MetricType),
			scopeOf(p.RoutePattern),
			fmtFloat(p.CurrentValue),
			fmtFloat(p.PredictedValue),
			fmtFloat(p.ConfidenceInterval.Lower) + ".." + fmtFloat(p.ConfidenceInterval.Upper),
			percent(p.Confidence),
			signed(fmtFloat, p.Trend.Slope),
		})
	}
	for _, p := range predictions {
		v.csvRows = append(v.csvRows, []string{
			string(p.MetricType), p.RoutePattern, fmtFloat(p.CurrentValue), fmtFloat(p.PredictedValue),
			fmtFloat(p.ConfidenceInterval.Lower), fmtFloat(p.ConfidenceInterval.Upper), fmtFloat(p.Confidence),
			fmtFloat(p.Trend.Slope), fmtFloat(p.Trend.RSquared), fmtInt(p.HorizonHours),
			p.PredictedFor.Format(contract.DateTimeFormat),
		})
	}
	return v
}

func regressionsView(regressions []schema.PerformanceRegression, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	v := view{
		title:   "Regressions",
		headers: []string{"Metric", "Scope", "Baseline", "Recent", "Change", "Severity"},
		csvHeader: []string{
			"metric", "route", "baseline_mean", "recent_mean", "change_percent", "severity",
			"baseline_samples", "recent_samples", "detected_at",
		},
		empty: "No regressions against the baseline.",
	}
	for _, r := range head(regressions, cfg.ResultLimit) {
		v.rows = append(v.rows, []string{
			string(r.MetricType),
			scopeOf(r.RoutePattern),
			fmtFloat(r.BaselineMean),
			fmtFloat(r.RecentMean),
			signed(fmtFloat, r.ChangePercent) + "%",
			contract.GetSeverityColorLabel(r.Severity),
		})
	}
	for _, r := range regressions {
		v.csvRows = append(v.csvRows, []string{
			string(r.MetricType), r.RoutePattern, fmtFloat(r.BaselineMean), fmtFloat(r.RecentMean),
			fmtFloat(r.ChangePercent), string(r.Severity), fmtInt(r.BaselineSamples), fmtInt(r.RecentSamples),
			r.DetectedAt.Format(contract.DateTimeFormat),
		})
	}
	return v
}

func seasonalView(patterns []schema.SeasonalPattern, cfg *contract.Config) view {
	fmtFloat, _ := createFormatters(cfg.Precision)
	v := view{
		title:   "Seasonal patterns",
		headers: []string{"Metric", "Cycle", "Peak", "Low", "Amplitude", "Strength", "Next peak"},
		csvHeader: []string{
			"metric", "cycle", "peak_window", "peak_value", "low_window", "low_value", "amplitude",
			"strength", "confidence", "next_peak", "next_low",
		},
		empty: "No seasonal cycles detected.",
	}
	for _, p := range head(patterns, cfg.ResultLimit) {
		v.rows = append(v.rows, []string{
			string(p.MetricType),
			string(p.PatternType),
			p.PeakWindow + " (" + fmtFloat(p.PeakValue) + ")",
			p.LowWindow + " (" + fmtFloat(p.LowValue) + ")",
			fmtFloat(p.Amplitude),
			fmtFloat(p.SeasonalStrength),
			p.NextPredictedPeak.Format(time.DateTime),
		})
	}
	for _, p := range patterns {
		v.csvRows = append(v.csvRows, []string{
			string(p.MetricType), string(p.PatternType), p.PeakWindow, fmtFloat(p.PeakValue), p.LowWindow,
			fmtFloat(p.LowValue), fmtFloat(p.Amplitude), fmtFloat(p.SeasonalStrength), fmtFloat(p.Confidence),
			p.NextPredictedPeak.Format(contract.DateTimeFormat), p.NextPredictedLow.Format(contract.DateTimeFormat),
		})
	}
	return v
}

func anomaliesView(anomalies []schema.Anomaly, cfg *contract.Config) view {
	fmtFloat, _ := createFormatters(cfg.Precision)
	v := view{
		title:     "Anomalies",
		headers:   []string{"Metric", "Hour", "Value", "Mean", "z"},
		csvHeader: []string{"metric", "timestamp", "value", "mean", "z_score"},
		empty:     "No anomalous hours.",
	}
	for _, a := range head(anomalies, cfg.ResultLimit) {
		v.rows = append(v.rows, []string{
			string(a.MetricType),
			a.Timestamp.Format(time.DateTime),
			fmtFloat(a.Value),
			fmtFloat(a.Mean),
			strconv.FormatFloat(a.ZScore, 'f', 2, 64),
		})
	}
	for _, a := range anomalies {
		v.csvRows = append(v.csvRows, []string{
			string(a.MetricType), a.Timestamp.Format(contract.DateTimeFormat), fmtFloat(a.Value), fmtFloat(a.Mean),
			strconv.FormatFloat(a.ZScore, 'f', 2, 64),
		})
	}
	return v
}

// PrintWarnings outputs early-warning alerts.
func PrintWarnings(warnings []schema.EarlyWarningAlert, cfg *contract.Config, duration time.Duration) error {
	return printViews(cfg, duration, warnings, warningsView(warnings, cfg))
}

func warningsView(warnings []schema.EarlyWarningAlert, cfg *contract.Config) view {
	fmtFloat, _ := createFormatters(cfg.Precision)
	headers := []string{"Severity", "Title", "Scope", "Current", "Predicted", "In (h)", "Confidence"}
	if cfg.Detail {
		headers = append(headers, "Prevention")
	}
	v := view{
		title:   "Early warnings",
		headers: headers,
		csvHeader: []string{
			"id", "type", "severity", "confidence", "title", "route", "metric", "current", "predicted",
			"predicted_issue_date", "time_to_issue_h", "prevention", "monitoring",
		},
		empty: "No early warnings.",
	}
	for _, w := range head(warnings, cfg.ResultLimit) {
		row := []string{
			contract.GetSeverityColorLabel(w.Severity),
			w.Title,
			scopeOf(w.RoutePattern),
			fmtFloat(w.CurrentValue),
			fmtFloat(w.PredictedValue),
			fmtFloat(w.TimeToIssue),
			percent(w.Confidence),
		}
		if cfg.Detail {
			row = append(row, strings.Join(w.PreventionRecommendations, "; "))
		}
		v.rows = append(v.rows, row)
	}
	for _, w := range warnings {
		v.csvRows = append(v.csvRows, []string{
			w.ID, string(w.AlertType), string(w.Severity), fmtFloat(w.Confidence), w.Title, w.RoutePattern,
			string(w.MetricType), fmtFloat(w.CurrentValue), fmtFloat(w.PredictedValue),
			w.PredictedIssueDate.Format(contract.DateTimeFormat), fmtFloat(w.TimeToIssue),
			strings.Join(w.PreventionRecommendations, "|"), strings.Join(w.MonitoringSuggestions, "|"),
		})
	}
	return v
}

func recommendationsView(recs []schema.Recommendation, cfg *contract.Config) view {
	fmtFloat, _ := createFormatters(cfg.Precision)
	v := view{
		title:     "Recommendations",
		headers:   []string{"Priority", "Category", "Route", "Title", "Impact"},
		csvHeader: []string{"priority", "category", "route", "title", "description", "expected_impact"},
		empty:     "Nothing to recommend.",
	}
	for _, r := range head(recs, cfg.ResultLimit) {
		v.rows = append(v.rows, []string{
			contract.GetSeverityColorLabel(r.Priority),
			r.Category,
			scopeOf(r.RoutePattern),
			r.Title,
			fmtFloat(r.ExpectedImpact),
		})
	}
	for _, r := range recs {
		v.csvRows = append(v.csvRows, []string{
			string(r.Priority), r.Category, r.RoutePattern, r.Title, r.Description, fmtFloat(r.ExpectedImpact),
		})
	}
	return v
}
