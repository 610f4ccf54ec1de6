package outwriter

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/parquet"
	"github.com/huangsam/perfscope/schema"
)

// PrintJourneys outputs reconstructed user journeys.
func PrintJourneys(journeys []schema.UserJourney, cfg *contract.Config, duration time.Duration) error {
	if cfg.Output == schema.ParquetOut {
		if err := parquet.WriteJourneysParquet(parquet.ConvertJourneys(journeys), cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing parquet output: %w", err)
		}
		return nil
	}
	return printViews(cfg, duration, journeys, journeysView(journeys, cfg))
}

func journeysView(journeys []schema.UserJourney, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	seqWidth := getMaxTableRouteWidth(cfg, 75)
	headers := []string{"User", "Routes", "Score", "Status", "Duration (s)", "Bottlenecks"}
	if cfg.Detail {
		headers = append(headers, "Worst bottleneck", "Sessions")
	}
	v := view{
		title:   "User journeys",
		headers: headers,
		csvHeader: []string{
			"journey_id", "anonymous_user_id", "device_id", "sessions", "route_sequence", "score", "status",
			"journey_start", "duration_s", "bottlenecks",
		},
		empty: "No journeys in the selected window.",
	}
	for _, j := range head(journeys, cfg.ResultLimit) {
		row := []string{
			userLabel(j),
			contract.TruncateRoute(strings.Join(j.RoutePatterns(), " > "), seqWidth),
			fmtFloat(j.JourneyScore),
			completionLabel(j.CompletionStatus),
			fmtFloat(j.JourneyDuration),
			fmtInt(len(j.BottleneckPoints)),
		}
		if cfg.Detail {
			worst := "-"
			if len(j.BottleneckPoints) > 0 {
				b := j.BottleneckPoints[0]
				worst = fmt.Sprintf("%s on %s (%s)", b.BottleneckType, b.RoutePattern, contract.GetSeverityColorLabel(b.Severity))
			}
			row = append(row, worst, fmtInt(len(j.SessionIDs)))
		}
		v.rows = append(v.rows, row)
	}
	for _, j := range journeys {
		v.csvRows = append(v.csvRows, []string{
			j.JourneyID, j.AnonymousUserID, j.DeviceID, strings.Join(j.SessionIDs, "|"),
			strings.Join(j.RoutePatterns(), " > "), fmtFloat(j.JourneyScore), string(j.CompletionStatus),
			j.JourneyStart.Format(contract.DateTimeFormat), fmtFloat(j.JourneyDuration), fmtInt(len(j.BottleneckPoints)),
		})
	}
	return v
}

func userLabel(j schema.UserJourney) string {
	if j.AnonymousUserID != "" {
		return j.AnonymousUserID
	}
	if j.DeviceID != "" {
		return j.DeviceID
	}
	return j.SessionID
}

func completionLabel(status schema.CompletionStatus) string {
	switch status {
	case schema.JourneyCompleted:
		return contract.GoodColor.Sprint(status)
	case schema.JourneyAbandoned:
		return contract.CriticalColor.Sprint(status)
	default:
		return contract.ModerateColor.Sprint(status)
	}
}

// PrintPatterns outputs the mined journey patterns.
func PrintPatterns(patterns []schema.JourneyPattern, cfg *contract.Config, duration time.Duration) error {
	return printViews(cfg, duration, patterns, patternsView(patterns, cfg))
}

func patternsView(patterns []schema.JourneyPattern, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	seqWidth := getMaxTableRouteWidth(cfg, 80)
	v := view{
		title:   "Journey patterns",
		headers: []string{"Pattern", "Freq", "Completion", "Avg score", "Impact", "Potential", "Bottlenecks"},
		csvHeader: []string{
			"pattern", "frequency", "completion_rate", "avg_duration_s", "avg_score", "user_impact",
			"optimization_potential", "common_bottlenecks",
		},
		empty: "No pattern occurs often enough.",
	}
	for _, p := range head(patterns, cfg.ResultLimit) {
		v.rows = append(v.rows, []string{
			contract.TruncateRoute(p.PatternKey, seqWidth),
			fmtInt(p.Frequency),
			percent(p.CompletionRate),
			fmtFloat(p.AvgJourneyScore),
			fmtFloat(p.UserImpactScore),
			fmtFloat(p.OptimizationPotential),
			joinBottlenecks(p.CommonBottlenecks),
		})
	}
	for _, p := range patterns {
		v.csvRows = append(v.csvRows, []string{
			p.PatternKey, fmtInt(p.Frequency), fmtFloat(p.CompletionRate), fmtFloat(p.AvgJourneyDuration),
			fmtFloat(p.AvgJourneyScore), fmtFloat(p.UserImpactScore), fmtFloat(p.OptimizationPotential),
			joinBottlenecks(p.CommonBottlenecks),
		})
	}
	return v
}

func joinBottlenecks(types []schema.BottleneckType) string {
	if len(types) == 0 {
		return "-"
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "|")
}

// PrintAbandonment outputs where abandoned journeys end.
func PrintAbandonment(points []schema.AbandonmentPoint, cfg *contract.Config, duration time.Duration) error {
	return printViews(cfg, duration, points, abandonmentView(points, cfg))
}

func abandonmentView(points []schema.AbandonmentPoint, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	routeWidth := getMaxTableRouteWidth(cfg, 90)
	v := view{
		title:   "Abandonment points",
		headers: []string{"Route", "Journeys", "Rate", "Time to abandon (s)", "Score before", "Bottleneck", "Preceded by"},
		csvHeader: []string{
			"route", "frequency", "abandonment_rate", "avg_time_to_abandonment_s", "avg_score_before",
			"dominant_bottleneck", "common_preceding_routes",
		},
		empty: "No abandoned journeys.",
	}
	for _, a := range head(points, cfg.ResultLimit) {
		preceding := "-"
		if len(a.CommonPrecedingRoutes) > 0 {
			preceding = strings.Join(a.CommonPrecedingRoutes, ", ")
		}
		bottleneck := a.DominantBottleneckType
		if bottleneck == "" {
			bottleneck = "-"
		}
		v.rows = append(v.rows, []string{
			contract.TruncateRoute(a.RoutePattern, routeWidth),
			fmtInt(a.Frequency),
			percent(a.AbandonmentRate),
			fmtFloat(a.AvgTimeToAbandonment),
			fmtFloat(a.AvgScoreBeforeAbandon),
			bottleneck,
			preceding,
		})
	}
	for _, a := range points {
		v.csvRows = append(v.csvRows, []string{
			a.RoutePattern, fmtInt(a.Frequency), fmtFloat(a.AbandonmentRate), fmtFloat(a.AvgTimeToAbandonment),
			fmtFloat(a.AvgScoreBeforeAbandon), a.DominantBottleneckType, strings.Join(a.CommonPrecedingRoutes, "|"),
		})
	}
	return v
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}
