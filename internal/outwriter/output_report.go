package outwriter

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/parquet"
	"github.com/huangsam/perfscope/schema"
)

// PrintReport outputs every section of a report. Parquet output writes the route
// and journey collections next to each other, using OutputFile as the base name.
func PrintReport(report *schema.AnalyticsReport, cfg *contract.Config, duration time.Duration) error {
	if cfg.Output == schema.ParquetOut {
		return writeReportParquet(report, cfg.OutputFile)
	}

	views := []view{
		reportOverviewView(report, cfg),
		routesView(report.RoutePerf.Routes, cfg),
		devicesView(report.Devices, cfg),
		correlationsView(report.Correlations, cfg),
		journeysView(report.Journeys, cfg),
		patternsView(report.Patterns, cfg),
		abandonmentView(report.Abandonment, cfg),
	}
	views = append(views, trendViews(report.Trends, cfg)...)
	views = append(views,
		warningsView(report.Warnings, cfg),
		recommendationsView(report.Recommendations, cfg),
	)
	if len(report.PartialFailures) > 0 {
		views = append(views, failuresView(report.PartialFailures))
	}
	return printViews(cfg, duration, report, views...)
}

func reportOverviewView(report *schema.AnalyticsReport, cfg *contract.Config) view {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	rows := [][]string{
		{"Window", report.Window.Start.Format(contract.DateTimeFormat) + " .. " + report.Window.End.Format(contract.DateTimeFormat)},
		{"Sessions", fmtInt(report.TotalSessions)},
		{"Metrics", fmtInt(report.TotalMetrics)},
		{"Routes", fmtInt(len(report.RoutePerf.Routes))},
		{"App score", fmtFloat(report.RoutePerf.AppAverages.PerformanceScore)},
		{"High risk", strings.Join(report.RoutePerf.Summary.HighRiskRoutes, ", ")},
		{"Journeys", fmtInt(len(report.Journeys))},
		{"Warnings", fmtInt(len(report.Warnings))},
	}
	return view{
		title:     "Overview",
		headers:   []string{"Key", "Value"},
		rows:      rows,
		csvHeader: []string{"key", "value"},
		csvRows:   rows,
	}
}

func failuresView(failures []schema.PartialFailure) view {
	v := view{
		title:     "Partial failures",
		headers:   []string{"Section", "Error"},
		csvHeader: []string{"section", "error"},
	}
	for _, f := range failures {
		v.rows = append(v.rows, []string{contract.CriticalColor.Sprint(f.Section), f.Error})
		v.csvRows = append(v.csvRows, []string{f.Section, f.Error})
	}
	return v
}

func writeReportParquet(report *schema.AnalyticsReport, base string) error {
	base = strings.TrimSuffix(base, ".parquet")
	routesFile := base + ".routes.parquet"
	routes := parquet.ConvertRoutePerformance(report.RoutePerf.Routes, report.GeneratedAt, contract.GetPlainLabel)
	if err := parquet.WriteRoutePerformanceParquet(routes, routesFile); err != nil {
		return fmt.Errorf("failed to write routes: %w", err)
	}
	journeysFile := base + ".journeys.parquet"
	if err := parquet.WriteJourneysParquet(parquet.ConvertJourneys(report.Journeys), journeysFile); err != nil {
		return fmt.Errorf("failed to write journeys: %w", err)
	}
	fmt.Printf("Exported %d routes to: %s\n", len(routes), routesFile)
	fmt.Printf("Exported %d journeys to: %s\n", len(report.Journeys), journeysFile)
	return nil
}
