package cmd

import (
	"github.com/huangsam/perfscope/core"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/spf13/cobra"
)

// runExecutor adapts a core executor to a cobra Run function.
func runExecutor(name string, execute core.ExecutorFunc) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		if err := execute(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot run "+name+" analysis", err)
		}
	}
}

// routesCmd ranks routes by performance score.
var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Rank app routes by FPS, memory and CPU performance.",
	Long: `Aggregate every metric sample in the window by route and score each route.

Each route gets a 0-100 performance score built from average FPS, memory
and CPU, plus a risk level and an app-wide summary. Helps you:
- Find the screens where users see dropped frames
- Spot memory hungry routes before they crash devices
- Compare routes against the app average

Examples:
  # Rank the last week of routes
  perfscope routes

  # Only iOS sessions of one release
  perfscope routes --platform ios --app-version 2.4.0

  # Export to CSV
  perfscope routes --output csv --output-file routes.csv`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("routes", core.ExecuteRoutes),
}

// devicesCmd breaks performance down by device model.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Compare performance across device models.",
	Long: `Group sessions by device model and compare their average FPS, memory and CPU.

Examples:
  perfscope devices --start "30 days ago"
  perfscope devices --route /checkout --output json`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("devices", core.ExecuteDevices),
}

// correlationsCmd relates the performance of route pairs.
var correlationsCmd = &cobra.Command{
	Use:   "correlations",
	Short: "Find routes whose performance moves together.",
	Long: `Correlate per-route FPS, memory and CPU series to find related routes.

Pairs are classified (memory leak, cpu contention, frame drop cascade and so on)
with an impact level and a short insight.

Examples:
  perfscope correlations
  perfscope correlations --limit 10 --output json`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("correlations", core.ExecuteCorrelations),
}

// journeysCmd reconstructs user journeys.
var journeysCmd = &cobra.Command{
	Use:   "journeys",
	Short: "Reconstruct user journeys and their bottlenecks.",
	Long: `Stitch sessions of one user into journeys and score each journey.

A journey lists the routes a user visited in order, the bottlenecks hit on the
way (FPS drops, memory spikes, slow screens) and whether it completed.
Journeys are ranked worst first.

Examples:
  perfscope journeys
  perfscope journeys --journey-window 30m --detail`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("journeys", core.ExecuteJourneys),
}

// patternsCmd groups journeys into recurring route sequences.
var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show the most frequent journey patterns.",
	Long: `Group journeys by route sequence and summarize each frequent pattern.

Examples:
  perfscope patterns
  perfscope patterns --start "14 days ago" --output csv`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("patterns", core.ExecutePatterns),
}

// abandonmentCmd predicts where users leave.
var abandonmentCmd = &cobra.Command{
	Use:   "abandonment",
	Short: "Predict the routes where users abandon their journey.",
	Long: `Estimate the abandonment rate of each route and its likely causes.

Examples:
  perfscope abandonment
  perfscope abandonment --platform android`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("abandonment", core.ExecuteAbandonment),
}

// trendsCmd runs forecasts, regressions, seasonality and anomaly detection.
var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Forecast metrics and detect regressions, seasonality and anomalies.",
	Long: `Analyze how each metric changes over time.

Shows:
- Linear forecasts with confidence over the --horizon
- Regressions between the recent and baseline windows
- Daily and weekly seasonality
- Anomalous samples

Examples:
  perfscope trends
  perfscope trends --horizon 48 --route /feed`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("trends", core.ExecuteTrends),
}

// warningsCmd raises early warnings.
var warningsCmd = &cobra.Command{
	Use:   "warnings",
	Short: "Raise early warnings for degrading metrics.",
	Long: `Combine forecasts and seasonal patterns into early warnings with severity.

Examples:
  perfscope warnings
  perfscope warnings --output json --output-file warnings.json`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("warnings", core.ExecuteWarnings),
}

// reportCmd builds the full analytics report.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the full analytics report with recommendations.",
	Long: `Run every analysis over one window and combine the results.

Sections that fail are listed as partial failures instead of failing the report.

Examples:
  perfscope report
  perfscope report --output parquet --output-file report`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("report", core.ExecuteReport),
}

// exportCmd writes the raw and analyzed data as Parquet files.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export samples, route scores, journeys and runs to Parquet.",
	Long: `Write the window's data to Parquet for use with analytics tools.

Writes <base>.samples.parquet, <base>.routes.parquet, <base>.journeys.parquet
and <base>.analysis_runs.parquet.

Requires: --output-file

Examples:
  perfscope export --output-file perf
  duckdb -c "SELECT route_pattern, performance_score FROM 'perf.routes.parquet'"`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("export", core.ExecuteExport),
}
