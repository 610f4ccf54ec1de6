// Package cmd defines the command-line interface for perfscope.
package cmd

import (
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add analysis subcommands to the root command
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(correlationsCmd)
	rootCmd.AddCommand(journeysCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(abandonmentCmd)
	rootCmd.AddCommand(trendsCmd)
	rootCmd.AddCommand(warningsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)

	// Add service and management subcommands
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(dbCmd)

	// Add the alert subcommands to the parent alerts command
	alertsCmd.AddCommand(alertsConfigCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
	alertsCmd.AddCommand(alertsCheckCmd)
	alertsConfigCmd.AddCommand(alertsConfigAddCmd)
	alertsConfigCmd.AddCommand(alertsConfigListCmd)
	alertsConfigCmd.AddCommand(alertsConfigDeleteCmd)

	// Add the db subcommands to the parent db command
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbClearCmd)
	dbCmd.AddCommand(dbRunsCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("start", "", "Start of the window in ISO8601 or time ago (default 7 days ago)")
	rootCmd.PersistentFlags().String("end", "", "End of the window in ISO8601 or time ago (default now)")
	rootCmd.PersistentFlags().StringP("route", "r", "", "Only analyze routes matching this pattern")
	rootCmd.PersistentFlags().String("device", "", "Only analyze sessions on this device model")
	rootCmd.PersistentFlags().String("platform", "", "Only analyze sessions on this platform (ios, android, web)")
	rootCmd.PersistentFlags().String("app-version", "", "Only analyze sessions of this app version")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("row-limit", contract.DefaultRowLimit, "Maximum metric samples loaded per analysis; the most recent are kept")
	rootCmd.PersistentFlags().Int("batch-size", contract.DefaultBatchSize, "Sessions per metric query batch")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent metric query batches")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Bool("detail", false, "Print extra columns such as percentiles and sample counts")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("journey-window", "1h", "Maximum gap between sessions of one journey")
	rootCmd.PersistentFlags().Int("horizon", contract.DefaultHorizonHours, "Forecast horizon in hours for trend predictions")
	rootCmd.PersistentFlags().String("backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("db-connect", "", "Database connection string: a file path for sqlite, or a DSN for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("kv-backend", string(schema.MemoryKV), "Key-value backend: memory or badger or redis")
	rootCmd.PersistentFlags().String("kv-connect", "", "Badger directory or redis URL for the key-value backend")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Int("rate-limit", contract.DefaultRatePerMinute, "API requests per client per minute (0 disables)")
	serveCmd.Flags().String("check-interval", "1m", "Interval between alert threshold checks")
	serveCmd.Flags().String("live-poll", "1s", "Interval between live feed polls")
	serveCmd.Flags().String("live-grace", "2s", "Quiet period before a live bucket is published")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of ingestCmd to Viper
	ingestCmd.Flags().String("file", "-", "Path to a JSON ingest batch, or - for stdin")
	if err := viper.BindPFlags(ingestCmd.Flags()); err != nil {
		contract.LogFatal("Error binding ingest flags", err)
	}

	// Flags of the alert subcommands are read directly, not through Viper
	alertsConfigAddCmd.Flags().String("name", "", "Alert name")
	alertsConfigAddCmd.Flags().String("metric", string(schema.FpsMetric), "Metric type to watch")
	alertsConfigAddCmd.Flags().String("condition", string(schema.ConditionBelow), "Condition: above or below")
	alertsConfigAddCmd.Flags().Float64("threshold", 0, "Threshold the windowed mean is compared against")
	alertsConfigAddCmd.Flags().String("alert-route", "", "Only evaluate samples on this route")
	alertsConfigAddCmd.Flags().Int("window", 5, "Evaluation window in minutes")
	alertsConfigAddCmd.Flags().String("severity", string(schema.SeverityMedium), "Severity: critical, high, medium or low")
	alertsConfigAddCmd.Flags().Bool("disabled", false, "Create the alert disabled")
	alertsConfigListCmd.Flags().Bool("enabled", false, "Only list enabled alerts")
	alertsListCmd.Flags().String("status", "", "Filter by status: active, acknowledged or resolved")

	// Bind all flags of dbMigrateCmd to Viper
	dbMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(dbMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding db migrate flags", err)
	}
}
