package store

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/huangsam/perfscope/schema"
)

const statusTimeFormat = "2006-01-02 15:04:05"

// PrintStoreStatus prints store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	if status.MigrationSchema != "" {
		_, _ = fmt.Fprintf(w, "Schema Version: %s\n", status.MigrationSchema)
	}
	if status.BreakerState != "" {
		_, _ = fmt.Fprintf(w, "Circuit Breaker: %s\n", status.BreakerState)
	}
	_, _ = fmt.Fprintf(w, "Sessions: %d\n", status.TotalSessions)
	_, _ = fmt.Fprintf(w, "Metric Samples: %d\n", status.TotalMetrics)
	if status.TotalMetrics > 0 {
		_, _ = fmt.Fprintf(w, "Oldest Sample: %s\n", status.OldestMetric.Format(statusTimeFormat))
		_, _ = fmt.Fprintf(w, "Newest Sample: %s\n", status.NewestMetric.Format(statusTimeFormat))
	}
	_, _ = fmt.Fprintf(w, "Alert Configs: %d\n", status.AlertConfigs)
	_, _ = fmt.Fprintf(w, "Open Alerts: %d\n", status.OpenAlerts)
	_, _ = fmt.Fprintf(w, "Analysis Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(w, "Last Run ID: %d\n", status.LastRunID)
		_, _ = fmt.Fprintf(w, "Last Run: %s\n", status.LastRunTime.Format(statusTimeFormat))
	}

	tables := slices.Sorted(maps.Keys(status.TableRowCounts))
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range tables {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableRowCounts[table])
	}
}
