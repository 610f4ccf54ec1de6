package schema

import "time"

// StoreStatus represents the status of the SQL store.
type StoreStatus struct {
	Backend         string           `json:"backend"`
	Connected       bool             `json:"connected"`
	TotalSessions   int              `json:"total_sessions"`
	TotalMetrics    int              `json:"total_metrics"`
	OldestMetric    time.Time        `json:"oldest_metric"`
	NewestMetric    time.Time        `json:"newest_metric"`
	AlertConfigs    int              `json:"alert_configs"`
	OpenAlerts      int              `json:"open_alerts"`
	TotalRuns       int              `json:"total_runs"`
	LastRunID       int64            `json:"last_run_id"`
	LastRunTime     time.Time        `json:"last_run_time"`
	TableRowCounts  map[string]int64 `json:"table_row_counts"`
	BreakerState    string           `json:"breaker_state,omitempty"`
	MigrationSchema string           `json:"migration_schema,omitempty"`
}
