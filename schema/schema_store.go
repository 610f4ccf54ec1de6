package schema

import "time"

// AlertConfig is a persisted threshold rule evaluated by the threshold check.
type AlertConfig struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name" validate:"required,max=120"`
	MetricType    MetricType     `json:"metric_type" validate:"required,oneof=fps memory_usage cpu_usage navigation_time screen_load screen_time"`
	Condition     AlertCondition `json:"condition" validate:"required,oneof=above below"`
	Threshold     float64        `json:"threshold" validate:"gte=0"`
	RoutePattern  string         `json:"route_pattern,omitempty" validate:"max=255"`
	WindowMinutes int            `json:"window_minutes" validate:"gte=1,lte=10080"`
	Severity      Severity       `json:"severity" validate:"required,oneof=critical high medium low"`
	Enabled       bool           `json:"enabled"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Violated reports whether value breaks the rule.
func (c AlertConfig) Violated(value float64) bool {
	if c.Condition == ConditionBelow {
		return value < c.Threshold
	}
	return value > c.Threshold
}

// AlertInstance is a triggered occurrence of an AlertConfig.
type AlertInstance struct {
	ID             int64       `json:"id"`
	ConfigID       int64       `json:"config_id"`
	Status         AlertStatus `json:"status"`
	TriggeredValue float64     `json:"triggered_value"`
	Threshold      float64     `json:"threshold"`
	Message        string      `json:"message"`
	TriggeredAt    time.Time   `json:"triggered_at"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

// CheckResult summarizes one threshold-check pass.
type CheckResult struct {
	CheckedAt  time.Time       `json:"checked_at"`
	Evaluated  int             `json:"evaluated"`
	Violations int             `json:"violations"`
	Skipped    int             `json:"skipped"` // no samples in window
	Triggered  []AlertInstance `json:"triggered"`
}

// AnalysisRunRecord represents a row from the perfscope_analysis_runs table.
type AnalysisRunRecord struct {
	AnalysisID    int64      `json:"analysis_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	RunDurationMs *int32     `json:"run_duration_ms,omitempty"`
	TotalSessions int32      `json:"total_sessions"`
	TotalMetrics  int32      `json:"total_metrics"`
	TotalRoutes   int32      `json:"total_routes"`
	ConfigParams  *string    `json:"config_params,omitempty"`
}
