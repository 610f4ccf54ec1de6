package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the SQL backend for metric and alert storage.
	DatabaseBackend string

	// KVBackend represents the key-value backend for rate limiting and live bookkeeping.
	KVBackend string

	// MetricType represents the kind of a recorded client metric.
	MetricType string

	// RiskLevel represents the triage level of a route, session or device.
	RiskLevel string

	// PerformanceTrend represents the direction of a route's score over time.
	PerformanceTrend string

	// Severity represents how urgent a bottleneck, regression or warning is.
	Severity string

	// CompletionStatus represents how a user journey ended.
	CompletionStatus string

	// BottleneckType represents the kind of localized problem inside a journey.
	BottleneckType string

	// CorrelationType represents the classified relationship between two routes.
	CorrelationType string

	// PerformanceImpact represents the direction of a correlation's impact.
	PerformanceImpact string

	// PatternType represents a seasonal cycle length.
	PatternType string

	// WarningType represents the rule that produced an early warning.
	WarningType string

	// AlertStatus represents the lifecycle state of an alert instance.
	AlertStatus string

	// AlertCondition represents the comparison an alert config applies.
	AlertCondition string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All SQL backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All key-value backends supported.
const (
	MemoryKV KVBackend = "memory" // default
	BadgerKV KVBackend = "badger"
	RedisKV  KVBackend = "redis"
)

// Metric types recorded by clients.
const (
	FpsMetric            MetricType = "fps"
	MemoryMetric         MetricType = "memory_usage"
	CPUMetric            MetricType = "cpu_usage"
	NavigationTimeMetric MetricType = "navigation_time"
	ScreenLoadMetric     MetricType = "screen_load"
	ScreenTimeMetric     MetricType = "screen_time"

	// PerformanceScoreMetric is derived, never recorded.
	PerformanceScoreMetric MetricType = "performance_score"
)

// Risk levels.
const (
	LowRisk    RiskLevel = "low"
	MediumRisk RiskLevel = "medium"
	HighRisk   RiskLevel = "high"
)

// Performance trends.
const (
	TrendImproving PerformanceTrend = "improving"
	TrendStable    PerformanceTrend = "stable"
	TrendDegrading PerformanceTrend = "degrading"
)

// Severities, ordered from most to least urgent.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Journey completion states.
const (
	JourneyCompleted  CompletionStatus = "completed"
	JourneyAbandoned  CompletionStatus = "abandoned"
	JourneyInProgress CompletionStatus = "in_progress"
)

// Bottleneck kinds.
const (
	PerformanceDrop BottleneckType = "performance_drop"
	MemorySpike     BottleneckType = "memory_spike"
	SlowTransition  BottleneckType = "slow_transition"
)

// Correlation classifications.
const (
	MemoryLeak           CorrelationType = "memory_leak"
	CPUSpike             CorrelationType = "cpu_spike"
	FpsDegradation       CorrelationType = "fps_degradation"
	PerformanceBoost     CorrelationType = "performance_boost"
	UnclassifiedRelation CorrelationType = "unclassified"
)

// Correlation impact directions.
const (
	PositiveImpact PerformanceImpact = "positive"
	NegativeImpact PerformanceImpact = "negative"
	NeutralImpact  PerformanceImpact = "neutral"
)

// Seasonal cycles.
const (
	HourlyPattern  PatternType = "hourly"
	DailyPattern   PatternType = "daily"
	WeeklyPattern  PatternType = "weekly"
	MonthlyPattern PatternType = "monthly"
)

// Early warning rules.
const (
	DegradationWarning      WarningType = "performance_degradation"
	RouteDegradationWarning WarningType = "route_degradation"
	SeasonalPeakWarning     WarningType = "seasonal_peak"
	MemorySpikeWarning      WarningType = "memory_spike"
	FpsDropWarning          WarningType = "fps_drop"
)

// Alert lifecycle states.
const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert comparisons.
const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid SQL backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidKVBackends lists all valid key-value backends.
var ValidKVBackends = map[KVBackend]struct{}{
	MemoryKV: {},
	BadgerKV: {},
	RedisKV:  {},
}

// RecordedMetricTypes lists the metric types clients can send.
var RecordedMetricTypes = []MetricType{
	FpsMetric, MemoryMetric, CPUMetric, NavigationTimeMetric, ScreenLoadMetric, ScreenTimeMetric,
}

// ValidMetricTypes lists all valid recorded metric types.
var ValidMetricTypes = map[MetricType]struct{}{
	FpsMetric:            {},
	MemoryMetric:         {},
	CPUMetric:            {},
	NavigationTimeMetric: {},
	ScreenLoadMetric:     {},
	ScreenTimeMetric:     {},
}

// IsLoadTime reports whether the metric measures screen or navigation load time.
func (m MetricType) IsLoadTime() bool {
	return m == NavigationTimeMetric || m == ScreenLoadMetric
}

// LowerIsWorse reports whether a decrease of the metric is a degradation.
func (m MetricType) LowerIsWorse() bool {
	return m == FpsMetric || m == PerformanceScoreMetric
}

// Rank returns a sortable rank for a severity, higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// CanTransitionTo reports whether an alert may move from s to next.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertActive:
		return next == AlertAcknowledged || next == AlertResolved
	case AlertAcknowledged:
		return next == AlertResolved
	default:
		return false
	}
}

// IsOpen reports whether the alert still blocks new instances for its config.
func (s AlertStatus) IsOpen() bool {
	return s == AlertActive || s == AlertAcknowledged
}
