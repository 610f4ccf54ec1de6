package schema

import "time"

// RouteCorrelationAnalysis is the pairwise relationship between two routes.
type RouteCorrelationAnalysis struct {
	SourceRoute             string            `json:"source_route"`
	TargetRoute             string            `json:"target_route"`
	FpsCorrelation          float64           `json:"fps_correlation"`
	MemoryCorrelation       float64           `json:"memory_correlation"`
	CpuCorrelation          float64           `json:"cpu_correlation"`
	OverallCorrelation      float64           `json:"overall_correlation"`
	CorrelationStrength     float64           `json:"correlation_strength"`
	PerformanceImpact       PerformanceImpact `json:"performance_impact"`
	CorrelationType         CorrelationType   `json:"correlation_type"`
	StatisticalSignificance float64           `json:"statistical_significance"`
	ConfidenceLevel         float64           `json:"confidence_level"`
	SampleSize              int               `json:"sample_size"`
	Insight                 string            `json:"insight"`
}

// LinearTrend is an ordinary least-squares fit.
type LinearTrend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// ConfidenceInterval bounds a prediction.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PerformancePrediction is a short-horizon forecast of a metric.
type PerformancePrediction struct {
	MetricType         MetricType         `json:"metric_type"`
	RoutePattern       string             `json:"route_pattern,omitempty"`
	CurrentValue       float64            `json:"current_value"`
	PredictedValue     float64            `json:"predicted_value"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Confidence         float64            `json:"confidence"`
	Trend              LinearTrend        `json:"trend"`
	HorizonHours       int                `json:"horizon_hours"`
	PredictedFor       time.Time          `json:"predicted_for"`
}

// PerformanceRegression compares a recent window to its baseline.
type PerformanceRegression struct {
	MetricType      MetricType `json:"metric_type"`
	RoutePattern    string     `json:"route_pattern,omitempty"`
	BaselineMean    float64    `json:"baseline_mean"`
	RecentMean      float64    `json:"recent_mean"`
	ChangePercent   float64    `json:"change_percent"`
	Severity        Severity   `json:"severity"`
	BaselineSamples int        `json:"baseline_samples"`
	RecentSamples   int        `json:"recent_samples"`
	DetectedAt      time.Time  `json:"detected_at"`
}

// SeasonalPattern is a recurring peak/low cycle of a metric.
type SeasonalPattern struct {
	MetricType        MetricType  `json:"metric_type"`
	PatternType       PatternType `json:"pattern_type"`
	PeakWindow        string      `json:"peak_window"`
	LowWindow         string      `json:"low_window"`
	PeakValue         float64     `json:"peak_value"`
	LowValue          float64     `json:"low_value"`
	Amplitude         float64     `json:"amplitude"`
	SeasonalStrength  float64     `json:"seasonal_strength"`
	Confidence        float64     `json:"confidence"`
	NextPredictedPeak time.Time   `json:"next_predicted_peak"`
	NextPredictedLow  time.Time   `json:"next_predicted_low"`
}

// Anomaly is an hourly mean that sits far outside its series.
type Anomaly struct {
	MetricType MetricType `json:"metric_type"`
	Timestamp  time.Time  `json:"timestamp"`
	Value      float64    `json:"value"`
	Mean       float64    `json:"mean"`
	ZScore     float64    `json:"z_score"`
}

// TrendAnalysis bundles the trend engine outputs.
type TrendAnalysis struct {
	Predictions []PerformancePrediction `json:"predictions"`
	Regressions []PerformanceRegression `json:"regressions"`
	Seasonal    []SeasonalPattern       `json:"seasonal_patterns"`
	Anomalies   []Anomaly               `json:"anomalies"`
}

// EarlyWarningAlert is a forward-looking alert derived from predictions.
type EarlyWarningAlert struct {
	ID                        string      `json:"id"`
	AlertType                 WarningType `json:"alert_type"`
	Severity                  Severity    `json:"severity"`
	Confidence                float64     `json:"confidence"`
	Title                     string      `json:"title"`
	Description               string      `json:"description"`
	RoutePattern              string      `json:"route_pattern,omitempty"`
	MetricType                MetricType  `json:"metric_type"`
	CurrentValue              float64     `json:"current_value"`
	PredictedValue            float64     `json:"predicted_value"`
	PredictedIssueDate        time.Time   `json:"predicted_issue_date"`
	TimeToIssue               float64     `json:"time_to_issue"` // hours
	PreventionRecommendations []string    `json:"prevention_recommendations"`
	MonitoringSuggestions     []string    `json:"monitoring_suggestions"`
}

// Recommendation is an actionable optimization insight.
type Recommendation struct {
	Category       string   `json:"category"`
	Priority       Severity `json:"priority"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	RoutePattern   string   `json:"route_pattern,omitempty"`
	ExpectedImpact float64  `json:"expected_impact"`
}
