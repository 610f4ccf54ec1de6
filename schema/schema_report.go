package schema

import "time"

// ReportWindow is the time range a report covers.
type ReportWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PartialFailure records a sub-analysis that failed while the rest of the report succeeded.
type PartialFailure struct {
	Section string `json:"section"`
	Error   string `json:"error"`
}

// AnalyticsReport is the full set of derived artifacts for one analysis window.
// Sections that failed are left empty and listed in PartialFailures.
type AnalyticsReport struct {
	GeneratedAt     time.Time                  `json:"generated_at"`
	Window          ReportWindow               `json:"window"`
	TotalSessions   int                        `json:"total_sessions"`
	TotalMetrics    int                        `json:"total_metrics"`
	RoutePerf       RoutePerformanceAnalysis   `json:"route_performance"`
	Devices         []DeviceBreakdown          `json:"devices"`
	Correlations    []RouteCorrelationAnalysis `json:"correlations"`
	Journeys        []UserJourney              `json:"journeys"`
	Patterns        []JourneyPattern           `json:"journey_patterns"`
	Abandonment     []AbandonmentPoint         `json:"abandonment"`
	Trends          TrendAnalysis              `json:"trends"`
	Warnings        []EarlyWarningAlert        `json:"early_warnings"`
	Recommendations []Recommendation           `json:"recommendations"`
	PartialFailures []PartialFailure           `json:"partial_failures"`
}

// NewAnalyticsReport returns a report whose collections are empty rather than nil.
func NewAnalyticsReport(generatedAt time.Time, window ReportWindow) *AnalyticsReport {
	return &AnalyticsReport{
		GeneratedAt:  generatedAt,
		Window:       window,
		RoutePerf:    EmptyRoutePerformanceAnalysis(),
		Devices:      []DeviceBreakdown{},
		Correlations: []RouteCorrelationAnalysis{},
		Journeys:     []UserJourney{},
		Patterns:     []JourneyPattern{},
		Abandonment:  []AbandonmentPoint{},
		Trends: TrendAnalysis{
			Predictions: []PerformancePrediction{},
			Regressions: []PerformanceRegression{},
			Seasonal:    []SeasonalPattern{},
			Anomalies:   []Anomaly{},
		},
		Warnings:        []EarlyWarningAlert{},
		Recommendations: []Recommendation{},
		PartialFailures: []PartialFailure{},
	}
}

// EmptyRoutePerformanceAnalysis returns a zero-volume route analysis.
func EmptyRoutePerformanceAnalysis() RoutePerformanceAnalysis {
	return RoutePerformanceAnalysis{
		Routes: []RoutePerformanceData{},
		Summary: RouteSummary{
			BestPerformingRoutes:      []string{},
			WorstPerformingRoutes:     []string{},
			RoutesWithHighMemoryUsage: []string{},
			RoutesWithLowFps:          []string{},
			HighRiskRoutes:            []string{},
		},
	}
}

// LivePoint is a closed one-second bucket of the live series.
type LivePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Fps       float64   `json:"fps"`
	Memory    float64   `json:"memory"`
	Cpu       float64   `json:"cpu"`
	LoadTime  float64   `json:"load_time"`
	Samples   int       `json:"samples"`
}
