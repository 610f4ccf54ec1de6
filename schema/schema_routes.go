package schema

// DistributionBuckets counts sessions by score band.
type DistributionBuckets struct {
	Excellent int `json:"excellent"` // score >= 80
	Good      int `json:"good"`      // score >= 60
	Fair      int `json:"fair"`      // score >= 40
	Poor      int `json:"poor"`
}

// RelativePerformance is a route's averages minus the app averages.
type RelativePerformance struct {
	Fps    float64 `json:"fps"`
	Memory float64 `json:"memory"`
	Cpu    float64 `json:"cpu"`
	Score  float64 `json:"score"`
}

// RouteSeries holds per-session averages of a route, ordered by session start.
// All three arrays have the same length.
type RouteSeries struct {
	Fps    []float64 `json:"fps"`
	Memory []float64 `json:"memory"`
	Cpu    []float64 `json:"cpu"`
}

// RoutePerformanceData is the performance profile of one normalized route pattern.
type RoutePerformanceData struct {
	RoutePattern        string              `json:"route_pattern"`
	TotalSessions       int                 `json:"total_sessions"`
	UniqueDevices       int                 `json:"unique_devices"`
	AvgFps              float64             `json:"avg_fps"`
	HasFps              bool                `json:"has_fps"` // false when no fps samples were seen; risk then assumes the target rate
	AvgMemory           float64             `json:"avg_memory"`
	AvgCpu              float64             `json:"avg_cpu"`
	AvgScreenDuration   float64             `json:"avg_screen_duration"`
	AvgLoadTime         float64             `json:"avg_load_time"`
	Distribution        DistributionBuckets `json:"distribution"`
	PerformanceScore    float64             `json:"performance_score"`
	RiskLevel           RiskLevel           `json:"risk_level"`
	PerformanceTrend    PerformanceTrend    `json:"performance_trend"`
	RelativePerformance RelativePerformance `json:"relative_performance"`
	Series              RouteSeries         `json:"-"`
}

// AppAverages are the averages across every session-route aggregate.
type AppAverages struct {
	Fps              float64 `json:"fps"`
	Memory           float64 `json:"memory"`
	Cpu              float64 `json:"cpu"`
	ScreenDuration   float64 `json:"screen_duration"`
	LoadTime         float64 `json:"load_time"`
	PerformanceScore float64 `json:"performance_score"`
}

// RouteSummary surfaces routes for operator triage.
type RouteSummary struct {
	TotalRoutes               int      `json:"total_routes"`
	TotalSessions             int      `json:"total_sessions"`
	BestPerformingRoutes      []string `json:"best_performing_routes"`
	WorstPerformingRoutes     []string `json:"worst_performing_routes"`
	RoutesWithHighMemoryUsage []string `json:"routes_with_high_memory_usage"`
	RoutesWithLowFps          []string `json:"routes_with_low_fps"`
	HighRiskRoutes            []string `json:"high_risk_routes"`
}

// RoutePerformanceAnalysis is the output of the route analyzer.
type RoutePerformanceAnalysis struct {
	Routes      []RoutePerformanceData `json:"routes"`
	Summary     RouteSummary           `json:"summary"`
	AppAverages AppAverages            `json:"app_averages"`
}

// DeviceBreakdown is the performance profile of one device type.
type DeviceBreakdown struct {
	DeviceType       string    `json:"device_type"`
	Platform         string    `json:"platform"`
	TotalSessions    int       `json:"total_sessions"`
	UniqueDevices    int       `json:"unique_devices"`
	AvgFps           float64   `json:"avg_fps"`
	HasFps           bool      `json:"has_fps"`
	AvgMemory        float64   `json:"avg_memory"`
	AvgCpu           float64   `json:"avg_cpu"`
	AvgLoadTime      float64   `json:"avg_load_time"`
	PerformanceScore float64   `json:"performance_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	HighRiskSessions int       `json:"high_risk_sessions"`
}
