package schema

import "time"

// RouteVisit is one stay on a route inside a journey.
type RouteVisit struct {
	RoutePattern   string    `json:"route_pattern"`
	RoutePath      string    `json:"route_path"`
	SessionID      string    `json:"session_id"`
	EntryTimestamp time.Time `json:"entry_timestamp"`
	ExitTimestamp  time.Time `json:"exit_timestamp"`
	DurationMs     float64   `json:"duration_ms"`
	AvgFps         float64   `json:"avg_fps"`
	AvgMemory      float64   `json:"avg_memory"`
}

// PerformancePoint is a time-bucketed snapshot of the tracked metrics.
type PerformancePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Route     string    `json:"route"`
	Fps       float64   `json:"fps"`
	Memory    float64   `json:"memory"`
	Cpu       float64   `json:"cpu"`
	LoadTime  float64   `json:"load_time"`
	Score     float64   `json:"score"`
	Samples   int       `json:"samples"`
}

// BottleneckPoint is a localized performance problem attributed to a route.
type BottleneckPoint struct {
	RoutePattern   string         `json:"route_pattern"`
	BottleneckType BottleneckType `json:"bottleneck_type"`
	Severity       Severity       `json:"severity"`
	ImpactScore    float64        `json:"impact_score"`
	Timestamp      time.Time      `json:"timestamp"`
	MetricValue    float64        `json:"metric_value"`
	PreviousValue  float64        `json:"previous_value"`
	Description    string         `json:"description"`
}

// UserJourney is a time-bounded sequence of route visits by one user.
type UserJourney struct {
	JourneyID             string             `json:"journey_id"`
	SessionID             string             `json:"session_id"`
	SessionIDs            []string           `json:"session_ids"`
	DeviceID              string             `json:"device_id"`
	AnonymousUserID       string             `json:"anonymous_user_id"`
	RouteSequence         []RouteVisit       `json:"route_sequence"`
	PerformanceTrajectory []PerformancePoint `json:"performance_trajectory"`
	BottleneckPoints      []BottleneckPoint  `json:"bottleneck_points"`
	JourneyScore          float64            `json:"journey_score"`
	CompletionStatus      CompletionStatus   `json:"completion_status"`
	JourneyStart          time.Time          `json:"journey_start"`
	JourneyEnd            time.Time          `json:"journey_end"`
	JourneyDuration       float64            `json:"journey_duration"` // seconds
}

// RoutePatterns returns the ordered route patterns visited.
func (j UserJourney) RoutePatterns() []string {
	patterns := make([]string, len(j.RouteSequence))
	for i, v := range j.RouteSequence {
		patterns[i] = v.RoutePattern
	}
	return patterns
}

// JourneyPattern groups journeys sharing an identical ordered route sequence.
type JourneyPattern struct {
	PatternKey            string           `json:"pattern_key"`
	RouteSequence         []string         `json:"route_sequence"`
	Frequency             int              `json:"frequency"`
	CompletionRate        float64          `json:"completion_rate"`
	AvgJourneyDuration    float64          `json:"avg_journey_duration"`
	AvgJourneyScore       float64          `json:"avg_journey_score"`
	UserImpactScore       float64          `json:"user_impact_score"`
	OptimizationPotential float64          `json:"optimization_potential"`
	CommonBottlenecks     []BottleneckType `json:"common_bottlenecks"`
}

// AbandonmentPoint summarizes abandoned journeys that ended on the same route.
type AbandonmentPoint struct {
	RoutePattern           string   `json:"route_pattern"`
	Frequency              int      `json:"frequency"`
	AbandonmentRate        float64  `json:"abandonment_rate"`
	AvgTimeToAbandonment   float64  `json:"avg_time_to_abandonment"` // seconds
	CommonPrecedingRoutes  []string `json:"common_preceding_routes"`
	AvgScoreBeforeAbandon  float64  `json:"avg_score_before_abandon"`
	DominantBottleneckType string   `json:"dominant_bottleneck_type,omitempty"`
}
