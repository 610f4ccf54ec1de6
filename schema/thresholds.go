package schema

// RiskThresholds is a cutoff table used to classify risk at one granularity.
// A zero MinSessions disables the sample-count rule for that level.
type RiskThresholds struct {
	Name string `json:"name"`

	HighFpsBelow      float64 `json:"high_fps_below"`
	HighMemoryAbove   float64 `json:"high_memory_above"`
	HighMinSessions   int     `json:"high_min_sessions"`
	MediumFpsBelow    float64 `json:"medium_fps_below"`
	MediumMemoryAbove float64 `json:"medium_memory_above"`
	MediumMinSessions int     `json:"medium_min_sessions"`
}

// RouteRiskThresholds classifies aggregated route profiles.
var RouteRiskThresholds = RiskThresholds{
	Name:              "route",
	HighFpsBelow:      20,
	HighMemoryAbove:   800,
	HighMinSessions:   2,
	MediumFpsBelow:    45,
	MediumMemoryAbove: 400,
	MediumMinSessions: 5,
}

// SessionRiskThresholds classifies a single session. Sample count does not apply.
var SessionRiskThresholds = RiskThresholds{
	Name:              "session",
	HighFpsBelow:      30,
	HighMemoryAbove:   500,
	MediumFpsBelow:    50,
	MediumMemoryAbove: 300,
}

// DeviceRiskThresholds classifies per-device-type breakdowns.
var DeviceRiskThresholds = RiskThresholds{
	Name:              "device",
	HighFpsBelow:      25,
	HighMemoryAbove:   600,
	HighMinSessions:   2,
	MediumFpsBelow:    40,
	MediumMemoryAbove: 350,
	MediumMinSessions: 3,
}

// Classify returns the risk level for the given averages and session count.
func (t RiskThresholds) Classify(avgFps, avgMemory float64, sessions int) RiskLevel {
	if avgFps < t.HighFpsBelow || avgMemory > t.HighMemoryAbove || sessions < t.HighMinSessions {
		return HighRisk
	}
	if avgFps < t.MediumFpsBelow || avgMemory > t.MediumMemoryAbove || sessions < t.MediumMinSessions {
		return MediumRisk
	}
	return LowRisk
}
