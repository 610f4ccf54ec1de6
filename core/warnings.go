package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// Severity cutoffs of the warning rules.
const (
	degradationCriticalScore = 40.0
	degradationHighScore     = 50.0
	routeCriticalScore       = 30.0
	seasonalHighStrength     = 0.6
	memoryCriticalFactor     = 1.6
	fpsCriticalFloor         = 30.0
)

// WarningInputs are the analyses early warnings are derived from.
type WarningInputs struct {
	Predictions []schema.PerformancePrediction
	Seasonal    []schema.SeasonalPattern
}

// newWarning fills the fields common to every rule.
func newWarning(kind schema.WarningType, severity schema.Severity, confidence float64, issueAt, now time.Time) schema.EarlyWarningAlert {
	return schema.EarlyWarningAlert{
		ID:                        uuid.NewString(),
		AlertType:                 kind,
		Severity:                  severity,
		Confidence:                algo.Round2(confidence),
		PredictedIssueDate:        issueAt,
		TimeToIssue:               algo.Round2(issueAt.Sub(now).Hours()),
		PreventionRecommendations: preventionFor(kind),
		MonitoringSuggestions:     monitoringFor(kind),
	}
}

// GenerateEarlyWarnings applies each warning rule independently, drops alerts that
// are not actionable and returns the most urgent ones.
func GenerateEarlyWarnings(in WarningInputs, policy contract.WarningPolicy, now time.Time) []schema.EarlyWarningAlert {
	var alerts []schema.EarlyWarningAlert
	for _, p := range in.Predictions {
		switch {
		case p.MetricType == schema.PerformanceScoreMetric && p.RoutePattern == "":
			if a, ok := degradationWarning(p, policy, now); ok {
				alerts = append(alerts, a)
			}
		case p.MetricType == schema.PerformanceScoreMetric:
			if a, ok := routeWarning(p, policy, now); ok {
				alerts = append(alerts, a)
			}
		case p.MetricType == schema.MemoryMetric && p.RoutePattern == "":
			if a, ok := memoryWarning(p, policy, now); ok {
				alerts = append(alerts, a)
			}
		case p.MetricType == schema.FpsMetric && p.RoutePattern == "":
			if a, ok := fpsWarning(p, policy, now); ok {
				alerts = append(alerts, a)
			}
		}
	}
	for _, s := range in.Seasonal {
		if a, ok := seasonalWarning(s, policy, now); ok {
			alerts = append(alerts, a)
		}
	}

	valid := []schema.EarlyWarningAlert{}
	for _, a := range alerts {
		if a.Confidence >= policy.MinAlertConfidence && a.Severity != schema.SeverityLow && a.PredictedIssueDate.After(now) {
			valid = append(valid, a)
		}
	}
	return algo.RankWarnings(valid, policy.MaxAlerts)
}

func degradationWarning(p schema.PerformancePrediction, policy contract.WarningPolicy, now time.Time) (schema.EarlyWarningAlert, bool) {
	if p.PredictedValue >= policy.ScoreFloor || p.Confidence < policy.MinPredictionConfidence {
		return schema.EarlyWarningAlert{}, false
	}
	severity := schema.SeverityMedium
	switch {
	case p.PredictedValue < degradationCriticalScore:
		severity = schema.SeverityCritical
	case p.PredictedValue < degradationHighScore:
		severity = schema.SeverityHigh
	}
	a := newWarning(schema.DegradationWarning, severity, p.Confidence, p.PredictedFor, now)
	a.MetricType = p.MetricType
	a.CurrentValue = p.CurrentValue
	a.PredictedValue = p.PredictedValue
	a.Title = "Performance score expected to degrade"
	a.Description = fmt.Sprintf("The app performance score is forecast to fall from %.1f to %.1f within %dh", p.CurrentValue, p.PredictedValue, p.HorizonHours)
	return a, true
}

func routeWarning(p schema.PerformancePrediction, policy contract.WarningPolicy, now time.Time) (schema.EarlyWarningAlert, bool) {
	if p.PredictedValue >= policy.CriticalScoreFloor {
		return schema.EarlyWarningAlert{}, false
	}
	severity := schema.SeverityHigh
	if p.PredictedValue < routeCriticalScore {
		severity = schema.SeverityCritical
	}
	a := newWarning(schema.RouteDegradationWarning, severity, p.Confidence, p.PredictedFor, now)
	a.RoutePattern = p.RoutePattern
	a.MetricType = p.MetricType
	a.CurrentValue = p.CurrentValue
	a.PredictedValue = p.PredictedValue
	a.Title = fmt.Sprintf("%s expected to become critical", p.RoutePattern)
	a.Description = fmt.Sprintf("The score of %s is forecast at %.1f (currently %.1f)", p.RoutePattern, p.PredictedValue, p.CurrentValue)
	return a, true
}

// seasonalWarning fires ahead of the worst point of a cycle. For fps the worst
// point is the low, for the other metrics the peak.
func seasonalWarning(s schema.SeasonalPattern, policy contract.WarningPolicy, now time.Time) (schema.EarlyWarningAlert, bool) {
	at, value, window := s.NextPredictedPeak, s.PeakValue, s.PeakWindow
	if s.MetricType.LowerIsWorse() {
		at, value, window = s.NextPredictedLow, s.LowValue, s.LowWindow
	}
	if !at.After(now) || at.Sub(now) > policy.SeasonalLookahead {
		return schema.EarlyWarningAlert{}, false
	}
	severity := schema.SeverityMedium
	if s.SeasonalStrength > seasonalHighStrength {
		severity = schema.SeverityHigh
	}
	a := newWarning(schema.SeasonalPeakWarning, severity, s.Confidence, at, now)
	a.MetricType = s.MetricType
	a.PredictedValue = value
	a.Title = fmt.Sprintf("Upcoming %s %s peak", s.PatternType, s.MetricType)
	a.Description = fmt.Sprintf("%s follows a %s cycle and reaches %.1f around %s", s.MetricType, s.PatternType, value, window)
	return a, true
}

func memoryWarning(p schema.PerformancePrediction, policy contract.WarningPolicy, now time.Time) (schema.EarlyWarningAlert, bool) {
	if p.PredictedValue <= policy.MemorySpikeMB || p.PredictedValue <= p.CurrentValue*policy.MemoryIncreaseRatio {
		return schema.EarlyWarningAlert{}, false
	}
	severity := schema.SeverityHigh
	if p.PredictedValue > policy.MemorySpikeMB*memoryCriticalFactor {
		severity = schema.SeverityCritical
	}
	a := newWarning(schema.MemorySpikeWarning, severity, p.Confidence, p.PredictedFor, now)
	a.MetricType = p.MetricType
	a.CurrentValue = p.CurrentValue
	a.PredictedValue = p.PredictedValue
	a.Title = "Memory spike forecast"
	a.Description = fmt.Sprintf("Memory usage is forecast to reach %.0fMB from %.0fMB", p.PredictedValue, p.CurrentValue)
	return a, true
}

func fpsWarning(p schema.PerformancePrediction, policy contract.WarningPolicy, now time.Time) (schema.EarlyWarningAlert, bool) {
	if p.PredictedValue >= policy.FpsFloor || p.PredictedValue >= p.CurrentValue*policy.FpsDropRatio {
		return schema.EarlyWarningAlert{}, false
	}
	severity := schema.SeverityHigh
	if p.PredictedValue < fpsCriticalFloor {
		severity = schema.SeverityCritical
	}
	a := newWarning(schema.FpsDropWarning, severity, p.Confidence, p.PredictedFor, now)
	a.MetricType = p.MetricType
	a.CurrentValue = p.CurrentValue
	a.PredictedValue = p.PredictedValue
	a.Title = "Frame rate drop forecast"
	a.Description = fmt.Sprintf("FPS is forecast to drop to %.1f from %.1f", p.PredictedValue, p.CurrentValue)
	return a, true
}

func preventionFor(kind schema.WarningType) []string {
	switch kind {
	case schema.DegradationWarning, schema.RouteDegradationWarning:
		return []string{
			"Review releases shipped since the score started falling",
			"Profile the lowest scoring routes on low-end devices",
		}
	case schema.SeasonalPeakWarning:
		return []string{
			"Scale backing services ahead of the peak window",
			"Defer heavy background work out of the peak window",
		}
	case schema.MemorySpikeWarning:
		return []string{
			"Audit caches and image buffers for unbounded growth",
			"Release listeners and subscriptions when screens unmount",
		}
	case schema.FpsDropWarning:
		return []string{
			"Move expensive work off the UI thread",
			"Reduce overdraw and list re-renders on animated screens",
		}
	}
	return []string{}
}

func monitoringFor(kind schema.WarningType) []string {
	switch kind {
	case schema.DegradationWarning, schema.RouteDegradationWarning:
		return []string{"Track the performance score per route hourly"}
	case schema.SeasonalPeakWarning:
		return []string{"Watch the live feed during the predicted window"}
	case schema.MemorySpikeWarning:
		return []string{"Add a memory_usage alert above the forecast threshold"}
	case schema.FpsDropWarning:
		return []string{"Add an fps alert below the forecast floor"}
	}
	return []string{}
}
