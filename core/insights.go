package core

import (
	"fmt"
	"sort"

	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/schema"
)

// Recommendation categories.
const (
	MemoryCategory      = "memory"
	FpsCategory         = "fps"
	AbandonmentCategory = "abandonment"
	CorrelationCategory = "correlation"
	JourneyCategory     = "journey"
)

// Recommendation cutoffs.
const (
	fpsHighBelow            = 30.0
	minAbandonmentRate      = 0.1
	highAbandonmentRate     = 0.3
	minCorrelationStrength  = 0.5
	highCorrelationStrength = 0.8
	minPatternPotential     = 50.0
)

// RecommendationInputs are the analyses recommendations are derived from.
type RecommendationInputs struct {
	Routes       []schema.RoutePerformanceData
	Correlations []schema.RouteCorrelationAnalysis
	Patterns     []schema.JourneyPattern
	Abandonment  []schema.AbandonmentPoint
}

// GenerateRecommendations turns route, correlation and journey findings into
// optimization advice, most urgent and most impactful first.
func GenerateRecommendations(in RecommendationInputs) []schema.Recommendation {
	out := []schema.Recommendation{}
	t := schema.RouteRiskThresholds

	for _, r := range in.Routes {
		if r.AvgMemory > t.MediumMemoryAbove {
			priority := schema.SeverityMedium
			if r.AvgMemory > t.HighMemoryAbove {
				priority = schema.SeverityHigh
			}
			out = append(out, schema.Recommendation{
				Category:       MemoryCategory,
				Priority:       priority,
				Title:          fmt.Sprintf("Reduce memory usage on %s", r.RoutePattern),
				Description:    fmt.Sprintf("%s averages %.0fMB; release retained assets and cap caches", r.RoutePattern, r.AvgMemory),
				RoutePattern:   r.RoutePattern,
				ExpectedImpact: algo.Round2(algo.Clamp((r.AvgMemory-t.MediumMemoryAbove)/t.MediumMemoryAbove*100, 0, 100)),
			})
		}
		if len(r.Series.Fps) > 0 && r.AvgFps < t.MediumFpsBelow {
			priority := schema.SeverityMedium
			switch {
			case r.AvgFps < t.HighFpsBelow:
				priority = schema.SeverityCritical
			case r.AvgFps < fpsHighBelow:
				priority = schema.SeverityHigh
			}
			out = append(out, schema.Recommendation{
				Category:       FpsCategory,
				Priority:       priority,
				Title:          fmt.Sprintf("Improve frame rate on %s", r.RoutePattern),
				Description:    fmt.Sprintf("%s renders at %.1f fps on average; profile layout and animation work", r.RoutePattern, r.AvgFps),
				RoutePattern:   r.RoutePattern,
				ExpectedImpact: algo.Round2(algo.Clamp((algo.TargetFps-r.AvgFps)/algo.TargetFps*100, 0, 100)),
			})
		}
	}

	for _, a := range in.Abandonment {
		if a.AbandonmentRate < minAbandonmentRate {
			continue
		}
		priority := schema.SeverityMedium
		if a.AbandonmentRate >= highAbandonmentRate {
			priority = schema.SeverityHigh
		}
		desc := fmt.Sprintf("%.0f%% of journeys end on %s", a.AbandonmentRate*100, a.RoutePattern)
		if a.DominantBottleneckType != "" {
			desc += fmt.Sprintf(", most often after a %s", a.DominantBottleneckType)
		}
		out = append(out, schema.Recommendation{
			Category:       AbandonmentCategory,
			Priority:       priority,
			Title:          fmt.Sprintf("Investigate abandonment on %s", a.RoutePattern),
			Description:    desc,
			RoutePattern:   a.RoutePattern,
			ExpectedImpact: algo.Round2(a.AbandonmentRate * 100),
		})
	}

	for _, c := range in.Correlations {
		if c.CorrelationStrength < minCorrelationStrength {
			continue
		}
		switch c.CorrelationType {
		case schema.MemoryLeak, schema.CPUSpike, schema.FpsDegradation:
		default:
			continue
		}
		priority := schema.SeverityMedium
		if c.CorrelationStrength >= highCorrelationStrength {
			priority = schema.SeverityHigh
		}
		out = append(out, schema.Recommendation{
			Category:       CorrelationCategory,
			Priority:       priority,
			Title:          fmt.Sprintf("Check %s between %s and %s", c.CorrelationType, c.SourceRoute, c.TargetRoute),
			Description:    c.Insight,
			RoutePattern:   c.SourceRoute,
			ExpectedImpact: algo.Round2(c.CorrelationStrength * 100),
		})
	}

	for _, p := range in.Patterns {
		if p.OptimizationPotential < minPatternPotential {
			continue
		}
		out = append(out, schema.Recommendation{
			Category:       JourneyCategory,
			Priority:       schema.SeverityMedium,
			Title:          fmt.Sprintf("Optimize the journey %s", p.PatternKey),
			Description:    fmt.Sprintf("%d journeys follow this path with a %.0f%% completion rate", p.Frequency, p.CompletionRate*100),
			ExpectedImpact: p.OptimizationPotential,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		if out[i].ExpectedImpact != out[j].ExpectedImpact {
			return out[i].ExpectedImpact > out[j].ExpectedImpact
		}
		return out[i].Title < out[j].Title
	})
	return out
}
