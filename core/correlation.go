package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// Correlation classification cutoffs.
const (
	strongPositiveCorr = 0.5
	degradationCorr    = -0.3
	boostCorr          = 0.3
	lowFpsBoth         = 40.0
	highFpsBoth        = 45.0
	neutralImpactBelow = 0.2
)

// AnalyzeRouteRelationship correlates the per-session series of two routes.
// Series are paired index-wise up to the shorter length.
func AnalyzeRouteRelationship(source, target schema.RoutePerformanceData) schema.RouteCorrelationAnalysis {
	fpsR := algo.Pearson(source.Series.Fps, target.Series.Fps)
	memR := algo.Pearson(source.Series.Memory, target.Series.Memory)
	cpuR := algo.Pearson(source.Series.Cpu, target.Series.Cpu)
	overall := (fpsR + memR + cpuR) / 3

	n := min(source.TotalSessions, target.TotalSessions)
	ctype := classifyCorrelation(source, target, fpsR, memR, cpuR)
	impact := correlationImpact(source, target, overall)

	return schema.RouteCorrelationAnalysis{
		SourceRoute:             source.RoutePattern,
		TargetRoute:             target.RoutePattern,
		FpsCorrelation:          algo.Round2(fpsR),
		MemoryCorrelation:       algo.Round2(memR),
		CpuCorrelation:          algo.Round2(cpuR),
		OverallCorrelation:      algo.Round2(overall),
		CorrelationStrength:     algo.Round2(math.Abs(overall)),
		PerformanceImpact:       impact,
		CorrelationType:         ctype,
		StatisticalSignificance: algo.Round2(algo.Significance(overall, n)),
		ConfidenceLevel:         algo.SampleConfidence(n),
		SampleSize:              n,
		Insight:                 correlationInsight(source.RoutePattern, target.RoutePattern, ctype, impact, overall),
	}
}

// classifyCorrelation applies the type rules in priority order. Pairs matching no
// rule are unclassified.
func classifyCorrelation(source, target schema.RoutePerformanceData, fpsR, memR, cpuR float64) schema.CorrelationType {
	bothFps := len(source.Series.Fps) > 0 && len(target.Series.Fps) > 0
	switch {
	case memR > strongPositiveCorr && source.AvgMemory > target.AvgMemory:
		return schema.MemoryLeak
	case cpuR > strongPositiveCorr && source.AvgCpu > target.AvgCpu:
		return schema.CPUSpike
	case fpsR < degradationCorr || (bothFps && source.AvgFps < lowFpsBoth && target.AvgFps < lowFpsBoth):
		return schema.FpsDegradation
	case fpsR > boostCorr && bothFps && source.AvgFps > highFpsBoth && target.AvgFps > highFpsBoth:
		return schema.PerformanceBoost
	default:
		return schema.UnclassifiedRelation
	}
}

// correlationImpact is positive when the sign of r agrees with the source scoring
// at least as well as the target.
func correlationImpact(source, target schema.RoutePerformanceData, r float64) schema.PerformanceImpact {
	if math.Abs(r) < neutralImpactBelow {
		return schema.NeutralImpact
	}
	sourceBetter := source.PerformanceScore >= target.PerformanceScore
	if (r > 0) == sourceBetter {
		return schema.PositiveImpact
	}
	return schema.NegativeImpact
}

func correlationInsight(source, target string, ctype schema.CorrelationType, impact schema.PerformanceImpact, r float64) string {
	switch ctype {
	case schema.MemoryLeak:
		return fmt.Sprintf("Memory on %s rises with %s and stays higher; check for retained state between the screens", source, target)
	case schema.CPUSpike:
		return fmt.Sprintf("CPU load on %s tracks %s; work started on one screen may continue on the other", source, target)
	case schema.FpsDegradation:
		return fmt.Sprintf("Frame rate degrades across %s and %s", source, target)
	case schema.PerformanceBoost:
		return fmt.Sprintf("%s and %s perform well together", source, target)
	}
	return fmt.Sprintf("%s and %s are correlated (r=%.2f, %s impact) without a known pattern", source, target, r, impact)
}

// AnalyzeCorrelations correlates every unordered pair of routes that have enough
// sessions and keeps the pairs at or above the minimum strength, strongest first.
func AnalyzeCorrelations(routes []schema.RoutePerformanceData, policy contract.CorrelationPolicy) []schema.RouteCorrelationAnalysis {
	eligible := make([]schema.RoutePerformanceData, 0, len(routes))
	for _, r := range routes {
		if r.TotalSessions >= policy.MinSessions {
			eligible = append(eligible, r)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].RoutePattern < eligible[j].RoutePattern })

	out := []schema.RouteCorrelationAnalysis{}
	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			rel := AnalyzeRouteRelationship(eligible[i], eligible[j])
			if rel.CorrelationType == schema.UnclassifiedRelation {
				if flipped := AnalyzeRouteRelationship(eligible[j], eligible[i]); flipped.CorrelationType != schema.UnclassifiedRelation {
					rel = flipped
				}
			}
			if rel.CorrelationStrength >= policy.MinStrength {
				out = append(out, rel)
			}
		}
	}
	return algo.RankCorrelations(out, policy.Limit)
}
