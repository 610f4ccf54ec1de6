package core

import (
	"sort"
	"strings"

	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/schema"
)

// MinPatternFrequency is the lowest frequency at which a pattern surfaces.
const MinPatternFrequency = 2

// Abandonment preceding-route cutoffs.
const (
	precedingMinCount = 2
	precedingMinShare = 0.3
)

// patternSeparator joins route patterns into a pattern key.
const patternSeparator = " > "

// AnalyzeJourneyPatterns groups journeys by their exact ordered route sequence and
// returns the groups seen at least minFrequency times, by user impact.
func AnalyzeJourneyPatterns(journeys []schema.UserJourney, minFrequency int) []schema.JourneyPattern {
	minFrequency = max(minFrequency, MinPatternFrequency)

	groups := make(map[string][]schema.UserJourney)
	for _, j := range journeys {
		if len(j.RouteSequence) == 0 {
			continue
		}
		key := strings.Join(j.RoutePatterns(), patternSeparator)
		groups[key] = append(groups[key], j)
	}

	out := []schema.JourneyPattern{}
	for key, group := range groups {
		if len(group) < minFrequency {
			continue
		}
		out = append(out, buildPattern(key, group))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserImpactScore != out[j].UserImpactScore {
			return out[i].UserImpactScore > out[j].UserImpactScore
		}
		return out[i].PatternKey < out[j].PatternKey
	})
	return out
}

func buildPattern(key string, group []schema.UserJourney) schema.JourneyPattern {
	freq := float64(len(group))
	var completed int
	durations := make([]float64, len(group))
	scores := make([]float64, len(group))
	for i, j := range group {
		if j.CompletionStatus == schema.JourneyCompleted {
			completed++
		}
		durations[i] = j.JourneyDuration
		scores[i] = j.JourneyScore
	}
	completion := float64(completed) / freq
	avgScore := algo.Mean(scores)

	return schema.JourneyPattern{
		PatternKey:            key,
		RouteSequence:         group[0].RoutePatterns(),
		Frequency:             len(group),
		CompletionRate:        algo.Round2(completion),
		AvgJourneyDuration:    algo.Round2(algo.Mean(durations)),
		AvgJourneyScore:       algo.Round2(avgScore),
		UserImpactScore:       algo.Round2(freq * (0.6*(1-completion) + 0.4*(1-avgScore/100)) * 10),
		OptimizationPotential: algo.Round2(algo.Clamp((100-avgScore)*0.7+(1-completion)*30, 0, 100)),
		CommonBottlenecks:     commonBottlenecks(group),
	}
}

// commonBottlenecks lists bottleneck types found in at least half of the journeys.
func commonBottlenecks(group []schema.UserJourney) []schema.BottleneckType {
	counts := make(map[schema.BottleneckType]int)
	for _, j := range group {
		seen := make(map[schema.BottleneckType]bool)
		for _, b := range j.BottleneckPoints {
			if !seen[b.BottleneckType] {
				seen[b.BottleneckType] = true
				counts[b.BottleneckType]++
			}
		}
	}
	out := []schema.BottleneckType{}
	for t, c := range counts {
		if c*2 >= len(group) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// AnalyzeAbandonment groups abandoned journeys by their final route.
func AnalyzeAbandonment(journeys []schema.UserJourney) []schema.AbandonmentPoint {
	groups := make(map[string][]schema.UserJourney)
	for _, j := range journeys {
		if j.CompletionStatus != schema.JourneyAbandoned || len(j.RouteSequence) == 0 {
			continue
		}
		last := j.RouteSequence[len(j.RouteSequence)-1].RoutePattern
		groups[last] = append(groups[last], j)
	}

	out := []schema.AbandonmentPoint{}
	for route, group := range groups {
		durations := make([]float64, len(group))
		scores := make([]float64, len(group))
		preceding := make(map[string]int)
		bottlenecks := make(map[schema.BottleneckType]int)
		for i, j := range group {
			durations[i] = j.JourneyDuration
			scores[i] = j.JourneyScore
			if n := len(j.RouteSequence); n >= 2 {
				preceding[j.RouteSequence[n-2].RoutePattern]++
			}
			for _, b := range j.BottleneckPoints {
				bottlenecks[b.BottleneckType]++
			}
		}
		out = append(out, schema.AbandonmentPoint{
			RoutePattern:           route,
			Frequency:              len(group),
			AbandonmentRate:        algo.Round2(float64(len(group)) / float64(len(journeys))),
			AvgTimeToAbandonment:   algo.Round2(algo.Mean(durations)),
			CommonPrecedingRoutes:  commonPreceding(preceding, len(group)),
			AvgScoreBeforeAbandon:  algo.Round2(algo.Mean(scores)),
			DominantBottleneckType: dominantBottleneck(bottlenecks),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].RoutePattern < out[j].RoutePattern
	})
	return out
}

// commonPreceding keeps routes that precede abandonment often enough.
func commonPreceding(counts map[string]int, groupSize int) []string {
	out := []string{}
	for route, c := range counts {
		if c >= precedingMinCount && float64(c)/float64(groupSize) >= precedingMinShare {
			out = append(out, route)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func dominantBottleneck(counts map[schema.BottleneckType]int) string {
	var best schema.BottleneckType
	for t, c := range counts {
		if c > counts[best] || (c == counts[best] && t < best) {
			best = t
		}
	}
	return string(best)
}
