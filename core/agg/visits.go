package agg

import (
	"sort"
	"time"

	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/schema"
)

// RouteVisits derives the route visits of one session's time-ordered samples.
//
// Each screen_time sample is a visit that starts at its timestamp and lasts its
// value in milliseconds. Sessions without screen_time samples fall back to runs of
// consecutive samples on the same route, each lasting until the next run starts.
func RouteVisits(samples []schema.MetricSample, norm *Normalizer) []schema.RouteVisit {
	screenTimes := FilterByType(samples, schema.ScreenTimeMetric)
	var visits []schema.RouteVisit
	if len(screenTimes) > 0 {
		visits = visitsFromScreenTime(screenTimes, norm)
	} else {
		visits = visitsFromRuns(samples, norm)
	}

	for i := range visits {
		fillVisitAverages(&visits[i], samples, norm)
	}
	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].EntryTimestamp.Before(visits[j].EntryTimestamp)
	})
	return visits
}

func visitsFromScreenTime(screenTimes []schema.MetricSample, norm *Normalizer) []schema.RouteVisit {
	visits := make([]schema.RouteVisit, 0, len(screenTimes))
	for _, s := range screenTimes {
		if s.RouteKey() == "" {
			continue
		}
		duration := time.Duration(s.Value * float64(time.Millisecond))
		visits = append(visits, schema.RouteVisit{
			RoutePattern:   norm.NormalizeSample(s),
			RoutePath:      s.RouteKey(),
			SessionID:      s.SessionID,
			EntryTimestamp: s.Timestamp,
			ExitTimestamp:  s.Timestamp.Add(duration),
			DurationMs:     algo.Round2(s.Value),
		})
	}
	return visits
}

func visitsFromRuns(samples []schema.MetricSample, norm *Normalizer) []schema.RouteVisit {
	var visits []schema.RouteVisit
	for _, s := range samples {
		if s.RouteKey() == "" {
			continue
		}
		pattern := norm.NormalizeSample(s)
		if n := len(visits); n > 0 && visits[n-1].RoutePattern == pattern {
			visits[n-1].ExitTimestamp = s.Timestamp
			continue
		}
		if n := len(visits); n > 0 {
			visits[n-1].ExitTimestamp = s.Timestamp
		}
		visits = append(visits, schema.RouteVisit{
			RoutePattern:   pattern,
			RoutePath:      s.RouteKey(),
			SessionID:      s.SessionID,
			EntryTimestamp: s.Timestamp,
			ExitTimestamp:  s.Timestamp,
		})
	}
	for i := range visits {
		visits[i].DurationMs = float64(visits[i].ExitTimestamp.Sub(visits[i].EntryTimestamp).Milliseconds())
	}
	return visits
}

func fillVisitAverages(v *schema.RouteVisit, samples []schema.MetricSample, norm *Normalizer) {
	acc := NewAccumulator()
	for _, s := range samples {
		if s.Timestamp.Before(v.EntryTimestamp) || s.Timestamp.After(v.ExitTimestamp) {
			continue
		}
		if s.RouteKey() != "" && norm.NormalizeSample(s) != v.RoutePattern {
			continue
		}
		if s.MetricType == schema.FpsMetric || s.MetricType == schema.MemoryMetric {
			acc.Add(s.MetricType, s.Value)
		}
	}
	avg := acc.Averages()
	v.AvgFps = algo.Round2(avg.Fps)
	v.AvgMemory = algo.Round2(avg.Memory)
}
