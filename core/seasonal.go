package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// seasonCycle describes one candidate periodicity.
type seasonCycle struct {
	pattern schema.PatternType
	buckets int
	bucket  func(t time.Time) int
	cycle   func(t time.Time) int64 // identifies the cycle a timestamp belongs to
	label   func(b int) string
	next    func(now time.Time, b int) time.Time
}

var seasonCycles = []seasonCycle{
	{
		pattern: schema.HourlyPattern,
		buckets: 6,
		bucket:  func(t time.Time) int { return t.Minute() / 10 },
		cycle:   func(t time.Time) int64 { return t.Unix() / 3600 },
		label:   func(b int) string { return fmt.Sprintf(":%02d-:%02d", b*10, b*10+9) },
		next: func(now time.Time, b int) time.Time {
			at := now.Truncate(time.Hour).Add(time.Duration(b) * 10 * time.Minute)
			if !at.After(now) {
				at = at.Add(time.Hour)
			}
			return at
		},
	},
	{
		pattern: schema.DailyPattern,
		buckets: 24,
		bucket:  func(t time.Time) int { return t.Hour() },
		cycle:   func(t time.Time) int64 { return t.Unix() / 86400 },
		label:   func(b int) string { return fmt.Sprintf("%02d:00-%02d:59", b, b) },
		next: func(now time.Time, b int) time.Time {
			at := startOfDay(now).Add(time.Duration(b) * time.Hour)
			if !at.After(now) {
				at = at.AddDate(0, 0, 1)
			}
			return at
		},
	},
	{
		pattern: schema.WeeklyPattern,
		buckets: 7,
		bucket:  func(t time.Time) int { return int(t.Weekday()) },
		cycle: func(t time.Time) int64 {
			year, week := t.ISOWeek()
			return int64(year*100 + week)
		},
		label: func(b int) string { return time.Weekday(b).String() },
		next: func(now time.Time, b int) time.Time {
			ahead := (b - int(now.Weekday()) + 7) % 7
			at := startOfDay(now).AddDate(0, 0, ahead)
			if !at.After(now) {
				at = at.AddDate(0, 0, 7)
			}
			return at
		},
	},
	{
		pattern: schema.MonthlyPattern,
		buckets: 5,
		bucket:  func(t time.Time) int { return (t.Day() - 1) / 7 },
		cycle:   func(t time.Time) int64 { return int64(t.Year()*12) + int64(t.Month()) },
		label:   func(b int) string { return fmt.Sprintf("week %d", b+1) },
		next: func(now time.Time, b int) time.Time {
			first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			for range 14 {
				at := first.AddDate(0, 0, b*7)
				if at.Month() == first.Month() && at.After(now) {
					return at
				}
				first = first.AddDate(0, 1, 0)
			}
			return time.Time{}
		},
	},
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DetectSeasonality looks for a recurring cycle in each metric. For every metric at
// most one pattern is returned: the qualifying cycle with the strongest seasonality.
func DetectSeasonality(samples []schema.MetricSample, now time.Time, policy contract.SeasonalPolicy) []schema.SeasonalPattern {
	out := []schema.SeasonalPattern{}
	now = now.UTC()
	needed := max(policy.MinCycles, 1)

	for _, m := range trendMetrics {
		var values []float64
		var stamps []time.Time
		for _, s := range samples {
			if matchesMetric(s.MetricType, m) {
				values = append(values, s.Value)
				stamps = append(stamps, s.Timestamp.UTC())
			}
		}
		if len(values) < 2 {
			continue
		}

		var best *schema.SeasonalPattern
		for _, c := range seasonCycles {
			p, ok := fitCycle(c, m, values, stamps, now, needed)
			if !ok || p.Confidence <= policy.MinConfidence || p.SeasonalStrength <= policy.MinStrength {
				continue
			}
			if best == nil || p.SeasonalStrength > best.SeasonalStrength {
				best = &p
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SeasonalStrength > out[j].SeasonalStrength })
	return out
}

// minBucketSamples is the fewest samples a cycle position needs to take part in a fit.
const minBucketSamples = 3

// fitCycle buckets the values by cycle position and measures the share of variance
// the positions explain. Strength is omega squared, which stays near zero on noise
// however many positions a cycle has. Confidence scales with the observed cycles,
// the covered positions and how often the peak position recurs within single cycles.
func fitCycle(c seasonCycle, metric schema.MetricType, values []float64, stamps []time.Time, now time.Time, needed int) (schema.SeasonalPattern, bool) {
	pos := make([]int, len(values))
	counts := make([]int, c.buckets)
	for i := range values {
		pos[i] = c.bucket(stamps[i])
		counts[pos[i]]++
	}

	sums := make([]float64, c.buckets)
	cycles := make(map[int64]struct{})
	kept := make([]float64, 0, len(values))
	for i, v := range values {
		if counts[pos[i]] < minBucketSamples {
			continue
		}
		sums[pos[i]] += v
		kept = append(kept, v)
		cycles[c.cycle(stamps[i])] = struct{}{}
	}

	populated := 0
	peak, low := -1, -1
	means := make([]float64, c.buckets)
	for b := range c.buckets {
		if counts[b] < minBucketSamples {
			continue
		}
		populated++
		means[b] = sums[b] / float64(counts[b])
		if peak < 0 || means[b] > means[peak] {
			peak = b
		}
		if low < 0 || means[b] < means[low] {
			low = b
		}
	}
	n := len(kept)
	if populated < 2 || n <= populated {
		return schema.SeasonalPattern{}, false
	}

	grand := algo.Mean(kept)
	var total, between float64
	for _, v := range kept {
		total += (v - grand) * (v - grand)
	}
	if total == 0 {
		return schema.SeasonalPattern{}, false
	}
	for b := range c.buckets {
		if counts[b] >= minBucketSamples {
			between += float64(counts[b]) * (means[b] - grand) * (means[b] - grand)
		}
	}
	msw := (total - between) / float64(n-populated)
	omega := (between - float64(populated-1)*msw) / (total + msw)

	strength := algo.Clamp(omega, 0, 1)
	coverage := float64(populated) / float64(c.buckets)
	recurrence := peakRecurrence(c, values, stamps, pos, counts, peak)
	confidence := min(1, float64(len(cycles))/float64(needed)) * coverage * recurrence

	return schema.SeasonalPattern{
		MetricType:        metric,
		PatternType:       c.pattern,
		PeakWindow:        c.label(peak),
		LowWindow:         c.label(low),
		PeakValue:         algo.Round2(means[peak]),
		LowValue:          algo.Round2(means[low]),
		Amplitude:         algo.Round2(means[peak] - means[low]),
		SeasonalStrength:  algo.Round2(strength),
		Confidence:        algo.Round2(confidence),
		NextPredictedPeak: c.next(now, peak),
		NextPredictedLow:  c.next(now, low),
	}, true
}

// peakRecurrence returns the share of cycles in which the peak position beats the
// average of the other positions seen in that same cycle. Cycles that did not
// observe the peak and one other position are not counted.
func peakRecurrence(c seasonCycle, values []float64, stamps []time.Time, pos, counts []int, peak int) float64 {
	type cycleStats struct {
		sums   []float64
		counts []int
	}
	byCycle := make(map[int64]*cycleStats)
	for i, v := range values {
		if counts[pos[i]] < minBucketSamples {
			continue
		}
		id := c.cycle(stamps[i])
		cs, ok := byCycle[id]
		if !ok {
			cs = &cycleStats{sums: make([]float64, c.buckets), counts: make([]int, c.buckets)}
			byCycle[id] = cs
		}
		cs.sums[pos[i]] += v
		cs.counts[pos[i]]++
	}

	eligible, recurring := 0, 0
	for _, cs := range byCycle {
		if cs.counts[peak] == 0 {
			continue
		}
		var others float64
		seen := 0
		for b := range c.buckets {
			if b == peak || cs.counts[b] == 0 {
				continue
			}
			others += cs.sums[b] / float64(cs.counts[b])
			seen++
		}
		if seen == 0 {
			continue
		}
		eligible++
		if cs.sums[peak]/float64(cs.counts[peak]) > others/float64(seen) {
			recurring++
		}
	}
	if eligible == 0 {
		return 0
	}
	return float64(recurring) / float64(eligible)
}
