// Package agg has aggregation logic for recorded client metrics.
package agg

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/schema"
)

// Bucket intervals.
const (
	SessionInterval = 5 * time.Second // session timelines and journey trajectories
	LiveInterval    = time.Second     // live trend streaming
)

// timestampLayouts are the accepted ISO-8601 variants, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp. Timestamps without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp: %q", s)
}

// RoundToInterval rounds t to the nearest interval using
// round(epochMillis / intervalMillis) * intervalMillis.
func RoundToInterval(t time.Time, interval time.Duration) time.Time {
	iv := interval.Milliseconds()
	if iv <= 0 {
		return t.UTC()
	}
	rounded := int64(math.Round(float64(t.UnixMilli())/float64(iv))) * iv
	return time.UnixMilli(rounded).UTC()
}

// Accumulator sums sample values per metric type. The zero value is not usable;
// use NewAccumulator.
type Accumulator struct {
	sums   map[schema.MetricType]float64
	counts map[schema.MetricType]int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		sums:   make(map[schema.MetricType]float64),
		counts: make(map[schema.MetricType]int),
	}
}

// Add records one sample value.
func (a *Accumulator) Add(t schema.MetricType, v float64) {
	a.sums[t] += v
	a.counts[t]++
}

// Merge adds every sample recorded by other.
func (a *Accumulator) Merge(other *Accumulator) {
	for t, v := range other.sums {
		a.sums[t] += v
	}
	for t, n := range other.counts {
		a.counts[t] += n
	}
}

// Len returns the number of samples recorded.
func (a *Accumulator) Len() int {
	n := 0
	for _, c := range a.counts {
		n += c
	}
	return n
}

// Averages returns per-type averages. Types without samples average to zero.
func (a *Accumulator) Averages() schema.MetricAverages {
	avg := func(types ...schema.MetricType) float64 {
		var sum float64
		var n int
		for _, t := range types {
			sum += a.sums[t]
			n += a.counts[t]
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}
	counts := make(map[schema.MetricType]int, len(a.counts))
	maps.Copy(counts, a.counts)
	return schema.MetricAverages{
		Fps:        avg(schema.FpsMetric),
		Memory:     avg(schema.MemoryMetric),
		Cpu:        avg(schema.CPUMetric),
		LoadTime:   avg(schema.NavigationTimeMetric, schema.ScreenLoadMetric),
		ScreenTime: avg(schema.ScreenTimeMetric),
		Counts:     counts,
	}
}

// Averages groups samples by metric type and averages each group.
func Averages(samples []schema.MetricSample) schema.MetricAverages {
	acc := NewAccumulator()
	for _, s := range samples {
		acc.Add(s.MetricType, s.Value)
	}
	return acc.Averages()
}

// WithInferredCPU fills Cpu with an estimate when there were no cpu_usage samples
// but at least one of fps, memory or load time was recorded.
func WithInferredCPU(avg schema.MetricAverages, deviceType, platform string) schema.MetricAverages {
	if avg.Has(schema.CPUMetric) {
		return avg
	}
	if !avg.Has(schema.FpsMetric) && !avg.Has(schema.MemoryMetric) && !avg.Has(schema.NavigationTimeMetric) {
		return avg
	}
	avg.Cpu = InferCPU(CPUSignals{
		Fps:        avg.Fps,
		MemoryMB:   avg.Memory,
		LoadTimeMs: avg.LoadTime,
		DeviceType: deviceType,
		Platform:   platform,
	})
	avg.CpuInferred = true
	return avg
}

// GroupBySession splits samples by session, keeping their order.
func GroupBySession(samples []schema.MetricSample) map[string][]schema.MetricSample {
	out := make(map[string][]schema.MetricSample)
	for _, s := range samples {
		out[s.SessionID] = append(out[s.SessionID], s)
	}
	return out
}

// GroupByRoute splits samples by normalized route, keeping their order.
// Samples without any route context are dropped.
func GroupByRoute(samples []schema.MetricSample, norm *Normalizer) map[string][]schema.MetricSample {
	out := make(map[string][]schema.MetricSample)
	for _, s := range samples {
		if s.RouteKey() == "" {
			continue
		}
		key := norm.NormalizeSample(s)
		out[key] = append(out[key], s)
	}
	return out
}

// BySession averages each session's samples.
func BySession(samples []schema.MetricSample) map[string]schema.MetricAverages {
	groups := GroupBySession(samples)
	out := make(map[string]schema.MetricAverages, len(groups))
	for id, group := range groups {
		out[id] = Averages(group)
	}
	return out
}

// Device identifies the hardware a session ran on.
type Device struct {
	Type     string
	Platform string
}

// DeviceOf returns the device of a session.
func DeviceOf(s schema.Session) Device {
	return Device{Type: s.DeviceType, Platform: s.Platform}
}

// Bucketize groups samples into interval buckets and returns one point per bucket
// that holds at least one fps, memory, cpu or load-time sample. The point's route is
// the normalized route of the latest sample in the bucket that has a route.
func Bucketize(samples []schema.MetricSample, interval time.Duration, norm *Normalizer, device Device) []schema.PerformancePoint {
	type bucket struct {
		acc   *Accumulator
		route string
	}
	buckets := make(map[int64]*bucket)
	for _, s := range samples {
		key := RoundToInterval(s.Timestamp, interval).UnixMilli()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{acc: NewAccumulator()}
			buckets[key] = b
		}
		if s.MetricType != schema.ScreenTimeMetric {
			b.acc.Add(s.MetricType, s.Value)
		}
		if s.RouteKey() != "" {
			b.route = norm.NormalizeSample(s)
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]schema.PerformancePoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		if b.acc.Len() == 0 {
			continue
		}
		avg := WithInferredCPU(b.acc.Averages(), device.Type, device.Platform)
		points = append(points, schema.PerformancePoint{
			Timestamp: time.UnixMilli(k).UTC(),
			Route:     b.route,
			Fps:       algo.Round2(avg.Fps),
			Memory:    algo.Round2(avg.Memory),
			Cpu:       algo.Round2(avg.Cpu),
			LoadTime:  algo.Round2(avg.LoadTime),
			Score:     algo.Round2(algo.ScoreAverages(avg)),
			Samples:   b.acc.Len(),
		})
	}
	return points
}

// CountTransitions counts screen transitions: samples whose normalized route differs
// from the preceding routed sample's route.
func CountTransitions(samples []schema.MetricSample, norm *Normalizer) int {
	var prev string
	transitions := 0
	for _, s := range samples {
		if s.RouteKey() == "" {
			continue
		}
		route := norm.NormalizeSample(s)
		if prev != "" && route != prev {
			transitions++
		}
		prev = route
	}
	return transitions
}

// SortSamples orders samples by timestamp, then ID.
func SortSamples(samples []schema.MetricSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if !samples[i].Timestamp.Equal(samples[j].Timestamp) {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		}
		return samples[i].ID < samples[j].ID
	})
}

// FilterByType keeps samples of the given types.
func FilterByType(samples []schema.MetricSample, types ...schema.MetricType) []schema.MetricSample {
	out := make([]schema.MetricSample, 0, len(samples))
	for _, s := range samples {
		for _, t := range types {
			if s.MetricType == t {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
