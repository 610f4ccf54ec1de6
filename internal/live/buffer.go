// Package live streams freshly recorded metric samples to dashboard clients.
//
// Samples are grouped into one-second buckets. A bucket stays pending until no
// sample has landed in it for the grace period, so metric types that arrive out
// of order for the same timestamp still end up in one point. A sample that lands
// after its bucket closed is merged into the emitted point, and the merged point
// is emitted again with the same timestamp.
package live

import (
	"sort"
	"sync"
	"time"

	"github.com/huangsam/perfscope/core/agg"
	"github.com/huangsam/perfscope/schema"
)

// DefaultMaxPoints caps the closed series kept for late joiners.
const DefaultMaxPoints = 300

type pendingBucket struct {
	at      time.Time
	acc     *agg.Accumulator
	updated time.Time
}

// Buffer aggregates live samples into time buckets. It is safe for concurrent use.
type Buffer struct {
	mu        sync.Mutex
	interval  time.Duration
	grace     time.Duration
	maxPoints int
	pending   map[int64]*pendingBucket
	series    []schema.LivePoint
	emitted   map[int64]*agg.Accumulator // accumulators behind series, by bucket key
}

// NewBuffer returns a buffer with the given bucket interval and grace period.
// Non-positive values fall back to agg.LiveInterval and two seconds.
func NewBuffer(interval, grace time.Duration) *Buffer {
	if interval <= 0 {
		interval = agg.LiveInterval
	}
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Buffer{
		interval:  interval,
		grace:     grace,
		maxPoints: DefaultMaxPoints,
		pending:   make(map[int64]*pendingBucket),
		emitted:   make(map[int64]*agg.Accumulator),
	}
}

// Add places samples into their pending buckets. now is the arrival time used
// for the grace period.
func (b *Buffer) Add(samples []schema.MetricSample, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range samples {
		at := agg.RoundToInterval(s.Timestamp, b.interval)
		key := at.UnixMilli()
		bucket, ok := b.pending[key]
		if !ok {
			bucket = &pendingBucket{at: at, acc: agg.NewAccumulator()}
			b.pending[key] = bucket
		}
		bucket.acc.Add(s.MetricType, s.Value)
		bucket.updated = now
	}
}

// Flush closes every bucket that has been quiet for the grace period, merges
// it into the series and returns the newly closed points in time order.
func (b *Buffer) Flush(now time.Time) []schema.LivePoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	closed := []schema.LivePoint{}
	for key, bucket := range b.pending {
		if now.Sub(bucket.updated) < b.grace {
			continue
		}
		if prev, ok := b.emitted[key]; ok {
			prev.Merge(bucket.acc)
			bucket.acc = prev
		} else {
			b.emitted[key] = bucket.acc
		}
		closed = append(closed, toPoint(bucket))
		delete(b.pending, key)
	}
	if len(closed) == 0 {
		return closed
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].Timestamp.Before(closed[j].Timestamp) })

	b.series = mergePoints(b.series, closed)
	if extra := len(b.series) - b.maxPoints; extra > 0 {
		for _, p := range b.series[:extra] {
			delete(b.emitted, p.Timestamp.UnixMilli())
		}
		b.series = b.series[extra:]
	}
	return closed
}

// Series returns a copy of the closed points, oldest first.
func (b *Buffer) Series() []schema.LivePoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]schema.LivePoint, len(b.series))
	copy(out, b.series)
	return out
}

// Pending returns the number of open buckets.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func toPoint(bucket *pendingBucket) schema.LivePoint {
	avg := bucket.acc.Averages()
	return schema.LivePoint{
		Timestamp: bucket.at,
		Fps:       avg.Fps,
		Memory:    avg.Memory,
		Cpu:       avg.Cpu,
		LoadTime:  avg.LoadTime,
		Samples:   bucket.acc.Len(),
	}
}

// mergePoints adds closed points to a sorted series. A straggler that closes
// after a later bucket is inserted in place, and a point whose timestamp is
// already present replaces it.
func mergePoints(series, closed []schema.LivePoint) []schema.LivePoint {
	for _, p := range closed {
		i := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(p.Timestamp) })
		if i < len(series) && series[i].Timestamp.Equal(p.Timestamp) {
			series[i] = p
			continue
		}
		series = append(series, schema.LivePoint{})
		copy(series[i+1:], series[i:])
		series[i] = p
	}
	return series
}
