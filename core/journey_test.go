package core

import (
	"testing"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructJourneys(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		journeys := ReconstructJourneys(nil, nil, DefaultJourneyOptions())
		assert.NotNil(t, journeys)
		assert.Empty(t, journeys)
	})

	t.Run("split by user and gap", func(t *testing.T) {
		sessions := []schema.Session{
			newSession("s1", "user1", at(0), ptr(at(300))),
			newSession("s2", "user1", at(900), ptr(at(1200))),  // ten minutes later, same journey
			newSession("s3", "user1", at(14400), ptr(at(15000))), // hours later, new journey
			newSession("s4", "user2", at(60), ptr(at(400))),
		}
		samples := []schema.MetricSample{
			newSample("s1", at(0), schema.FpsMetric, 58, "/home"),
			newSample("s1", at(100), schema.FpsMetric, 57, "/list"),
			newSample("s2", at(900), schema.FpsMetric, 55, "/detail"),
			newSample("s3", at(14400), schema.FpsMetric, 59, "/home"),
			newSample("s4", at(60), schema.FpsMetric, 60, "/home"),
		}

		journeys := ReconstructJourneys(sessions, samples, DefaultJourneyOptions())
		require.Len(t, journeys, 3)

		assert.Equal(t, "user1", journeys[0].AnonymousUserID)
		assert.Equal(t, []string{"s1", "s2"}, journeys[0].SessionIDs)
		assert.Equal(t, []string{"/home", "/list", "/detail"}, journeys[0].RoutePatterns())

		assert.Equal(t, "user2", journeys[1].AnonymousUserID)
		assert.Equal(t, []string{"s4"}, journeys[1].SessionIDs)

		assert.Equal(t, "user1", journeys[2].AnonymousUserID)
		assert.Equal(t, []string{"s3"}, journeys[2].SessionIDs)

		seen := map[string]bool{}
		for _, j := range journeys {
			assert.False(t, seen[j.JourneyID], "journey IDs are unique")
			seen[j.JourneyID] = true
		}

		again := ReconstructJourneys(sessions, samples, DefaultJourneyOptions())
		assert.Equal(t, journeys[0].JourneyID, again[0].JourneyID, "journey IDs are deterministic")
	})

	t.Run("fps drop entering a route", func(t *testing.T) {
		sessions := []schema.Session{newSession("s1", "user1", at(0), ptr(at(40)))}
		samples := []schema.MetricSample{
			newSample("s1", at(0), schema.FpsMetric, 60, "/home"),
			newSample("s1", at(10), schema.FpsMetric, 60, "/home"),
			newSample("s1", at(20), schema.FpsMetric, 30, "/game"),
			newSample("s1", at(30), schema.FpsMetric, 30, "/game"),
		}

		journeys := ReconstructJourneys(sessions, samples, DefaultJourneyOptions())
		require.Len(t, journeys, 1)
		j := journeys[0]

		require.Len(t, j.BottleneckPoints, 1)
		b := j.BottleneckPoints[0]
		assert.Equal(t, schema.PerformanceDrop, b.BottleneckType)
		assert.Equal(t, "/game", b.RoutePattern)
		assert.Equal(t, schema.SeverityHigh, b.Severity)
		assert.InDelta(t, 60, b.PreviousValue, 0.01)
		assert.InDelta(t, 30, b.MetricValue, 0.01)
		assert.InDelta(t, 50, b.ImpactScore, 0.01)
	})

	t.Run("bottlenecks ordered by impact", func(t *testing.T) {
		sessions := []schema.Session{newSession("s1", "user1", at(0), ptr(at(200)))}
		samples := []schema.MetricSample{
			newSample("s1", at(0), schema.FpsMetric, 60, "/home"),
			newSample("s1", at(1), schema.MemoryMetric, 300, "/home"),
			newSample("s1", at(20), schema.FpsMetric, 20, "/game"),
			newSample("s1", at(21), schema.MemoryMetric, 700, "/game"),
			newSample("s1", at(200), schema.FpsMetric, 20, "/game"),
		}

		journeys := ReconstructJourneys(sessions, samples, DefaultJourneyOptions())
		require.Len(t, journeys, 1)
		j := journeys[0]

		require.Len(t, j.BottleneckPoints, 3)
		types := []schema.BottleneckType{}
		for i, b := range j.BottleneckPoints {
			types = append(types, b.BottleneckType)
			if i > 0 {
				assert.GreaterOrEqual(t, j.BottleneckPoints[i-1].ImpactScore, b.ImpactScore)
			}
		}
		assert.Equal(t, []schema.BottleneckType{schema.MemorySpike, schema.PerformanceDrop, schema.SlowTransition}, types)
		assert.Equal(t, schema.SeverityHigh, j.BottleneckPoints[0].Severity)
		assert.Equal(t, schema.SeverityCritical, j.BottleneckPoints[1].Severity)
		assert.Equal(t, schema.SeverityMedium, j.BottleneckPoints[2].Severity)

		assert.Equal(t, at(0), j.JourneyStart)
		assert.Equal(t, at(200), j.JourneyEnd)
		assert.InDelta(t, j.JourneyEnd.Sub(j.JourneyStart).Seconds(), j.JourneyDuration, 0.01)
		assert.GreaterOrEqual(t, j.JourneyScore, 0.0)
		assert.LessOrEqual(t, j.JourneyScore, 100.0)
	})
}

func TestDetectJourneyBottlenecks(t *testing.T) {
	policy := contract.DefaultPolicy().Bottleneck

	j := schema.UserJourney{
		PerformanceTrajectory: []schema.PerformancePoint{
			{Timestamp: at(0), Route: "/a", Fps: 60, Memory: 450},
			{Timestamp: at(5), Route: "/a", Fps: 50, Memory: 500}, // small dip, small rise above spike level
			{Timestamp: at(10), Route: "/b", Fps: 0, Memory: 0},   // no signal
		},
	}
	assert.Empty(t, DetectJourneyBottlenecks(j, policy))

	j.PerformanceTrajectory = append(j.PerformanceTrajectory,
		schema.PerformancePoint{Timestamp: at(15), Route: "/b", Fps: 20, Memory: 900})
	out := DetectJourneyBottlenecks(j, policy)
	require.Len(t, out, 2)
	assert.Equal(t, schema.MemorySpike, out[0].BottleneckType, "fps 0 points are skipped, so the drop compares 50 to 20")
	assert.Equal(t, schema.SeverityCritical, out[0].Severity)
	assert.Equal(t, schema.PerformanceDrop, out[1].BottleneckType)
	assert.InDelta(t, 50, out[1].PreviousValue, 0.01)
}

func visitsOf(n int) []schema.RouteVisit {
	visits := make([]schema.RouteVisit, n)
	for i := range visits {
		visits[i] = schema.RouteVisit{RoutePattern: "/r", EntryTimestamp: at(i * 10)}
	}
	return visits
}

func TestClassifyCompletion(t *testing.T) {
	policy := contract.DefaultPolicy().Journey

	tests := []struct {
		name     string
		routes   int
		duration time.Duration
		active   bool
		want     schema.CompletionStatus
	}{
		{"enough routes and time", 3, 90 * time.Second, false, schema.JourneyCompleted},
		{"completed while still open", 3, 90 * time.Second, true, schema.JourneyCompleted},
		{"single route", 1, 30 * time.Second, false, schema.JourneyAbandoned},
		{"too short", 2, 5 * time.Second, false, schema.JourneyAbandoned},
		{"in between", 2, 30 * time.Second, false, schema.JourneyInProgress},
		{"still open", 1, 5 * time.Second, true, schema.JourneyInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := schema.UserJourney{RouteSequence: visitsOf(tt.routes), JourneyDuration: tt.duration.Seconds()}
			assert.Equal(t, tt.want, ClassifyCompletion(j, tt.active, policy))
		})
	}
}

func TestScoreJourney(t *testing.T) {
	policy := contract.DefaultPolicy().Journey

	assert.Equal(t, 50.0, ScoreJourney(schema.UserJourney{}, policy), "a journey without trajectory scores 50")

	j := schema.UserJourney{
		PerformanceTrajectory: []schema.PerformancePoint{{Score: 80}, {Score: 90}},
		CompletionStatus:      schema.JourneyCompleted,
	}
	assert.InDelta(t, 95, ScoreJourney(j, policy), 0.01)

	j.BottleneckPoints = []schema.BottleneckPoint{{Severity: schema.SeverityCritical}}
	assert.InDelta(t, 80, ScoreJourney(j, policy), 0.01)

	j.CompletionStatus = schema.JourneyAbandoned
	for range 10 {
		j.BottleneckPoints = append(j.BottleneckPoints, schema.BottleneckPoint{Severity: schema.SeverityHigh})
	}
	assert.Zero(t, ScoreJourney(j, policy), "scores never drop below zero")
}
