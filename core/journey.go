package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/perfscope/core/agg"
	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// Severity cutoffs for journey bottlenecks.
const (
	dropCriticalRatio = 0.6
	dropHighRatio     = 0.45

	memoryCriticalMB = 800.0
	memoryHighMB     = 600.0

	slowCriticalSeconds = 300.0
	slowHighSeconds     = 180.0
	slowMediumSeconds   = 120.0
)

// defaultJourneyScore is used when a journey has no trajectory to score.
const defaultJourneyScore = 50.0

// severityPenalty is subtracted from the journey score per bottleneck.
var severityPenalty = map[schema.Severity]float64{
	schema.SeverityCritical: 15,
	schema.SeverityHigh:     10,
	schema.SeverityMedium:   5,
	schema.SeverityLow:      2,
}

// journeyNamespace seeds the deterministic journey IDs.
var journeyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("perfscope/journey"))

// JourneyOptions tunes ReconstructJourneys.
type JourneyOptions struct {
	Journey    contract.JourneyPolicy
	Bottleneck contract.BottleneckPolicy
	Normalizer *agg.Normalizer
}

// DefaultJourneyOptions returns the stock journey policies.
func DefaultJourneyOptions() JourneyOptions {
	p := contract.DefaultPolicy()
	return JourneyOptions{Journey: p.Journey, Bottleneck: p.Bottleneck}
}

// ReconstructJourneys regroups sessions into per-user journeys. Sessions of one user
// belong to the same journey while the gap between the end of the previous session
// and the start of the next stays within the window.
func ReconstructJourneys(sessions []schema.Session, samples []schema.MetricSample, opts JourneyOptions) []schema.UserJourney {
	norm := opts.Normalizer
	if norm == nil {
		norm = agg.DefaultNormalizer()
	}
	window := opts.Journey.Window
	if window <= 0 {
		window = contract.DefaultJourneyWindow
	}

	bySession := agg.GroupBySession(samples)
	for id := range bySession {
		agg.SortSamples(bySession[id])
	}

	byUser := make(map[string][]schema.Session)
	for _, s := range sessions {
		byUser[s.UserKey()] = append(byUser[s.UserKey()], s)
	}

	journeys := []schema.UserJourney{}
	for user, userSessions := range byUser {
		sort.Slice(userSessions, func(i, j int) bool {
			if !userSessions[i].SessionStart.Equal(userSessions[j].SessionStart) {
				return userSessions[i].SessionStart.Before(userSessions[j].SessionStart)
			}
			return userSessions[i].ID < userSessions[j].ID
		})

		var current []schema.Session
		var currentEnd time.Time
		for _, s := range userSessions {
			if len(current) > 0 && s.SessionStart.Sub(currentEnd) > window {
				journeys = append(journeys, buildJourney(user, current, bySession, norm, opts))
				current = nil
			}
			current = append(current, s)
			if end := sessionEnd(s, bySession[s.ID]); len(current) == 1 || end.After(currentEnd) {
				currentEnd = end
			}
		}
		if len(current) > 0 {
			journeys = append(journeys, buildJourney(user, current, bySession, norm, opts))
		}
	}

	sort.Slice(journeys, func(i, j int) bool {
		if !journeys[i].JourneyStart.Equal(journeys[j].JourneyStart) {
			return journeys[i].JourneyStart.Before(journeys[j].JourneyStart)
		}
		return journeys[i].JourneyID < journeys[j].JourneyID
	})
	return journeys
}

// sessionEnd is the latest of the recorded end, the start and the last sample.
func sessionEnd(s schema.Session, samples []schema.MetricSample) time.Time {
	end := s.SessionStart
	if s.SessionEnd != nil && s.SessionEnd.After(end) {
		end = *s.SessionEnd
	}
	if n := len(samples); n > 0 && samples[n-1].Timestamp.After(end) {
		end = samples[n-1].Timestamp
	}
	return end
}

func buildJourney(user string, sessions []schema.Session, bySession map[string][]schema.MetricSample, norm *agg.Normalizer, opts JourneyOptions) schema.UserJourney {
	first := sessions[0]
	j := schema.UserJourney{
		JourneyID:             uuid.NewSHA1(journeyNamespace, []byte(user+"|"+first.ID)).String(),
		SessionID:             first.ID,
		SessionIDs:            make([]string, 0, len(sessions)),
		DeviceID:              first.DeviceID,
		AnonymousUserID:       first.AnonymousUserID,
		RouteSequence:         []schema.RouteVisit{},
		PerformanceTrajectory: []schema.PerformancePoint{},
	}

	end := first.SessionStart
	for _, s := range sessions {
		j.SessionIDs = append(j.SessionIDs, s.ID)
		own := bySession[s.ID]
		j.RouteSequence = append(j.RouteSequence, agg.RouteVisits(own, norm)...)
		j.PerformanceTrajectory = append(j.PerformanceTrajectory, agg.Bucketize(own, agg.SessionInterval, norm, agg.DeviceOf(s))...)
		if e := sessionEnd(s, own); e.After(end) {
			end = e
		}
	}
	sort.SliceStable(j.RouteSequence, func(a, b int) bool {
		return j.RouteSequence[a].EntryTimestamp.Before(j.RouteSequence[b].EntryTimestamp)
	})
	sort.SliceStable(j.PerformanceTrajectory, func(a, b int) bool {
		return j.PerformanceTrajectory[a].Timestamp.Before(j.PerformanceTrajectory[b].Timestamp)
	})

	if n := len(j.RouteSequence); n > 0 {
		j.JourneyStart = j.RouteSequence[0].EntryTimestamp
		j.JourneyEnd = j.RouteSequence[n-1].ExitTimestamp
	} else {
		j.JourneyStart = first.SessionStart
		j.JourneyEnd = end
	}
	j.JourneyDuration = algo.Round2(j.JourneyEnd.Sub(j.JourneyStart).Seconds())

	j.BottleneckPoints = DetectJourneyBottlenecks(j, opts.Bottleneck)
	j.CompletionStatus = ClassifyCompletion(j, sessions[len(sessions)-1].IsActive(), opts.Journey)
	j.JourneyScore = ScoreJourney(j, opts.Journey)
	return j
}

// DetectJourneyBottlenecks finds fps drops and memory spikes along the trajectory and
// slow visits along the route sequence. Results are ordered by impact, highest first.
func DetectJourneyBottlenecks(j schema.UserJourney, policy contract.BottleneckPolicy) []schema.BottleneckPoint {
	out := []schema.BottleneckPoint{}

	var prevFps, prevMem *schema.PerformancePoint
	for i := range j.PerformanceTrajectory {
		p := &j.PerformanceTrajectory[i]
		if p.Fps > 0 {
			if prevFps != nil {
				if b, ok := fpsDrop(*prevFps, *p, policy); ok {
					out = append(out, b)
				}
			}
			prevFps = p
		}
		if p.Memory > 0 {
			if prevMem != nil {
				if b, ok := memorySpike(*prevMem, *p, policy); ok {
					out = append(out, b)
				}
			}
			prevMem = p
		}
	}

	slowMs := float64(policy.SlowVisit.Milliseconds())
	for _, v := range j.RouteSequence {
		if slowMs > 0 && v.DurationMs > slowMs {
			out = append(out, slowVisit(v))
		}
	}
	return algo.RankBottlenecks(out)
}

func fpsDrop(prev, cur schema.PerformancePoint, policy contract.BottleneckPolicy) (schema.BottleneckPoint, bool) {
	ratio := (prev.Fps - cur.Fps) / prev.Fps
	if ratio < policy.FpsDropRatio {
		return schema.BottleneckPoint{}, false
	}
	severity := schema.SeverityMedium
	switch {
	case ratio >= dropCriticalRatio:
		severity = schema.SeverityCritical
	case ratio >= dropHighRatio:
		severity = schema.SeverityHigh
	}
	return schema.BottleneckPoint{
		RoutePattern:   cur.Route,
		BottleneckType: schema.PerformanceDrop,
		Severity:       severity,
		ImpactScore:    algo.Round2(algo.Clamp(ratio*100, 0, 100)),
		Timestamp:      cur.Timestamp,
		MetricValue:    cur.Fps,
		PreviousValue:  prev.Fps,
		Description:    fmt.Sprintf("FPS dropped %.0f%% from %.1f to %.1f entering %s", ratio*100, prev.Fps, cur.Fps, cur.Route),
	}, true
}

func memorySpike(prev, cur schema.PerformancePoint, policy contract.BottleneckPolicy) (schema.BottleneckPoint, bool) {
	if cur.Memory <= policy.MemorySpikeMB || cur.Memory <= prev.Memory {
		return schema.BottleneckPoint{}, false
	}
	if prev.Memory > policy.MemorySpikeMB && cur.Memory-prev.Memory < policy.MemoryRiseMB {
		return schema.BottleneckPoint{}, false
	}
	severity := schema.SeverityMedium
	switch {
	case cur.Memory > memoryCriticalMB:
		severity = schema.SeverityCritical
	case cur.Memory > memoryHighMB:
		severity = schema.SeverityHigh
	}
	return schema.BottleneckPoint{
		RoutePattern:   cur.Route,
		BottleneckType: schema.MemorySpike,
		Severity:       severity,
		ImpactScore:    algo.Round2(min(100, cur.Memory/10)),
		Timestamp:      cur.Timestamp,
		MetricValue:    cur.Memory,
		PreviousValue:  prev.Memory,
		Description:    fmt.Sprintf("Memory rose from %.0fMB to %.0fMB on %s", prev.Memory, cur.Memory, cur.Route),
	}, true
}

func slowVisit(v schema.RouteVisit) schema.BottleneckPoint {
	seconds := v.DurationMs / 1000
	severity := schema.SeverityLow
	switch {
	case seconds > slowCriticalSeconds:
		severity = schema.SeverityCritical
	case seconds > slowHighSeconds:
		severity = schema.SeverityHigh
	case seconds > slowMediumSeconds:
		severity = schema.SeverityMedium
	}
	return schema.BottleneckPoint{
		RoutePattern:   v.RoutePattern,
		BottleneckType: schema.SlowTransition,
		Severity:       severity,
		ImpactScore:    algo.Round2(min(100, seconds/3)),
		Timestamp:      v.EntryTimestamp,
		MetricValue:    algo.Round2(seconds),
		Description:    fmt.Sprintf("Visit to %s lasted %.0fs", v.RoutePattern, seconds),
	}
}

// ClassifyCompletion applies the completion cutoffs. A journey whose last session
// is still open is in progress unless it already qualifies as completed.
func ClassifyCompletion(j schema.UserJourney, lastSessionActive bool, policy contract.JourneyPolicy) schema.CompletionStatus {
	routes := len(j.RouteSequence)
	duration := time.Duration(j.JourneyDuration * float64(time.Second))
	switch {
	case routes >= policy.CompletedMinRoutes && duration >= policy.CompletedMinDuration:
		return schema.JourneyCompleted
	case lastSessionActive:
		return schema.JourneyInProgress
	case routes <= policy.AbandonedMaxRoutes || duration < policy.AbandonedMaxDuration:
		return schema.JourneyAbandoned
	default:
		return schema.JourneyInProgress
	}
}

// ScoreJourney averages the trajectory scores, adds the completion bonus and
// subtracts a penalty per bottleneck. A journey without trajectory scores 50.
func ScoreJourney(j schema.UserJourney, policy contract.JourneyPolicy) float64 {
	if len(j.PerformanceTrajectory) == 0 {
		return defaultJourneyScore
	}
	scores := make([]float64, len(j.PerformanceTrajectory))
	for i, p := range j.PerformanceTrajectory {
		scores[i] = p.Score
	}
	score := algo.Mean(scores)
	if j.CompletionStatus == schema.JourneyCompleted {
		score += policy.CompletionBonus
	}
	for _, b := range j.BottleneckPoints {
		score -= severityPenalty[b.Severity]
	}
	return algo.Round2(algo.Clamp(score, 0, 100))
}
