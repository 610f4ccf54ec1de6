package core

import (
	"sort"
	"strings"
	"time"

	"github.com/huangsam/perfscope/core/agg"
	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/schema"
)

// Trend detection over a route's chronological session scores.
const (
	trendMinSessions = 4
	trendDelta       = 5.0
)

// RouteOptions tunes AnalyzeRoutePerformance.
type RouteOptions struct {
	Normalizer  *agg.Normalizer
	TopN        int    // size of the best/worst summary lists
	RouteFilter string // keep only route patterns with this prefix
}

func (o RouteOptions) normalizer() *agg.Normalizer {
	if o.Normalizer == nil {
		return agg.DefaultNormalizer()
	}
	return o.Normalizer
}

// sessionProfile is one session's averages on one route.
type sessionProfile struct {
	session schema.Session
	first   time.Time
	avg     schema.MetricAverages
	score   float64
}

// AnalyzeRoutePerformance builds one profile per normalized route pattern, plus the
// app-wide averages and the triage summary. Routes are ordered by score, best first.
func AnalyzeRoutePerformance(sessions []schema.Session, samples []schema.MetricSample, opts RouteOptions) schema.RoutePerformanceAnalysis {
	out := schema.EmptyRoutePerformanceAnalysis()
	if len(samples) == 0 {
		return out
	}
	norm := opts.normalizer()
	index := indexSessions(sessions)

	var routes []schema.RoutePerformanceData
	seenSessions := make(map[string]struct{})
	for pattern, routeSamples := range agg.GroupByRoute(samples, norm) {
		if opts.RouteFilter != "" && !strings.HasPrefix(pattern, opts.RouteFilter) {
			continue
		}
		profiles := profileSessions(routeSamples, index)
		for _, p := range profiles {
			seenSessions[p.session.ID] = struct{}{}
		}
		routes = append(routes, buildRouteData(pattern, routeSamples, profiles))
	}
	if len(routes) == 0 {
		return out
	}

	app := appAverages(samples, index)
	for i := range routes {
		routes[i].RelativePerformance = schema.RelativePerformance{
			Fps:    algo.Round2(routes[i].AvgFps - app.Fps),
			Memory: algo.Round2(routes[i].AvgMemory - app.Memory),
			Cpu:    algo.Round2(routes[i].AvgCpu - app.Cpu),
			Score:  algo.Round2(routes[i].PerformanceScore - app.PerformanceScore),
		}
	}

	routes = algo.RankRoutes(routes, 0)
	out.Routes = routes
	out.AppAverages = app
	out.Summary = summarizeRoutes(routes, len(seenSessions), opts.TopN)
	return out
}

// indexSessions maps session IDs to sessions.
func indexSessions(sessions []schema.Session) map[string]schema.Session {
	index := make(map[string]schema.Session, len(sessions))
	for _, s := range sessions {
		index[s.ID] = s
	}
	return index
}

// lookupSession returns the indexed session or a stub carrying only the ID.
func lookupSession(index map[string]schema.Session, id string) schema.Session {
	if s, ok := index[id]; ok {
		return s
	}
	return schema.Session{ID: id}
}

// profileSessions averages samples per session, inferring CPU where it is missing,
// and returns the profiles ordered by their first sample.
func profileSessions(samples []schema.MetricSample, index map[string]schema.Session) []sessionProfile {
	firstSeen := make(map[string]time.Time)
	for _, s := range samples {
		if t, ok := firstSeen[s.SessionID]; !ok || s.Timestamp.Before(t) {
			firstSeen[s.SessionID] = s.Timestamp
		}
	}

	profiles := make([]sessionProfile, 0, len(firstSeen))
	for id, group := range agg.GroupBySession(samples) {
		session := lookupSession(index, id)
		avg := agg.WithInferredCPU(agg.Averages(group), session.DeviceType, session.Platform)
		profiles = append(profiles, sessionProfile{
			session: session,
			first:   firstSeen[id],
			avg:     avg,
			score:   algo.ScoreAverages(avg),
		})
	}
	sort.Slice(profiles, func(i, j int) bool {
		if !profiles[i].first.Equal(profiles[j].first) {
			return profiles[i].first.Before(profiles[j].first)
		}
		return profiles[i].session.ID < profiles[j].session.ID
	})
	return profiles
}

// meanCPU averages measured or inferred CPU over the profiles that have one.
func meanCPU(profiles []sessionProfile) (float64, bool, bool) {
	var values []float64
	inferred := false
	for _, p := range profiles {
		if p.avg.Has(schema.CPUMetric) || p.avg.CpuInferred {
			values = append(values, p.avg.Cpu)
			inferred = inferred || p.avg.CpuInferred
		}
	}
	return algo.Mean(values), len(values) > 0, inferred
}

// combinedAverages merges sample-level averages with session-level CPU.
func combinedAverages(samples []schema.MetricSample, profiles []sessionProfile) schema.MetricAverages {
	avg := agg.Averages(samples)
	if cpu, ok, inferred := meanCPU(profiles); ok {
		avg.Cpu = cpu
		avg.CpuInferred = inferred && !avg.Has(schema.CPUMetric)
	}
	return avg
}

func buildRouteData(pattern string, samples []schema.MetricSample, profiles []sessionProfile) schema.RoutePerformanceData {
	avg := combinedAverages(samples, profiles)

	devices := make(map[string]struct{})
	var dist schema.DistributionBuckets
	series := schema.RouteSeries{Fps: []float64{}, Memory: []float64{}, Cpu: []float64{}}
	scores := make([]float64, 0, len(profiles))
	for _, p := range profiles {
		devices[deviceKey(p.session)] = struct{}{}
		algo.AddToDistribution(&dist, p.score)
		scores = append(scores, p.score)
		if p.avg.Has(schema.FpsMetric) {
			series.Fps = append(series.Fps, p.avg.Fps)
		}
		if p.avg.Has(schema.MemoryMetric) {
			series.Memory = append(series.Memory, p.avg.Memory)
		}
		if p.avg.Has(schema.CPUMetric) || p.avg.CpuInferred {
			series.Cpu = append(series.Cpu, p.avg.Cpu)
		}
	}

	return schema.RoutePerformanceData{
		RoutePattern:      pattern,
		TotalSessions:     len(profiles),
		UniqueDevices:     len(devices),
		AvgFps:            algo.Round2(avg.Fps),
		HasFps:            avg.Has(schema.FpsMetric),
		AvgMemory:         algo.Round2(avg.Memory),
		AvgCpu:            algo.Round2(avg.Cpu),
		AvgScreenDuration: algo.Round2(avg.ScreenTime),
		AvgLoadTime:       algo.Round2(avg.LoadTime),
		Distribution:      dist,
		PerformanceScore:  algo.Round2(algo.ScoreAverages(avg)),
		RiskLevel:         ClassifyRisk(schema.RouteRiskThresholds, avg, len(profiles)),
		PerformanceTrend:  ScoreTrend(scores),
		Series:            series,
	}
}

// deviceKey identifies the physical device of a session.
func deviceKey(s schema.Session) string {
	if s.DeviceID != "" {
		return s.DeviceID
	}
	return s.ID
}

// ClassifyRisk applies a threshold table to averages. A missing fps signal is
// treated as the target frame rate, so a route without fps telemetry can only be
// flagged by memory or session count. Results carry HasFps to mark that case.
func ClassifyRisk(t schema.RiskThresholds, avg schema.MetricAverages, sessions int) schema.RiskLevel {
	fps := avg.Fps
	if !avg.Has(schema.FpsMetric) {
		fps = algo.TargetFps
	}
	return t.Classify(fps, avg.Memory, sessions)
}

// SessionRisk classifies a single session's averages.
func SessionRisk(avg schema.MetricAverages) schema.RiskLevel {
	return ClassifyRisk(schema.SessionRiskThresholds, avg, 0)
}

// ScoreTrend compares the first and second halves of chronological scores.
// Fewer than four scores are stable by default.
func ScoreTrend(scores []float64) schema.PerformanceTrend {
	if len(scores) < trendMinSessions {
		return schema.TrendStable
	}
	half := len(scores) / 2
	delta := algo.Mean(scores[half:]) - algo.Mean(scores[:half])
	switch {
	case delta > trendDelta:
		return schema.TrendImproving
	case delta < -trendDelta:
		return schema.TrendDegrading
	default:
		return schema.TrendStable
	}
}

// appAverages computes the app-wide averages across every sample.
func appAverages(samples []schema.MetricSample, index map[string]schema.Session) schema.AppAverages {
	avg := combinedAverages(samples, profileSessions(samples, index))
	return schema.AppAverages{
		Fps:              algo.Round2(avg.Fps),
		Memory:           algo.Round2(avg.Memory),
		Cpu:              algo.Round2(avg.Cpu),
		ScreenDuration:   algo.Round2(avg.ScreenTime),
		LoadTime:         algo.Round2(avg.LoadTime),
		PerformanceScore: algo.Round2(algo.ScoreAverages(avg)),
	}
}

// summarizeRoutes builds the triage lists from routes ranked best first.
func summarizeRoutes(ranked []schema.RoutePerformanceData, totalSessions, topN int) schema.RouteSummary {
	if topN <= 0 {
		topN = 5
	}
	summary := schema.RouteSummary{
		TotalRoutes:               len(ranked),
		TotalSessions:             totalSessions,
		BestPerformingRoutes:      []string{},
		WorstPerformingRoutes:     []string{},
		RoutesWithHighMemoryUsage: []string{},
		RoutesWithLowFps:          []string{},
		HighRiskRoutes:            []string{},
	}
	for i, r := range ranked {
		if i < topN {
			summary.BestPerformingRoutes = append(summary.BestPerformingRoutes, r.RoutePattern)
		}
		if r.AvgMemory > schema.RouteRiskThresholds.MediumMemoryAbove {
			summary.RoutesWithHighMemoryUsage = append(summary.RoutesWithHighMemoryUsage, r.RoutePattern)
		}
		if len(r.Series.Fps) > 0 && r.AvgFps < schema.RouteRiskThresholds.MediumFpsBelow {
			summary.RoutesWithLowFps = append(summary.RoutesWithLowFps, r.RoutePattern)
		}
		if r.RiskLevel == schema.HighRisk {
			summary.HighRiskRoutes = append(summary.HighRiskRoutes, r.RoutePattern)
		}
	}
	for i := len(ranked) - 1; i >= 0 && len(summary.WorstPerformingRoutes) < topN; i-- {
		summary.WorstPerformingRoutes = append(summary.WorstPerformingRoutes, ranked[i].RoutePattern)
	}
	return summary
}

// AnalyzeDevices breaks performance down by device type and platform.
// Sessions without samples count towards totals but not averages.
func AnalyzeDevices(sessions []schema.Session, samples []schema.MetricSample) []schema.DeviceBreakdown {
	if len(sessions) == 0 {
		return []schema.DeviceBreakdown{}
	}
	bySession := agg.GroupBySession(samples)

	type group struct {
		device   agg.Device
		sessions int
		devices  map[string]struct{}
		profiles []sessionProfile
		acc      []schema.MetricSample
	}
	groups := make(map[agg.Device]*group)
	for _, s := range sessions {
		d := agg.Device{Type: s.DeviceType, Platform: agg.PlatformOf(s.DeviceType, s.Platform)}
		g, ok := groups[d]
		if !ok {
			g = &group{device: d, devices: make(map[string]struct{})}
			groups[d] = g
		}
		g.sessions++
		g.devices[deviceKey(s)] = struct{}{}
		if own := bySession[s.ID]; len(own) > 0 {
			avg := agg.WithInferredCPU(agg.Averages(own), s.DeviceType, s.Platform)
			g.profiles = append(g.profiles, sessionProfile{session: s, avg: avg, score: algo.ScoreAverages(avg)})
			g.acc = append(g.acc, own...)
		}
	}

	out := make([]schema.DeviceBreakdown, 0, len(groups))
	for _, g := range groups {
		avg := combinedAverages(g.acc, g.profiles)
		highRisk := 0
		for _, p := range g.profiles {
			if SessionRisk(p.avg) == schema.HighRisk {
				highRisk++
			}
		}
		out = append(out, schema.DeviceBreakdown{
			DeviceType:       g.device.Type,
			Platform:         g.device.Platform,
			TotalSessions:    g.sessions,
			UniqueDevices:    len(g.devices),
			AvgFps:           algo.Round2(avg.Fps),
			HasFps:           avg.Has(schema.FpsMetric),
			AvgMemory:        algo.Round2(avg.Memory),
			AvgCpu:           algo.Round2(avg.Cpu),
			AvgLoadTime:      algo.Round2(avg.LoadTime),
			PerformanceScore: algo.Round2(algo.ScoreAverages(avg)),
			RiskLevel:        ClassifyRisk(schema.DeviceRiskThresholds, avg, g.sessions),
			HighRiskSessions: highRisk,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSessions != out[j].TotalSessions {
			return out[i].TotalSessions > out[j].TotalSessions
		}
		if out[i].DeviceType != out[j].DeviceType {
			return out[i].DeviceType < out[j].DeviceType
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}
