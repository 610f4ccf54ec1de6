package core

import (
	"time"

	"github.com/huangsam/perfscope/schema"
)

// t0 anchors every fixture timestamp.
var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// at returns t0 plus the given number of seconds.
func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func ptr[T any](v T) *T {
	return &v
}

func newSession(id, user string, start time.Time, end *time.Time) schema.Session {
	return schema.Session{
		ID:              id,
		AnonymousUserID: user,
		DeviceID:        "dev-" + id,
		DeviceType:      "iPhone 15",
		Platform:        "ios",
		AppVersion:      "1.0.0",
		SessionStart:    start,
		SessionEnd:      end,
	}
}

func newSample(sessionID string, ts time.Time, metric schema.MetricType, value float64, route string) schema.MetricSample {
	return schema.MetricSample{
		SessionID:  sessionID,
		Timestamp:  ts,
		MetricType: metric,
		Value:      value,
		Context:    schema.MetricContext{Route: route},
	}
}

// twoRouteDataset has two sessions that both visit a smooth /home and a slow,
// memory hungry /game.
func twoRouteDataset() ([]schema.Session, []schema.MetricSample) {
	sessions := []schema.Session{
		newSession("s1", "user1", at(0), ptr(at(600))),
		newSession("s2", "user2", at(0), ptr(at(600))),
	}
	var samples []schema.MetricSample
	for _, id := range []string{"s1", "s2"} {
		samples = append(samples,
			newSample(id, at(0), schema.FpsMetric, 60, "/home"),
			newSample(id, at(1), schema.MemoryMetric, 200, "/home"),
			newSample(id, at(20), schema.FpsMetric, 20, "/game"),
			newSample(id, at(21), schema.MemoryMetric, 900, "/game"),
		)
	}
	return sessions, samples
}

func routeByPattern(routes []schema.RoutePerformanceData, pattern string) (schema.RoutePerformanceData, bool) {
	for _, r := range routes {
		if r.RoutePattern == pattern {
			return r, true
		}
	}
	return schema.RoutePerformanceData{}, false
}
