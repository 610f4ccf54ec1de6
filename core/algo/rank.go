package algo

import (
	"sort"

	"github.com/huangsam/perfscope/schema"
)

// RankRoutes sorts routes by performance score in descending order and returns
// the top 'limit' routes. Ties are broken by route pattern for stable output.
func RankRoutes(routes []schema.RoutePerformanceData, limit int) []schema.RoutePerformanceData {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].PerformanceScore != routes[j].PerformanceScore {
			return routes[i].PerformanceScore > routes[j].PerformanceScore
		}
		return routes[i].RoutePattern < routes[j].RoutePattern
	})
	if limit > 0 && len(routes) > limit {
		return routes[:limit]
	}
	return routes
}

// RankCorrelations sorts correlations by strength in descending order and returns
// the top 'limit' entries.
func RankCorrelations(items []schema.RouteCorrelationAnalysis, limit int) []schema.RouteCorrelationAnalysis {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CorrelationStrength > items[j].CorrelationStrength
	})
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// RankBottlenecks sorts bottlenecks by impact score in descending order.
func RankBottlenecks(items []schema.BottleneckPoint) []schema.BottleneckPoint {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ImpactScore > items[j].ImpactScore
	})
	return items
}

// RankWarnings sorts warnings by severity then confidence and returns the top 'limit'.
func RankWarnings(items []schema.EarlyWarningAlert, limit int) []schema.EarlyWarningAlert {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Severity.Rank(), items[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].Confidence > items[j].Confidence
	})
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
