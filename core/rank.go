package core

import (
	"sort"

	"github.com/huangsam/perfscope/schema"
)

// rankJourneys sorts journeys by score in ascending order so the worst
// experiences come first. Ties keep their chronological order.
func rankJourneys(journeys []schema.UserJourney) []schema.UserJourney {
	sort.SliceStable(journeys, func(i, j int) bool {
		return journeys[i].JourneyScore < journeys[j].JourneyScore
	})
	return journeys
}

// countJourneyRoutes returns the number of distinct routes visited across journeys.
func countJourneyRoutes(journeys []schema.UserJourney) int {
	seen := make(map[string]struct{})
	for _, j := range journeys {
		for _, v := range j.RouteSequence {
			seen[v.RoutePattern] = struct{}{}
		}
	}
	return len(seen)
}
