package algo

import (
	"github.com/huangsam/perfscope/schema"
)

// TargetFps is the frame rate treated as a perfect score.
const TargetFps = 60.0

// Score weights, shared by every scoring call site.
const (
	weightFps      = 0.3
	weightMemory   = 0.25
	weightCpu      = 0.25
	weightLoadTime = 0.2
)

// Normalization ceilings.
const (
	memoryCeilingMB = 1000.0 // memory at or above this scores zero
	loadCeilingMs   = 5000.0 // load time at or above this scores zero
)

// ScoreComponents holds the normalized [0,100] sub-scores of a performance score.
type ScoreComponents struct {
	Fps      float64 `json:"fps"`
	Memory   float64 `json:"memory"`
	Cpu      float64 `json:"cpu"`
	LoadTime float64 `json:"load_time"`
}

// Components normalizes raw averages into sub-scores.
func Components(fps, memory, cpu, loadTime float64) ScoreComponents {
	return ScoreComponents{
		Fps:      Clamp(fps/TargetFps*100, 0, 100),
		Memory:   Clamp(100-memory/memoryCeilingMB*100, 0, 100),
		Cpu:      Clamp(100-cpu, 0, 100),
		LoadTime: Clamp(100-loadTime/loadCeilingMs*100, 0, 100),
	}
}

// PerformanceScore blends fps, memory, cpu and load time into a score in [0,100].
func PerformanceScore(fps, memory, cpu, loadTime float64) float64 {
	c := Components(fps, memory, cpu, loadTime)
	raw := weightFps*c.Fps + weightMemory*c.Memory + weightCpu*c.Cpu + weightLoadTime*c.LoadTime
	return Clamp(raw, 0, 100)
}

// ScoreAverages scores a set of metric averages. Weights are renormalized over the
// metric types that have samples, so with every type present it equals PerformanceScore.
// Averages with no scorable type score zero.
func ScoreAverages(avg schema.MetricAverages) float64 {
	c := Components(avg.Fps, avg.Memory, avg.Cpu, avg.LoadTime)
	var total, weights float64
	if avg.Has(schema.FpsMetric) {
		total += weightFps * c.Fps
		weights += weightFps
	}
	if avg.Has(schema.MemoryMetric) {
		total += weightMemory * c.Memory
		weights += weightMemory
	}
	if avg.Has(schema.CPUMetric) || avg.CpuInferred {
		total += weightCpu * c.Cpu
		weights += weightCpu
	}
	if avg.Has(schema.NavigationTimeMetric) {
		total += weightLoadTime * c.LoadTime
		weights += weightLoadTime
	}
	if weights == 0 {
		return 0
	}
	return Clamp(total/weights, 0, 100)
}

// Distribution bands.
const (
	excellentScore = 80.0
	goodScore      = 60.0
	fairScore      = 40.0
)

// AddToDistribution counts a score into its band.
func AddToDistribution(d *schema.DistributionBuckets, score float64) {
	switch {
	case score >= excellentScore:
		d.Excellent++
	case score >= goodScore:
		d.Good++
	case score >= fairScore:
		d.Fair++
	default:
		d.Poor++
	}
}
