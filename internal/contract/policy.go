package contract

import (
	"fmt"
	"time"
)

// JourneyPolicy controls journey reconstruction and completion classification.
// The completion cutoffs are product policy, not derived values.
type JourneyPolicy struct {
	Window               time.Duration
	CompletedMinRoutes   int
	CompletedMinDuration time.Duration
	AbandonedMaxRoutes   int
	AbandonedMaxDuration time.Duration
	CompletionBonus      float64
}

// BottleneckPolicy controls bottleneck detection inside a journey.
type BottleneckPolicy struct {
	FpsDropRatio  float64       // relative fps drop between consecutive points
	MemorySpikeMB float64       // absolute memory level that counts as a spike
	MemoryRiseMB  float64       // rise that counts when already above the spike level
	SlowVisit     time.Duration // single visit duration that counts as slow
}

// CorrelationPolicy controls pairwise route correlation.
type CorrelationPolicy struct {
	MinStrength float64
	MinSessions int
	Limit       int
}

// RegressionPolicy controls baseline-vs-recent regression detection.
type RegressionPolicy struct {
	RecentWindow      time.Duration
	BaselineWindow    time.Duration // measured back from now; baseline is [now-Baseline, now-Recent)
	Threshold         float64
	CriticalThreshold float64
	MinSamples        int
}

// SeasonalPolicy controls seasonal pattern detection.
type SeasonalPolicy struct {
	MinConfidence float64
	MinStrength   float64
	MinCycles     int
}

// PredictionPolicy controls short-horizon forecasting.
type PredictionPolicy struct {
	HorizonHours int
	Alpha        float64
	Damping      float64
	MinPoints    int
	ZThreshold   float64 // anomaly cutoff on hourly means
}

// WarningPolicy controls early-warning generation.
type WarningPolicy struct {
	ScoreFloor              float64
	CriticalScoreFloor      float64
	MinPredictionConfidence float64
	MinAlertConfidence      float64
	SeasonalLookahead       time.Duration
	MemorySpikeMB           float64
	MemoryIncreaseRatio     float64
	FpsFloor                float64
	FpsDropRatio            float64
	MaxAlerts               int
}

// AnalysisPolicy bundles every tunable threshold of the analyzers.
type AnalysisPolicy struct {
	Journey     JourneyPolicy
	Bottleneck  BottleneckPolicy
	Correlation CorrelationPolicy
	Regression  RegressionPolicy
	Seasonal    SeasonalPolicy
	Prediction  PredictionPolicy
	Warning     WarningPolicy
	SummaryTopN int
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() AnalysisPolicy {
	return AnalysisPolicy{
		Journey: JourneyPolicy{
			Window:               time.Hour,
			CompletedMinRoutes:   3,
			CompletedMinDuration: 60 * time.Second,
			AbandonedMaxRoutes:   1,
			AbandonedMaxDuration: 10 * time.Second,
			CompletionBonus:      10,
		},
		Bottleneck: BottleneckPolicy{
			FpsDropRatio:  0.3,
			MemorySpikeMB: 400,
			MemoryRiseMB:  100,
			SlowVisit:     60 * time.Second,
		},
		Correlation: CorrelationPolicy{
			MinStrength: 0.3,
			MinSessions: 2,
			Limit:       50,
		},
		Regression: RegressionPolicy{
			RecentWindow:      6 * time.Hour,
			BaselineWindow:    24 * time.Hour,
			Threshold:         0.2,
			CriticalThreshold: 0.5,
			MinSamples:        3,
		},
		Seasonal: SeasonalPolicy{
			MinConfidence: 0.7,
			MinStrength:   0.3,
			MinCycles:     3,
		},
		Prediction: PredictionPolicy{
			HorizonHours: 24,
			Alpha:        0.3,
			Damping:      0.5,
			MinPoints:    3,
			ZThreshold:   3,
		},
		Warning: WarningPolicy{
			ScoreFloor:              60,
			CriticalScoreFloor:      50,
			MinPredictionConfidence: 0.6,
			MinAlertConfidence:      0.6,
			SeasonalLookahead:       48 * time.Hour,
			MemorySpikeMB:           500,
			MemoryIncreaseRatio:     1.2,
			FpsFloor:                45,
			FpsDropRatio:            0.85,
			MaxAlerts:               10,
		},
		SummaryTopN: 5,
	}
}

// PolicyRawInput holds policy overrides from the YAML config file.
// Use pointers so that only provided keys override the defaults.
type PolicyRawInput struct {
	CompletedMinRoutes    *int           `mapstructure:"completed_min_routes"`
	CompletedMinDuration  *time.Duration `mapstructure:"completed_min_duration"`
	AbandonedMaxRoutes    *int           `mapstructure:"abandoned_max_routes"`
	AbandonedMaxDuration  *time.Duration `mapstructure:"abandoned_max_duration"`
	FpsDropRatio          *float64       `mapstructure:"fps_drop_ratio"`
	MemorySpikeMB         *float64       `mapstructure:"memory_spike_mb"`
	SlowVisit             *time.Duration `mapstructure:"slow_visit"`
	MinCorrelation        *float64       `mapstructure:"min_correlation"`
	RegressionThreshold   *float64       `mapstructure:"regression_threshold"`
	RegressionCritical    *float64       `mapstructure:"regression_critical"`
	MinSeasonalConfidence *float64       `mapstructure:"min_seasonal_confidence"`
	MinSeasonalStrength   *float64       `mapstructure:"min_seasonal_strength"`
	SmoothingAlpha        *float64       `mapstructure:"smoothing_alpha"`
	ScoreFloor            *float64       `mapstructure:"score_floor"`
	CriticalScoreFloor    *float64       `mapstructure:"critical_score_floor"`
	MinAlertConfidence    *float64       `mapstructure:"min_alert_confidence"`
	MaxAlerts             *int           `mapstructure:"max_alerts"`
}

// processPolicy applies raw overrides on top of the defaults.
func processPolicy(cfg *Config, input *ConfigRawInput) error {
	p := DefaultPolicy()
	raw := input.Policy

	ratio := func(name string, v *float64, dst *float64) error {
		if v == nil {
			return nil
		}
		if *v < 0 || *v > 1 {
			return fmt.Errorf("policy %s must be between 0 and 1 (received %.2f)", name, *v)
		}
		*dst = *v
		return nil
	}
	score := func(name string, v *float64, dst *float64) error {
		if v == nil {
			return nil
		}
		if *v < 0 || *v > 100 {
			return fmt.Errorf("policy %s must be between 0 and 100 (received %.2f)", name, *v)
		}
		*dst = *v
		return nil
	}

	for _, apply := range []func() error{
		func() error { return ratio("fps_drop_ratio", raw.FpsDropRatio, &p.Bottleneck.FpsDropRatio) },
		func() error { return ratio("min_correlation", raw.MinCorrelation, &p.Correlation.MinStrength) },
		func() error {
			return ratio("min_seasonal_confidence", raw.MinSeasonalConfidence, &p.Seasonal.MinConfidence)
		},
		func() error { return ratio("min_seasonal_strength", raw.MinSeasonalStrength, &p.Seasonal.MinStrength) },
		func() error { return ratio("smoothing_alpha", raw.SmoothingAlpha, &p.Prediction.Alpha) },
		func() error {
			return ratio("min_alert_confidence", raw.MinAlertConfidence, &p.Warning.MinAlertConfidence)
		},
		func() error { return score("score_floor", raw.ScoreFloor, &p.Warning.ScoreFloor) },
		func() error {
			return score("critical_score_floor", raw.CriticalScoreFloor, &p.Warning.CriticalScoreFloor)
		},
	} {
		if err := apply(); err != nil {
			return err
		}
	}

	if raw.RegressionThreshold != nil {
		if *raw.RegressionThreshold <= 0 {
			return fmt.Errorf("policy regression_threshold must be positive (received %.2f)", *raw.RegressionThreshold)
		}
		p.Regression.Threshold = *raw.RegressionThreshold
	}
	if raw.RegressionCritical != nil {
		p.Regression.CriticalThreshold = *raw.RegressionCritical
	}
	if p.Regression.CriticalThreshold < p.Regression.Threshold {
		return fmt.Errorf("policy regression_critical (%.2f) cannot be below regression_threshold (%.2f)",
			p.Regression.CriticalThreshold, p.Regression.Threshold)
	}

	if raw.CompletedMinRoutes != nil && *raw.CompletedMinRoutes > 0 {
		p.Journey.CompletedMinRoutes = *raw.CompletedMinRoutes
	}
	if raw.CompletedMinDuration != nil && *raw.CompletedMinDuration > 0 {
		p.Journey.CompletedMinDuration = *raw.CompletedMinDuration
	}
	if raw.AbandonedMaxRoutes != nil && *raw.AbandonedMaxRoutes >= 0 {
		p.Journey.AbandonedMaxRoutes = *raw.AbandonedMaxRoutes
	}
	if raw.AbandonedMaxDuration != nil && *raw.AbandonedMaxDuration >= 0 {
		p.Journey.AbandonedMaxDuration = *raw.AbandonedMaxDuration
	}
	if raw.MemorySpikeMB != nil && *raw.MemorySpikeMB > 0 {
		p.Bottleneck.MemorySpikeMB = *raw.MemorySpikeMB
	}
	if raw.SlowVisit != nil && *raw.SlowVisit > 0 {
		p.Bottleneck.SlowVisit = *raw.SlowVisit
	}
	if raw.MaxAlerts != nil && *raw.MaxAlerts > 0 {
		p.Warning.MaxAlerts = *raw.MaxAlerts
	}

	if p.Journey.CompletedMinRoutes <= p.Journey.AbandonedMaxRoutes {
		return fmt.Errorf("policy completed_min_routes (%d) must exceed abandoned_max_routes (%d)",
			p.Journey.CompletedMinRoutes, p.Journey.AbandonedMaxRoutes)
	}

	p.Journey.Window = cfg.JourneyWindow
	p.Prediction.HorizonHours = cfg.HorizonHours
	cfg.Policy = p
	return nil
}
