package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/perfscope/core/agg"
	"github.com/huangsam/perfscope/core/algo"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
)

// CheckAlertThresholds evaluates every enabled alert config against the mean of its
// metric over [now-window, now]. A violation opens a new instance unless the config
// already has an open one. Configs without samples in their window are skipped.
func CheckAlertThresholds(ctx context.Context, alerts contract.AlertStore, src contract.DataSource, now time.Time) (schema.CheckResult, error) {
	result := schema.CheckResult{CheckedAt: now, Triggered: []schema.AlertInstance{}}

	configs, err := alerts.ListConfigs(ctx, true)
	if err != nil {
		return result, fmt.Errorf("list alert configs: %w", err)
	}

	norm := agg.DefaultNormalizer()
	for _, c := range configs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Evaluated++

		window := time.Duration(c.WindowMinutes) * time.Minute
		samples, err := src.ListMetrics(ctx, nil, schema.MetricFilter{
			Start: now.Add(-window),
			End:   now,
			Types: []schema.MetricType{c.MetricType},
		})
		if err != nil {
			return result, contract.NewUpstreamError("list metrics", err)
		}

		values := make([]float64, 0, len(samples))
		for _, s := range samples {
			if c.RoutePattern != "" && norm.NormalizeSample(s) != c.RoutePattern && s.RouteKey() != c.RoutePattern {
				continue
			}
			values = append(values, s.Value)
		}
		if len(values) == 0 {
			result.Skipped++
			continue
		}

		mean := algo.Round2(algo.Mean(values))
		if !c.Violated(mean) {
			continue
		}
		result.Violations++

		inst, created, err := alerts.CreateInstanceIfNoneOpen(ctx, schema.AlertInstance{
			ConfigID:       c.ID,
			Status:         schema.AlertActive,
			TriggeredValue: mean,
			Threshold:      c.Threshold,
			Message:        alertMessage(c, mean),
			TriggeredAt:    now,
		})
		if err != nil {
			return result, fmt.Errorf("open alert for config %d: %w", c.ID, err)
		}
		if created {
			logging.Info().Int64("config", c.ID).Int64("instance", inst.ID).Float64("value", mean).Msg("alert triggered")
			result.Triggered = append(result.Triggered, inst)
		}
	}
	return result, nil
}

func alertMessage(c schema.AlertConfig, mean float64) string {
	scope := "all routes"
	if c.RoutePattern != "" {
		scope = c.RoutePattern
	}
	return fmt.Sprintf("%s: %s averaged %.2f over %dm on %s (%s %.2f)", c.Name, c.MetricType, mean, c.WindowMinutes, scope, c.Condition, c.Threshold)
}

// TransitionAlert moves an alert instance to acknowledged or resolved.
func TransitionAlert(ctx context.Context, alerts contract.AlertStore, id int64, next schema.AlertStatus, now time.Time) (schema.AlertInstance, error) {
	if next != schema.AlertAcknowledged && next != schema.AlertResolved {
		return schema.AlertInstance{}, fmt.Errorf("%w: cannot move to %q", contract.ErrInvalidTransition, next)
	}
	return alerts.TransitionInstance(ctx, id, next, now)
}
