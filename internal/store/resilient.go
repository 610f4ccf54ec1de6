package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker around the data source.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // requests allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open duration before probing again
	MinRequests  uint32        // requests needed before the failure ratio counts
	FailureRatio float64
}

// DefaultBreakerConfig opens after 60% failures over at least 5 requests.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "data-source",
		MaxRequests:  2,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// ResilientSource wraps a DataSource with a circuit breaker so that a failing
// database is not hammered by every report, check and poll.
type ResilientSource struct {
	src contract.DataSource
	cb  *gobreaker.CircuitBreaker[any]
}

var _ contract.DataSource = &ResilientSource{} // Compile-time check

// NewResilientSource wraps src.
func NewResilientSource(src contract.DataSource, cfg BreakerConfig) *ResilientSource {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
		// Cancellation is the caller's doing, not a sign of an unhealthy source
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return &ResilientSource{src: src, cb: cb}
}

// State returns the breaker state: closed, half-open or open.
func (r *ResilientSource) State() string {
	return r.cb.State().String()
}

// ListSessions implements contract.DataSource.
func (r *ResilientSource) ListSessions(ctx context.Context, filter schema.SessionFilter) ([]schema.Session, error) {
	return execute[[]schema.Session](r.cb, func() (any, error) {
		return r.src.ListSessions(ctx, filter)
	})
}

// ListMetrics implements contract.DataSource.
func (r *ResilientSource) ListMetrics(ctx context.Context, sessionIDs []string, filter schema.MetricFilter) ([]schema.MetricSample, error) {
	return execute[[]schema.MetricSample](r.cb, func() (any, error) {
		return r.src.ListMetrics(ctx, sessionIDs, filter)
	})
}

func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (any, error)) (T, error) {
	var zero T
	result, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, contract.NewUpstreamError("circuit "+cb.Name(), err)
		}
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}
