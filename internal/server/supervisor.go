package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huangsam/perfscope/core"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/live"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
	"github.com/thejerf/suture/v4"
)

// Checker runs the alert threshold check. Passes are serialized so that the
// ticker and on-demand API calls never evaluate the same window concurrently.
type Checker struct {
	mu      sync.Mutex
	mgr     contract.StoreManager
	metrics *Metrics
	now     func() time.Time
}

// NewChecker creates a checker over the manager's alert store and data source.
func NewChecker(mgr contract.StoreManager, metrics *Metrics) *Checker {
	return &Checker{mgr: mgr, metrics: metrics, now: time.Now}
}

// Check runs one threshold-check pass.
func (c *Checker) Check(ctx context.Context) (schema.CheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	alerts, src := c.mgr.GetAlertStore(), c.mgr.GetDataSource()
	if alerts == nil || src == nil {
		return schema.CheckResult{}, fmt.Errorf("threshold check: %w", contract.ErrStoreDisabled)
	}
	result, err := core.CheckAlertThresholds(ctx, alerts, src, c.now().UTC())
	if c.metrics != nil {
		if err != nil {
			c.metrics.alertChecks.WithLabelValues("error").Inc()
		} else {
			c.metrics.alertChecks.WithLabelValues("ok").Inc()
			c.metrics.alertsTriggered.Add(float64(len(result.Triggered)))
		}
	}
	return result, err
}

// checkService runs the checker on a fixed interval.
type checkService struct {
	checker  *Checker
	interval time.Duration
}

func (s *checkService) String() string {
	return "threshold-check"
}

// Serve checks until ctx is done. Failed passes are logged and retried on the
// next tick.
func (s *checkService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.checker.Check(ctx)
			if err != nil {
				logging.Err(err).Msg("threshold check failed")
				continue
			}
			logging.Debug().
				Int("evaluated", result.Evaluated).
				Int("violations", result.Violations).
				Int("triggered", len(result.Triggered)).
				Msg("threshold check finished")
		}
	}
}

// logEvent forwards supervisor events to the structured logger.
func logEvent(e suture.Event) {
	logging.Warn().Fields(e.Map()).Msg(e.String())
}

// NewSupervisor builds the service tree of the serve command: the HTTP listener,
// the live hub and poller, and the threshold-check worker.
func (s *Server) NewSupervisor() *suture.Supervisor {
	spec := suture.Spec{
		EventHook:        logEvent,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	}
	root := suture.New("perfscope", spec)
	root.Add(&httpService{addr: s.cfg.ListenAddr, handler: s.Handler()})
	root.Add(s.hub)

	if src := s.mgr.GetDataSource(); src != nil {
		root.Add(live.NewPoller(src, s.buf, s.hub, s.cfg.LivePoll))
	}
	if s.cfg.CheckInterval > 0 && s.mgr.GetAlertStore() != nil {
		root.Add(&checkService{checker: s.checker, interval: s.cfg.CheckInterval})
	}
	return root
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	err := s.NewSupervisor().Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
