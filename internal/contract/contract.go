// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/perfscope/schema"
)

// DataSource supplies the raw rows every analysis reads.
// Implementations must return rows ordered ascending by timestamp.
type DataSource interface {
	// ListSessions returns sessions matching the filter, ordered by session start.
	ListSessions(ctx context.Context, filter schema.SessionFilter) ([]schema.Session, error)

	// ListMetrics returns samples of the given sessions, ordered by timestamp.
	// An empty sessionIDs slice lists samples across all sessions.
	ListMetrics(ctx context.Context, sessionIDs []string, filter schema.MetricFilter) ([]schema.MetricSample, error)
}

// MetricWriter persists raw rows. Only the ingest command and tests write rows;
// analyses never do.
type MetricWriter interface {
	InsertSessions(ctx context.Context, sessions []schema.Session) error
	InsertMetrics(ctx context.Context, samples []schema.MetricSample) error
}

// AlertStore persists alert configs and their triggered instances.
type AlertStore interface {
	CreateConfig(ctx context.Context, cfg schema.AlertConfig) (schema.AlertConfig, error)
	GetConfig(ctx context.Context, id int64) (schema.AlertConfig, error)
	ListConfigs(ctx context.Context, enabledOnly bool) ([]schema.AlertConfig, error)
	UpdateConfig(ctx context.Context, cfg schema.AlertConfig) (schema.AlertConfig, error)
	DeleteConfig(ctx context.Context, id int64) error

	// CreateInstanceIfNoneOpen inserts the instance unless its config already has an
	// active or acknowledged instance. It reports whether a row was inserted.
	CreateInstanceIfNoneOpen(ctx context.Context, inst schema.AlertInstance) (schema.AlertInstance, bool, error)

	GetInstance(ctx context.Context, id int64) (schema.AlertInstance, error)

	// ListInstances lists instances, newest first. An empty status lists all.
	ListInstances(ctx context.Context, status schema.AlertStatus, limit int) ([]schema.AlertInstance, error)

	// TransitionInstance moves an instance along active -> acknowledged -> resolved.
	TransitionInstance(ctx context.Context, id int64, next schema.AlertStatus, at time.Time) (schema.AlertInstance, error)
}

// AnalysisStore defines the interface for tracking report runs.
type AnalysisStore interface {
	// BeginAnalysis creates a new analysis run and returns its unique ID
	BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error)

	// EndAnalysis updates the analysis run with completion data
	EndAnalysis(analysisID int64, endTime time.Time, stats RunStats) error

	// ListRuns returns the most recent runs, newest first
	ListRuns(limit int) ([]schema.AnalysisRunRecord, error)

	// GetStatus returns status information about the store
	GetStatus() (schema.StoreStatus, error)

	// Close closes the underlying connection
	Close() error
}

// RunStats are the volumes recorded when a run completes.
type RunStats struct {
	Sessions int
	Metrics  int
	Routes   int
}

// KVStore is a key-value store with per-key expiry. It backs rate limiting and
// live-connection bookkeeping so that several processes can share the state.
type KVStore interface {
	// Get returns the value and whether the key exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the value. A zero ttl keeps the key until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Incr atomically increments a counter. The ttl applies only when the key is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Decr atomically decrements a counter and keeps its expiry. A missing key
	// counts from zero, so the result can be negative.
	Decr(ctx context.Context, key string) (int64, error)

	Delete(ctx context.Context, key string) error
	Close() error
}

// StoreManager hands out the persistence collaborators.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetDataSource() DataSource
	GetMetricWriter() MetricWriter
	GetAlertStore() AlertStore
	GetAnalysisStore() AnalysisStore
	GetKVStore() KVStore
}
