package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func seedSessions(t *testing.T, s *SQLStore) {
	t.Helper()
	sessions := []schema.Session{
		{ID: "s1", AnonymousUserID: "u1", DeviceType: "phone", Platform: "iOS", AppVersion: "1.0.0", SessionStart: t0, SessionEnd: ptrTime(t0.Add(time.Hour))},
		{ID: "s2", AnonymousUserID: "u2", DeviceType: "tablet", Platform: "android", AppVersion: "1.1.0", SessionStart: t0.Add(2 * time.Hour)},
		{ID: "old", AnonymousUserID: "u1", Platform: "ios", SessionStart: t0.Add(-48 * time.Hour), SessionEnd: ptrTime(t0.Add(-47 * time.Hour))},
	}
	require.NoError(t, s.InsertSessions(context.Background(), sessions))
}

func TestNoneBackend(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(schema.NoneBackend, "")
	require.NoError(t, err)

	sessions, err := s.ListSessions(ctx, schema.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)

	id, err := s.BeginAnalysis(time.Now(), map[string]any{"limit": 10})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), id)
	assert.NoError(t, s.EndAnalysis(1, time.Now(), contract.RunStats{}))

	_, err = s.CreateConfig(ctx, schema.AlertConfig{})
	assert.ErrorIs(t, err, contract.ErrStoreDisabled)
	_, err = s.GetConfig(ctx, 1)
	assert.ErrorIs(t, err, contract.ErrNotFound)

	status, err := s.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, s.Close())
}

func TestUnsupportedBackend(t *testing.T) {
	_, err := NewStore("oracle", "")
	assert.Error(t, err)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSessions(t, s)

	tests := []struct {
		name     string
		filter   schema.SessionFilter
		expected []string
	}{
		{"all", schema.SessionFilter{}, []string{"old", "s1", "s2"}},
		{"window overlap", schema.SessionFilter{Start: t0.Add(30 * time.Minute), End: t0.Add(3 * time.Hour)}, []string{"s1", "s2"}},
		{"window before active session", schema.SessionFilter{Start: t0.Add(90 * time.Minute), End: t0.Add(3 * time.Hour)}, []string{"s2"}},
		{"platform case insensitive", schema.SessionFilter{Platform: "IOS"}, []string{"old", "s1"}},
		{"device", schema.SessionFilter{DeviceType: "tablet"}, []string{"s2"}},
		{"app version", schema.SessionFilter{AppVersion: "1.0.0"}, []string{"s1"}},
		{"user", schema.SessionFilter{UserID: "u1"}, []string{"old", "s1"}},
		{"limit", schema.SessionFilter{Limit: 1}, []string{"old"}},
		{"newest limit", schema.SessionFilter{Limit: 1, Newest: true}, []string{"s2"}},
		{"newest limit ascending", schema.SessionFilter{Limit: 2, Newest: true}, []string{"s1", "s2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := s.ListSessions(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(sessions))
			for _, sess := range sessions {
				ids = append(ids, sess.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestInsertSessionsUpsertsEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSessions(t, s)

	end := t0.Add(3 * time.Hour)
	require.NoError(t, s.InsertSessions(ctx, []schema.Session{{ID: "s2", SessionStart: t0.Add(2 * time.Hour), SessionEnd: &end}}))

	sessions, err := s.ListSessions(ctx, schema.SessionFilter{DeviceType: "tablet"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].SessionEnd)
	assert.True(t, end.Equal(*sessions[0].SessionEnd))
	assert.Equal(t, "u2", sessions[0].AnonymousUserID)
	assert.True(t, sessions[0].SessionStart.Equal(t0.Add(2*time.Hour)))
}

func TestListMetrics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSessions(t, s)

	samples := []schema.MetricSample{
		{SessionID: "s1", Timestamp: t0.Add(10 * time.Minute), MetricType: schema.FpsMetric, Value: 55, Context: schema.MetricContext{Route: "/game/42", Params: map[string]string{"id": "42"}}},
		{SessionID: "s1", Timestamp: t0.Add(5 * time.Minute), MetricType: schema.MemoryMetric, Value: 320.5, Context: schema.MetricContext{ScreenName: "Home"}},
		{SessionID: "s2", Timestamp: t0.Add(130 * time.Minute), MetricType: schema.FpsMetric, Value: 40, Context: schema.MetricContext{Route: "/home"}},
		{SessionID: "s1", Timestamp: t0.Add(time.Nanosecond), MetricType: schema.CPUMetric, Value: 12, Context: schema.MetricContext{Route: "/home"}},
	}
	require.NoError(t, s.InsertMetrics(ctx, samples))

	t.Run("ordered by timestamp", func(t *testing.T) {
		rows, err := s.ListMetrics(ctx, []string{"s1"}, schema.MetricFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, schema.CPUMetric, rows[0].MetricType)
		assert.True(t, rows[0].Timestamp.Equal(t0.Add(time.Nanosecond)))
		assert.Equal(t, schema.MemoryMetric, rows[1].MetricType)
		assert.Equal(t, "Home", rows[1].Context.ScreenName)
		assert.Equal(t, 320.5, rows[1].Value)
		assert.Equal(t, map[string]string{"id": "42"}, rows[2].Context.Params)
		assert.Nil(t, rows[1].Context.Params)
	})

	t.Run("all sessions with window", func(t *testing.T) {
		rows, err := s.ListMetrics(ctx, nil, schema.MetricFilter{Start: t0.Add(time.Minute), End: t0.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("types and route", func(t *testing.T) {
		rows, err := s.ListMetrics(ctx, nil, schema.MetricFilter{Types: []schema.MetricType{schema.FpsMetric}, Route: "/home"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "s2", rows[0].SessionID)

		rows, err = s.ListMetrics(ctx, nil, schema.MetricFilter{Route: "Home"})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("after and limit", func(t *testing.T) {
		all, err := s.ListMetrics(ctx, nil, schema.MetricFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)

		minID := all[0].ID
		for _, r := range all {
			minID = min(minID, r.ID)
		}

		rows, err := s.ListMetrics(ctx, nil, schema.MetricFilter{After: minID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
		for _, r := range rows {
			assert.Greater(t, r.ID, minID)
		}
	})

	t.Run("newest keeps latest rows", func(t *testing.T) {
		rows, err := s.ListMetrics(ctx, nil, schema.MetricFilter{Limit: 2, Newest: true})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.True(t, rows[0].Timestamp.Equal(t0.Add(10*time.Minute)))
		assert.True(t, rows[1].Timestamp.Equal(t0.Add(130*time.Minute)))
	})

	t.Run("by id", func(t *testing.T) {
		rows, err := s.ListMetrics(ctx, nil, schema.MetricFilter{ByID: true})
		require.NoError(t, err)
		require.Len(t, rows, 4)
		for i := 1; i < len(rows); i++ {
			assert.Greater(t, rows[i].ID, rows[i-1].ID)
		}
		// insertion order, not timestamp order
		assert.Equal(t, schema.FpsMetric, rows[0].MetricType)
		assert.Equal(t, schema.CPUMetric, rows[3].MetricType)
	})
}

func validConfig() schema.AlertConfig {
	return schema.AlertConfig{
		Name:          "low fps on game",
		MetricType:    schema.FpsMetric,
		Condition:     schema.ConditionBelow,
		Threshold:     30,
		RoutePattern:  "/game/:id",
		WindowMinutes: 15,
		Severity:      schema.SeverityHigh,
		Enabled:       true,
	}
}

func TestAlertConfigs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateConfig(ctx, schema.AlertConfig{Name: "bad"})
	require.Error(t, err)
	assert.True(t, contract.IsValidation(err))

	created, err := s.CreateConfig(ctx, validConfig())
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	disabled := validConfig()
	disabled.Name = "memory"
	disabled.MetricType = schema.MemoryMetric
	disabled.Condition = schema.ConditionAbove
	disabled.Enabled = false
	_, err = s.CreateConfig(ctx, disabled)
	require.NoError(t, err)

	got, err := s.GetConfig(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, schema.ConditionBelow, got.Condition)
	assert.True(t, got.Enabled)

	all, err := s.ListConfigs(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	enabled, err := s.ListConfigs(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, created.ID, enabled[0].ID)

	got.Threshold = 25
	updated, err := s.UpdateConfig(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Threshold)
	again, err := s.GetConfig(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, again.Threshold)

	missing := validConfig()
	missing.ID = 999
	_, err = s.UpdateConfig(ctx, missing)
	assert.ErrorIs(t, err, contract.ErrNotFound)

	_, err = s.GetConfig(ctx, 999)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	assert.ErrorIs(t, s.DeleteConfig(ctx, 999), contract.ErrNotFound)
}

func TestAlertInstanceLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cfg, err := s.CreateConfig(ctx, validConfig())
	require.NoError(t, err)

	inst := schema.AlertInstance{ConfigID: cfg.ID, Status: schema.AlertActive, TriggeredValue: 22.5, Threshold: 30, Message: "fps low", TriggeredAt: t0}
	first, created, err := s.CreateInstanceIfNoneOpen(ctx, inst)
	require.NoError(t, err)
	require.True(t, created)
	assert.Positive(t, first.ID)

	_, created, err = s.CreateInstanceIfNoneOpen(ctx, inst)
	require.NoError(t, err)
	assert.False(t, created, "config already has an open instance")

	acked, err := s.TransitionInstance(ctx, first.ID, schema.AlertAcknowledged, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, schema.AlertAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	_, created, err = s.CreateInstanceIfNoneOpen(ctx, inst)
	require.NoError(t, err)
	assert.False(t, created, "acknowledged instances still block")

	_, err = s.TransitionInstance(ctx, first.ID, schema.AlertActive, t0)
	assert.True(t, errors.Is(err, contract.ErrInvalidTransition))

	resolved, err := s.TransitionInstance(ctx, first.ID, schema.AlertResolved, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, schema.AlertResolved, resolved.Status)

	_, err = s.TransitionInstance(ctx, first.ID, schema.AlertAcknowledged, t0)
	assert.ErrorIs(t, err, contract.ErrInvalidTransition)

	inst.TriggeredAt = t0.Add(time.Hour)
	second, created, err := s.CreateInstanceIfNoneOpen(ctx, inst)
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := s.GetInstance(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.AlertResolved, stored.Status)
	require.NotNil(t, stored.AcknowledgedAt)
	require.NotNil(t, stored.ResolvedAt)
	assert.True(t, stored.ResolvedAt.Equal(t0.Add(2*time.Minute)))

	all, err := s.ListInstances(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	active, err := s.ListInstances(ctx, schema.AlertActive, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	_, _, err = s.CreateInstanceIfNoneOpen(ctx, schema.AlertInstance{ConfigID: 999, TriggeredAt: t0})
	assert.ErrorIs(t, err, contract.ErrNotFound)
	_, err = s.TransitionInstance(ctx, 999, schema.AlertResolved, t0)
	assert.ErrorIs(t, err, contract.ErrNotFound)

	require.NoError(t, s.DeleteConfig(ctx, cfg.ID))
	_, err = s.GetInstance(ctx, second.ID)
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestAnalysisRuns(t *testing.T) {
	s := newTestStore(t)
	seedSessions(t, s)
	require.NoError(t, s.InsertMetrics(context.Background(), []schema.MetricSample{
		{SessionID: "s1", Timestamp: t0, MetricType: schema.FpsMetric, Value: 60},
		{SessionID: "s1", Timestamp: t0.Add(time.Hour), MetricType: schema.FpsMetric, Value: 50},
	}))

	id, err := s.BeginAnalysis(t0, map[string]any{"limit": 25, "route": "/home"})
	require.NoError(t, err)
	require.Positive(t, id)
	require.NoError(t, s.EndAnalysis(id, t0.Add(1500*time.Millisecond), contract.RunStats{Sessions: 3, Metrics: 2, Routes: 1}))

	second, err := s.BeginAnalysis(t0.Add(time.Hour), nil)
	require.NoError(t, err)

	runs, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].AnalysisID)
	assert.Nil(t, runs[0].EndTime)

	done := runs[1]
	require.NotNil(t, done.RunDurationMs)
	assert.Equal(t, int32(1500), *done.RunDurationMs)
	assert.Equal(t, int32(3), done.TotalSessions)
	assert.Equal(t, int32(2), done.TotalMetrics)
	assert.Equal(t, int32(1), done.TotalRoutes)
	require.NotNil(t, done.ConfigParams)
	assert.Contains(t, *done.ConfigParams, `"route":"/home"`)

	assert.ErrorIs(t, s.EndAnalysis(999, t0, contract.RunStats{}), contract.ErrNotFound)

	status, err := s.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 3, status.TotalSessions)
	assert.Equal(t, 2, status.TotalMetrics)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, second, status.LastRunID)
	assert.True(t, status.OldestMetric.Equal(t0))
	assert.True(t, status.NewestMetric.Equal(t0.Add(time.Hour)))
	assert.Equal(t, int64(2), status.TableRowCounts[metricsTable])
	assert.Empty(t, status.MigrationSchema)

	var buf bytes.Buffer
	PrintStoreStatus(&buf, status)
	assert.Contains(t, buf.String(), "Metric Samples: 2")
	assert.Contains(t, buf.String(), "perfscope_sessions: 3 rows")
}

func TestMigrateStore(t *testing.T) {
	var buf bytes.Buffer
	err := MigrateStore(&buf, schema.NoneBackend, "", -1)
	require.Error(t, err)

	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	// Tables created on open are adopted by the first migration
	s, err := NewStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, MigrateStore(&buf, schema.SQLiteBackend, dbPath, -1))
	assert.Contains(t, buf.String(), "to version 1")

	buf.Reset()
	require.NoError(t, MigrateStore(&buf, schema.SQLiteBackend, dbPath, -1))
	assert.Contains(t, buf.String(), "No migration needed")

	s, err = NewStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	status, err := s.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "v1", status.MigrationSchema)
	require.NoError(t, s.Close())

	require.NoError(t, MigrateStore(&buf, schema.SQLiteBackend, dbPath, 0))
	require.NoError(t, MigrateStore(&buf, schema.SQLiteBackend, dbPath, 1))
}

func TestClearStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "clear.db")
	s, err := NewStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.NoError(t, ClearStore(schema.SQLiteBackend, dbPath, ""))
	assert.NoError(t, ClearStore(schema.SQLiteBackend, dbPath, ""), "missing file is fine")
	assert.Error(t, ClearStore(schema.SQLiteBackend, "", ""))
	assert.NoError(t, ClearStore(schema.NoneBackend, "", ""))
	assert.Error(t, ClearStore("oracle", "", ""))
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{backend: schema.PostgreSQLBackend}
	assert.Equal(t, "a = $1 AND b IN ($2,$3)", pg.rebind("a = ? AND b IN (?,?)"))

	lite := &SQLStore{backend: schema.SQLiteBackend}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestNullTimeScan(t *testing.T) {
	tests := []struct {
		name  string
		input any
		valid bool
	}{
		{"nil", nil, false},
		{"native", t0, true},
		{"sqlite text", t0.Format(sqliteTimeLayout), true},
		{"rfc3339", t0.Format(time.RFC3339Nano), true},
		{"mysql bytes", []byte("2026-03-02 12:00:00.000000"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n nullTime
			require.NoError(t, n.Scan(tt.input))
			assert.Equal(t, tt.valid, n.Valid)
			if tt.valid {
				assert.True(t, n.Time.Equal(t0))
			}
		})
	}

	var n nullTime
	assert.Error(t, n.Scan(42))
	assert.Error(t, n.Scan("yesterday"))
}

func TestResilientSourceOpensCircuit(t *testing.T) {
	ctx := context.Background()
	src := &MockDataSource{}
	src.On("ListSessions", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	cfg := DefaultBreakerConfig()
	cfg.MinRequests = 3
	cfg.Timeout = time.Hour
	rs := NewResilientSource(src, cfg)
	assert.Equal(t, "closed", rs.State())

	for range 3 {
		_, err := rs.ListSessions(ctx, schema.SessionFilter{})
		require.Error(t, err)
		assert.False(t, contract.IsUpstream(err))
	}
	assert.Equal(t, "open", rs.State())

	_, err := rs.ListSessions(ctx, schema.SessionFilter{})
	require.Error(t, err)
	assert.True(t, contract.IsUpstream(err))
	src.AssertNumberOfCalls(t, "ListSessions", 3)
}

func TestResilientSourcePassesThrough(t *testing.T) {
	ctx := context.Background()
	src := &MockDataSource{}
	want := []schema.MetricSample{{SessionID: "s1", MetricType: schema.FpsMetric, Value: 60}}
	src.On("ListMetrics", mock.Anything, []string{"s1"}, mock.Anything).Return(want, nil)
	src.On("ListSessions", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	rs := NewResilientSource(src, DefaultBreakerConfig())
	got, err := rs.ListMetrics(ctx, []string{"s1"}, schema.MetricFilter{})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for range 10 {
		_, err := rs.ListSessions(ctx, schema.SessionFilter{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", rs.State(), "cancellation does not trip the breaker")
}

func TestStoreManager(t *testing.T) {
	s := newTestStore(t)
	mgr := NewStoreManager(s, nil)
	assert.NotNil(t, mgr.GetDataSource())
	assert.NotNil(t, mgr.GetAlertStore())
	assert.NotNil(t, mgr.GetAnalysisStore())
	assert.NotNil(t, mgr.GetMetricWriter())
	assert.Nil(t, mgr.GetKVStore())

	status, err := mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, "closed", status.BreakerState)

	empty := &StoreManager{}
	assert.Nil(t, empty.GetDataSource())
	assert.Nil(t, empty.GetAlertStore())
	_, err = empty.Status()
	assert.Error(t, err)
}
