package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/kvstore"
	"github.com/huangsam/perfscope/internal/store"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv    *Server
	mgr    *store.MockStoreManager
	src    *store.MockDataSource
	alerts *store.MockAlertStore
	writer *store.MockMetricWriter
	runs   *store.MockAnalysisStore
}

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()
	f := &fixture{
		mgr:    &store.MockStoreManager{},
		src:    &store.MockDataSource{},
		alerts: &store.MockAlertStore{},
		writer: &store.MockMetricWriter{},
		runs:   &store.MockAnalysisStore{},
	}
	f.mgr.On("GetDataSource").Return(f.src).Maybe()
	f.mgr.On("GetAlertStore").Return(f.alerts).Maybe()
	f.mgr.On("GetMetricWriter").Return(f.writer).Maybe()
	f.mgr.On("GetAnalysisStore").Return(f.runs).Maybe()
	f.mgr.On("GetKVStore").Return(kvstore.NewMemory())

	cfg := &contract.Config{
		StartTime:   t0.Add(-24 * time.Hour),
		EndTime:     t0,
		ResultLimit: 10,
		RowLimit:    1000,
		BatchSize:   50,
		Workers:     1,
		Backend:     schema.SQLiteBackend,
		RateLimit:   rateLimit,
		LiveGrace:   time.Second,
		Policy:      contract.DefaultPolicy(),
	}
	f.srv = New(cfg, f.mgr)
	f.srv.now = func() time.Time { return t0 }
	f.srv.checker.now = func() time.Time { return t0 }
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "sqlite", body["backend"])
}

func TestAnalysisEndpoint(t *testing.T) {
	f := newFixture(t, 0)
	end := t0
	sessions := []schema.Session{{ID: "s1", AnonymousUserID: "u1", SessionStart: t0.Add(-time.Hour), SessionEnd: &end}}
	samples := []schema.MetricSample{
		{ID: 1, SessionID: "s1", Timestamp: t0.Add(-time.Hour), MetricType: schema.FpsMetric, Value: 58, Context: schema.MetricContext{Route: "/home"}},
		{ID: 2, SessionID: "s1", Timestamp: t0.Add(-59 * time.Minute), MetricType: schema.MemoryMetric, Value: 210, Context: schema.MetricContext{Route: "/home"}},
	}
	f.src.On("ListSessions", mock.Anything, mock.MatchedBy(func(filter schema.SessionFilter) bool {
		return filter.End.Equal(t0) && filter.Start.Equal(t0.Add(-24*time.Hour)) && filter.Platform == "ios"
	})).Return(sessions, nil)
	f.src.On("ListMetrics", mock.Anything, []string{"s1"}, mock.Anything).Return(samples, nil)
	f.runs.On("BeginAnalysis", mock.Anything, mock.Anything).Return(int64(3), nil)
	f.runs.On("EndAnalysis", int64(3), mock.Anything, mock.Anything).Return(nil)

	rec := f.do(t, http.MethodGet, "/api/v1/routes?platform=ios", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analysis := decode[schema.RoutePerformanceAnalysis](t, rec)
	require.Len(t, analysis.Routes, 1)
	assert.Equal(t, "/home", analysis.Routes[0].RoutePattern)
	f.src.AssertExpectations(t)
}

func TestAnalysisEndpointErrors(t *testing.T) {
	t.Run("bad window", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.do(t, http.MethodGet, "/api/v1/trends?start=2026-03-03&end=2026-03-01", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad time", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.do(t, http.MethodGet, "/api/v1/trends?start=yesterday-ish", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream", func(t *testing.T) {
		f := newFixture(t, 0)
		f.runs.On("BeginAnalysis", mock.Anything, mock.Anything).Return(int64(0), nil)
		f.src.On("ListSessions", mock.Anything, mock.Anything).Return(nil, assert.AnError)
		rec := f.do(t, http.MethodGet, "/api/v1/report", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestIngestEndpoint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		f := newFixture(t, 0)
		f.writer.On("InsertSessions", mock.Anything, mock.Anything).Return(nil)
		f.writer.On("InsertMetrics", mock.Anything, mock.Anything).Return(nil)
		body := `{"sessions":[{"id":"s1","session_start":"2026-03-02T11:00:00Z"}],"metrics":[{"session_id":"s1","timestamp":"2026-03-02T11:00:01Z","metric_type":"fps","value":60}]}`

		rec := f.do(t, http.MethodPost, "/api/v1/ingest", body)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		assert.Equal(t, map[string]int{"sessions": 1, "metrics": 1}, decode[map[string]int](t, rec))
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, 0)
		rec := f.do(t, http.MethodPost, "/api/v1/ingest", `{"metrics":[{"session_id":"s1","metric_type":"fps","value":-1}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "validation failed", body.Error)
		assert.NotEmpty(t, body.Fields)
		f.writer.AssertNotCalled(t, "InsertMetrics", mock.Anything, mock.Anything)
	})
}

func TestAlertEndpoints(t *testing.T) {
	t.Run("create config", func(t *testing.T) {
		f := newFixture(t, 0)
		f.alerts.On("CreateConfig", mock.Anything, mock.MatchedBy(func(c schema.AlertConfig) bool {
			return c.Name == "low fps" && c.Threshold == 30
		})).Return(schema.AlertConfig{ID: 5, Name: "low fps", Threshold: 30}, nil)

		rec := f.do(t, http.MethodPost, "/api/v1/alerts/configs", `{"name":"low fps","metric_type":"fps","condition":"below","threshold":30,"window_minutes":15,"severity":"high","enabled":true}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(5), decode[schema.AlertConfig](t, rec).ID)
	})

	t.Run("delete missing config", func(t *testing.T) {
		f := newFixture(t, 0)
		f.alerts.On("DeleteConfig", mock.Anything, int64(9)).Return(contract.ErrNotFound)
		rec := f.do(t, http.MethodDelete, "/api/v1/alerts/configs/9", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list instances", func(t *testing.T) {
		f := newFixture(t, 0)
		f.alerts.On("ListInstances", mock.Anything, schema.AlertActive, 10).Return([]schema.AlertInstance{{ID: 1, Status: schema.AlertActive}}, nil)
		rec := f.do(t, http.MethodGet, "/api/v1/alerts?status=active", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]schema.AlertInstance](t, rec), 1)

		rec = f.do(t, http.MethodGet, "/api/v1/alerts?status=snoozed", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ack conflict", func(t *testing.T) {
		f := newFixture(t, 0)
		f.alerts.On("TransitionInstance", mock.Anything, int64(2), schema.AlertAcknowledged, t0).
			Return(schema.AlertInstance{}, contract.ErrInvalidTransition)
		rec := f.do(t, http.MethodPost, "/api/v1/alerts/2/ack", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("resolve", func(t *testing.T) {
		f := newFixture(t, 0)
		f.alerts.On("TransitionInstance", mock.Anything, int64(2), schema.AlertResolved, t0).
			Return(schema.AlertInstance{ID: 2, Status: schema.AlertResolved}, nil)
		rec := f.do(t, http.MethodPost, "/api/v1/alerts/2/resolve", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, schema.AlertResolved, decode[schema.AlertInstance](t, rec).Status)
	})

	t.Run("check", func(t *testing.T) {
		f := newFixture(t, 0)
		f.alerts.On("ListConfigs", mock.Anything, true).Return([]schema.AlertConfig{}, nil)
		rec := f.do(t, http.MethodPost, "/api/v1/alerts/check", "")
		require.Equal(t, http.StatusOK, rec.Code)
		result := decode[schema.CheckResult](t, rec)
		assert.Equal(t, t0, result.CheckedAt)
		assert.Zero(t, result.Evaluated)
	})
}

func TestRunsEndpoint(t *testing.T) {
	f := newFixture(t, 0)
	f.runs.On("ListRuns", 2).Return([]schema.AnalysisRunRecord{{AnalysisID: 2}, {AnalysisID: 1}}, nil)
	f.runs.On("ListRuns", 10).Return([]schema.AnalysisRunRecord{{AnalysisID: 1}}, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/runs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]schema.AnalysisRunRecord](t, rec), 2)

	for _, q := range []string{"limit=abc", "limit=-1", "limit=0", "limit="} {
		rec = f.do(t, http.MethodGet, "/api/v1/runs?"+q, "")
		assert.Equal(t, http.StatusOK, rec.Code, q)
	}
	f.runs.AssertNumberOfCalls(t, "ListRuns", 5)
}

func TestLimitParam(t *testing.T) {
	tests := []struct {
		query    string
		expected int
	}{
		{"", 25},
		{"limit=abc", 25},
		{"limit=-4", 25},
		{"limit=0", 25},
		{"limit=7", 7},
		{"limit=999999", contract.MaxResultLimit},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/runs?"+tt.query, nil)
			assert.Equal(t, tt.expected, limitParam(r, 25))
		})
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, 2)
	f.runs.On("ListRuns", mock.Anything).Return([]schema.AnalysisRunRecord{}, nil)

	for range 2 {
		rec := f.do(t, http.MethodGet, "/api/v1/runs", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decode[map[string]string](t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}

// failingKV returns a KV mock whose every call fails.
func failingKV() *store.MockKVStore {
	kv := &store.MockKVStore{}
	down := errors.New("kv down")
	kv.On("Get", mock.Anything, mock.Anything).Return(nil, false, down).Maybe()
	kv.On("Incr", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), down).Maybe()
	kv.On("Decr", mock.Anything, mock.Anything).Return(int64(0), down).Maybe()
	kv.On("Delete", mock.Anything, mock.Anything).Return(down).Maybe()
	return kv
}

func TestRateLimitSharedAcrossInstances(t *testing.T) {
	kv := kvstore.NewMemory()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	a := RateLimit(kv, 2, nil)(ok)
	b := RateLimit(kv, 2, nil)(ok)

	codes := make([]int, 0, 3)
	for _, h := range []http.Handler{a, b, a} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	other.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(failingKV(), 1, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RateLimit(kvstore.NewMemory(), 0, nil)(next)
	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestKVCounter(t *testing.T) {
	kv := kvstore.NewMemory()
	c := &kvCounter{kv: kv}
	c.Config(10, time.Minute)

	cur := t0.Truncate(time.Minute)
	prev := cur.Add(-time.Minute)
	require.NoError(t, c.Increment("10.0.0.1", prev))
	require.NoError(t, c.IncrementBy("10.0.0.1", cur, 3))

	current, previous, err := c.Get("10.0.0.1", cur, prev)
	require.NoError(t, err)
	assert.Equal(t, 3, current)
	assert.Equal(t, 1, previous)

	current, previous, err = c.Get("10.0.0.2", cur, prev)
	require.NoError(t, err)
	assert.Zero(t, current)
	assert.Zero(t, previous)
}

func TestLiveThrottle(t *testing.T) {
	kv := kvstore.NewMemory()
	gate := NewLiveThrottle(kv, 1)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/live", nil)

	release, ok := gate.Acquire(req)
	require.True(t, ok)
	_, ok = gate.Acquire(req)
	assert.False(t, ok)

	release()
	_, ok = gate.Acquire(req)
	assert.True(t, ok)
}

func TestLiveThrottleReleaseDecrements(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	gate := NewLiveThrottle(kv, 3)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/live", nil)
	key := "live:conns:" + clientIP(req)

	var releases []func()
	for range 3 {
		release, ok := gate.Acquire(req)
		require.True(t, ok)
		releases = append(releases, release)
	}
	_, ok := gate.Acquire(req)
	require.False(t, ok, "rejected acquire gives its slot back")

	v, found, err := kv.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3", string(v))

	var wg sync.WaitGroup
	for _, release := range releases {
		wg.Go(release)
	}
	wg.Wait()

	_, found, err = kv.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "last release removes the counter")
}

func TestLiveThrottleFailsOpen(t *testing.T) {
	gate := NewLiveThrottle(failingKV(), 1)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/live", nil)
	for range 3 {
		release, ok := gate.Acquire(req)
		require.True(t, ok)
		release()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, 0)
	f.do(t, http.MethodGet, "/healthz", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `perfscope_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, body, "perfscope_live_clients 0")
}

func TestCheckerWithoutStores(t *testing.T) {
	mgr := &store.MockStoreManager{}
	mgr.On("GetAlertStore").Return(nil)
	mgr.On("GetDataSource").Return(nil)
	_, err := NewChecker(mgr, nil).Check(context.Background())
	assert.ErrorIs(t, err, contract.ErrStoreDisabled)
}
