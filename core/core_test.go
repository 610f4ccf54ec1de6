package core

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/store"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// executeConfig returns a config that writes CSV to a temp file.
func executeConfig(t *testing.T) *contract.Config {
	t.Helper()
	cfg := reportConfig()
	cfg.BatchSize = 10
	cfg.Output = schema.CSVOut
	cfg.OutputFile = filepath.Join(t.TempDir(), "out.csv")
	cfg.Precision = 1
	cfg.Backend = schema.SQLiteBackend
	return cfg
}

// newMocks wires a data source with the two-route dataset into a store manager.
func newMocks(analysis contract.AnalysisStore) (*store.MockStoreManager, *store.MockDataSource) {
	sessions, samples := twoRouteDataset()
	src := &store.MockDataSource{}
	src.On("ListSessions", mock.Anything, mock.Anything).Return(sessions, nil)
	src.On("ListMetrics", mock.Anything, []string{"s1", "s2"}, mock.Anything).Return(samples, nil)

	mgr := &store.MockStoreManager{}
	mgr.On("GetDataSource").Return(src)
	mgr.On("GetAnalysisStore").Return(analysis)
	return mgr, src
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

// TestExecutors tests that every analysis entry point loads data and writes output.
func TestExecutors(t *testing.T) {
	executors := map[string]ExecutorFunc{
		"routes":       ExecuteRoutes,
		"devices":      ExecuteDevices,
		"correlations": ExecuteCorrelations,
		"journeys":     ExecuteJourneys,
		"patterns":     ExecutePatterns,
		"abandonment":  ExecuteAbandonment,
		"trends":       ExecuteTrends,
		"warnings":     ExecuteWarnings,
		"report":       ExecuteReport,
	}
	for name, execute := range executors {
		t.Run(name, func(t *testing.T) {
			cfg := executeConfig(t)
			mgr, src := newMocks(nil)

			require.NoError(t, execute(context.Background(), cfg, mgr))
			assert.FileExists(t, cfg.OutputFile)
			mgr.AssertExpectations(t)
			src.AssertExpectations(t)
		})
	}
}

func TestExecuteRoutesOutput(t *testing.T) {
	cfg := executeConfig(t)
	mgr, _ := newMocks(nil)

	require.NoError(t, ExecuteRoutes(context.Background(), cfg, mgr))
	records := readCSV(t, cfg.OutputFile)
	require.Len(t, records, 3)
	assert.Equal(t, "/home", records[1][1], "best route ranks first")
	assert.Equal(t, "/game", records[2][1])
}

func TestExecuteTracksAnalysisRun(t *testing.T) {
	cfg := executeConfig(t)
	runs := &store.MockAnalysisStore{}
	runs.On("BeginAnalysis", mock.Anything, mock.Anything).Return(int64(7), nil)
	runs.On("EndAnalysis", int64(7), mock.Anything, contract.RunStats{Sessions: 2, Metrics: 8, Routes: 2}).Return(nil)
	mgr, _ := newMocks(runs)

	require.NoError(t, ExecuteRoutes(context.Background(), cfg, mgr))
	runs.AssertExpectations(t)
}

func TestExecuteTrackingFailureIsNotFatal(t *testing.T) {
	cfg := executeConfig(t)
	runs := &store.MockAnalysisStore{}
	runs.On("BeginAnalysis", mock.Anything, mock.Anything).Return(int64(0), errors.New("disk full"))
	mgr, _ := newMocks(runs)

	require.NoError(t, ExecuteJourneys(context.Background(), cfg, mgr))
	runs.AssertNotCalled(t, "EndAnalysis", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteWithoutDataSource(t *testing.T) {
	cfg := executeConfig(t)
	mgr := &store.MockStoreManager{}
	mgr.On("GetDataSource").Return(nil)

	err := ExecuteRoutes(context.Background(), cfg, mgr)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrStoreDisabled)
}

func TestExecuteUpstreamFailure(t *testing.T) {
	cfg := executeConfig(t)
	src := &store.MockDataSource{}
	src.On("ListSessions", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	mgr := &store.MockStoreManager{}
	mgr.On("GetDataSource").Return(src)
	mgr.On("GetAnalysisStore").Return(nil)

	err := ExecuteReport(context.Background(), cfg, mgr)
	require.Error(t, err)
	assert.True(t, contract.IsUpstream(err))
	assert.NoFileExists(t, cfg.OutputFile)
}

func TestExecuteExport(t *testing.T) {
	t.Run("requires output file", func(t *testing.T) {
		cfg := executeConfig(t)
		cfg.OutputFile = ""
		err := ExecuteExport(context.Background(), cfg, &store.MockStoreManager{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--output-file")
	})

	t.Run("writes parquet files", func(t *testing.T) {
		cfg := executeConfig(t)
		cfg.OutputFile = filepath.Join(t.TempDir(), "export")
		runs := &store.MockAnalysisStore{}
		runs.On("BeginAnalysis", mock.Anything, mock.Anything).Return(int64(1), nil)
		runs.On("EndAnalysis", int64(1), mock.Anything, mock.Anything).Return(nil)
		runs.On("ListRuns", 0).Return([]schema.AnalysisRunRecord{{AnalysisID: 1, StartTime: time.Now()}}, nil)
		mgr, _ := newMocks(runs)

		require.NoError(t, ExecuteExport(context.Background(), cfg, mgr))
		for _, suffix := range []string{".samples.parquet", ".routes.parquet", ".journeys.parquet", ".analysis_runs.parquet"} {
			assert.FileExists(t, cfg.OutputFile+suffix)
		}
		runs.AssertExpectations(t)
	})
}

func TestRunAnalysis(t *testing.T) {
	assert.Contains(t, AnalysisNames(), "routes")
	assert.Len(t, AnalysisNames(), 9)

	t.Run("routes", func(t *testing.T) {
		cfg := executeConfig(t)
		mgr, _ := newMocks(nil)
		result, err := RunAnalysis(context.Background(), cfg, mgr, "routes")
		require.NoError(t, err)
		analysis, ok := result.(schema.RoutePerformanceAnalysis)
		require.True(t, ok)
		assert.Len(t, analysis.Routes, 2)
		assert.NoFileExists(t, cfg.OutputFile)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := RunAnalysis(context.Background(), executeConfig(t), &store.MockStoreManager{}, "nope")
		require.Error(t, err)
	})
}
