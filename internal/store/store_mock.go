package store

import (
	"context"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetDataSource implements the StoreManager interface.
func (m *MockStoreManager) GetDataSource() contract.DataSource {
	ret := m.Called()
	src, _ := ret.Get(0).(contract.DataSource)
	return src
}

// GetMetricWriter implements the StoreManager interface.
func (m *MockStoreManager) GetMetricWriter() contract.MetricWriter {
	ret := m.Called()
	w, _ := ret.Get(0).(contract.MetricWriter)
	return w
}

// GetAlertStore implements the StoreManager interface.
func (m *MockStoreManager) GetAlertStore() contract.AlertStore {
	ret := m.Called()
	s, _ := ret.Get(0).(contract.AlertStore)
	return s
}

// GetAnalysisStore implements the StoreManager interface.
func (m *MockStoreManager) GetAnalysisStore() contract.AnalysisStore {
	ret := m.Called()
	s, _ := ret.Get(0).(contract.AnalysisStore)
	return s
}

// GetKVStore implements the StoreManager interface.
func (m *MockStoreManager) GetKVStore() contract.KVStore {
	ret := m.Called()
	kv, _ := ret.Get(0).(contract.KVStore)
	return kv
}

// MockDataSource is a mock implementation of DataSource for testing.
type MockDataSource struct {
	mock.Mock
}

var _ contract.DataSource = &MockDataSource{} // Compile-time check

// ListSessions implements the DataSource interface.
func (m *MockDataSource) ListSessions(ctx context.Context, filter schema.SessionFilter) ([]schema.Session, error) {
	ret := m.Called(ctx, filter)
	sessions, _ := ret.Get(0).([]schema.Session)
	return sessions, ret.Error(1)
}

// ListMetrics implements the DataSource interface.
func (m *MockDataSource) ListMetrics(ctx context.Context, sessionIDs []string, filter schema.MetricFilter) ([]schema.MetricSample, error) {
	ret := m.Called(ctx, sessionIDs, filter)
	samples, _ := ret.Get(0).([]schema.MetricSample)
	return samples, ret.Error(1)
}

// MockMetricWriter is a mock implementation of MetricWriter for testing.
type MockMetricWriter struct {
	mock.Mock
}

var _ contract.MetricWriter = &MockMetricWriter{} // Compile-time check

// InsertSessions implements the MetricWriter interface.
func (m *MockMetricWriter) InsertSessions(ctx context.Context, sessions []schema.Session) error {
	return m.Called(ctx, sessions).Error(0)
}

// InsertMetrics implements the MetricWriter interface.
func (m *MockMetricWriter) InsertMetrics(ctx context.Context, samples []schema.MetricSample) error {
	return m.Called(ctx, samples).Error(0)
}

// MockAlertStore is a mock implementation of AlertStore for testing.
type MockAlertStore struct {
	mock.Mock
}

var _ contract.AlertStore = &MockAlertStore{} // Compile-time check

// CreateConfig implements the AlertStore interface.
func (m *MockAlertStore) CreateConfig(ctx context.Context, cfg schema.AlertConfig) (schema.AlertConfig, error) {
	ret := m.Called(ctx, cfg)
	out, _ := ret.Get(0).(schema.AlertConfig)
	return out, ret.Error(1)
}

// GetConfig implements the AlertStore interface.
func (m *MockAlertStore) GetConfig(ctx context.Context, id int64) (schema.AlertConfig, error) {
	ret := m.Called(ctx, id)
	out, _ := ret.Get(0).(schema.AlertConfig)
	return out, ret.Error(1)
}

// ListConfigs implements the AlertStore interface.
func (m *MockAlertStore) ListConfigs(ctx context.Context, enabledOnly bool) ([]schema.AlertConfig, error) {
	ret := m.Called(ctx, enabledOnly)
	out, _ := ret.Get(0).([]schema.AlertConfig)
	return out, ret.Error(1)
}

// UpdateConfig implements the AlertStore interface.
func (m *MockAlertStore) UpdateConfig(ctx context.Context, cfg schema.AlertConfig) (schema.AlertConfig, error) {
	ret := m.Called(ctx, cfg)
	out, _ := ret.Get(0).(schema.AlertConfig)
	return out, ret.Error(1)
}

// DeleteConfig implements the AlertStore interface.
func (m *MockAlertStore) DeleteConfig(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// CreateInstanceIfNoneOpen implements the AlertStore interface.
func (m *MockAlertStore) CreateInstanceIfNoneOpen(ctx context.Context, inst schema.AlertInstance) (schema.AlertInstance, bool, error) {
	ret := m.Called(ctx, inst)
	out, _ := ret.Get(0).(schema.AlertInstance)
	return out, ret.Bool(1), ret.Error(2)
}

// GetInstance implements the AlertStore interface.
func (m *MockAlertStore) GetInstance(ctx context.Context, id int64) (schema.AlertInstance, error) {
	ret := m.Called(ctx, id)
	out, _ := ret.Get(0).(schema.AlertInstance)
	return out, ret.Error(1)
}

// ListInstances implements the AlertStore interface.
func (m *MockAlertStore) ListInstances(ctx context.Context, status schema.AlertStatus, limit int) ([]schema.AlertInstance, error) {
	ret := m.Called(ctx, status, limit)
	out, _ := ret.Get(0).([]schema.AlertInstance)
	return out, ret.Error(1)
}

// TransitionInstance implements the AlertStore interface.
func (m *MockAlertStore) TransitionInstance(ctx context.Context, id int64, next schema.AlertStatus, at time.Time) (schema.AlertInstance, error) {
	ret := m.Called(ctx, id, next, at)
	out, _ := ret.Get(0).(schema.AlertInstance)
	return out, ret.Error(1)
}

// MockAnalysisStore is a mock implementation of AnalysisStore for testing.
type MockAnalysisStore struct {
	mock.Mock
}

var _ contract.AnalysisStore = &MockAnalysisStore{} // Compile-time check

// BeginAnalysis implements the AnalysisStore interface.
func (m *MockAnalysisStore) BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error) {
	ret := m.Called(startTime, configParams)
	id, _ := ret.Get(0).(int64)
	return id, ret.Error(1)
}

// EndAnalysis implements the AnalysisStore interface.
func (m *MockAnalysisStore) EndAnalysis(analysisID int64, endTime time.Time, stats contract.RunStats) error {
	return m.Called(analysisID, endTime, stats).Error(0)
}

// ListRuns implements the AnalysisStore interface.
func (m *MockAnalysisStore) ListRuns(limit int) ([]schema.AnalysisRunRecord, error) {
	ret := m.Called(limit)
	out, _ := ret.Get(0).([]schema.AnalysisRunRecord)
	return out, ret.Error(1)
}

// GetStatus implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetStatus() (schema.StoreStatus, error) {
	ret := m.Called()
	out, _ := ret.Get(0).(schema.StoreStatus)
	return out, ret.Error(1)
}

// Close implements the AnalysisStore interface.
func (m *MockAnalysisStore) Close() error {
	return m.Called().Error(0)
}

// MockKVStore is a mock implementation of KVStore for testing.
type MockKVStore struct {
	mock.Mock
}

var _ contract.KVStore = &MockKVStore{} // Compile-time check

// Get implements the KVStore interface.
func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ret := m.Called(ctx, key)
	v, _ := ret.Get(0).([]byte)
	return v, ret.Bool(1), ret.Error(2)
}

// Set implements the KVStore interface.
func (m *MockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

// Incr implements the KVStore interface.
func (m *MockKVStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ret := m.Called(ctx, key, ttl)
	n, _ := ret.Get(0).(int64)
	return n, ret.Error(1)
}

// Decr implements the KVStore interface.
func (m *MockKVStore) Decr(ctx context.Context, key string) (int64, error) {
	ret := m.Called(ctx, key)
	n, _ := ret.Get(0).(int64)
	return n, ret.Error(1)
}

// Delete implements the KVStore interface.
func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// Close implements the KVStore interface.
func (m *MockKVStore) Close() error {
	return m.Called().Error(0)
}
