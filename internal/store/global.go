package store

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/kvstore"
	"github.com/huangsam/perfscope/schema"
)

// StoreManager hands out the collaborators built over one SQL store and one KV store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	sql          *SQLStore
	source       *ResilientSource
	kv           contract.KVStore
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// NewStoreManager wires a manager around already opened stores.
func NewStoreManager(s *SQLStore, kv contract.KVStore) *StoreManager {
	mgr := &StoreManager{}
	mgr.set(s, kv)
	return mgr
}

func (mgr *StoreManager) set(s *SQLStore, kv contract.KVStore) {
	mgr.Lock()
	defer mgr.Unlock()
	mgr.sql = s
	mgr.kv = kv
	mgr.source = nil
	if s != nil {
		mgr.source = NewResilientSource(s, DefaultBreakerConfig())
	}
}

// GetDataSource returns the breaker-wrapped data source.
func (mgr *StoreManager) GetDataSource() contract.DataSource {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.source == nil {
		return nil
	}
	return mgr.source
}

// GetMetricWriter returns the SQL store as a writer.
func (mgr *StoreManager) GetMetricWriter() contract.MetricWriter {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.sql == nil {
		return nil
	}
	return mgr.sql
}

// GetAlertStore returns the SQL store as an alert store.
func (mgr *StoreManager) GetAlertStore() contract.AlertStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.sql == nil {
		return nil
	}
	return mgr.sql
}

// GetAnalysisStore returns the SQL store as the analysis-run log.
func (mgr *StoreManager) GetAnalysisStore() contract.AnalysisStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.sql == nil {
		return nil
	}
	return mgr.sql
}

// GetKVStore returns the key-value store.
func (mgr *StoreManager) GetKVStore() contract.KVStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.kv
}

// Status returns the SQL store status along with the breaker state.
func (mgr *StoreManager) Status() (schema.StoreStatus, error) {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.sql == nil {
		return schema.StoreStatus{}, fmt.Errorf("store is not initialized")
	}
	status, err := mgr.sql.GetStatus()
	if mgr.source != nil {
		status.BreakerState = mgr.source.State()
	}
	return status, err
}

// Close closes both stores.
func (mgr *StoreManager) Close() {
	mgr.Lock()
	defer mgr.Unlock()
	if mgr.sql != nil {
		_ = mgr.sql.Close()
	}
	if mgr.kv != nil {
		_ = mgr.kv.Close()
	}
}

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores opens the configured SQL and KV backends into the global Manager.
func InitStores(backend schema.DatabaseBackend, connStr string, kvBackend schema.KVBackend, kvConnStr string) error {
	var initErr error

	initOnce.Do(func() {
		sqlStore, err := NewStore(backend, connStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize %s store: %w", backend, err)
			return
		}

		kv, err := kvstore.New(kvBackend, kvConnStr)
		if err != nil {
			_ = sqlStore.Close()
			initErr = fmt.Errorf("failed to initialize %s kv store: %w", kvBackend, err)
			return
		}

		Manager.set(sqlStore, kv)
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Close()
	})
}

// ClearStore deletes all persisted data for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the tables.
// For NoneBackend, it does nothing.
func ClearStore(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return clearSQLTables(driverName(backend), connStr, append(allTables, migrationsTable))

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}

// clearSQLTables connects to the SQL database and drops the tables if they exist.
func clearSQLTables(driverName, connStr string, tables []string) error {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}

	for _, table := range tables {
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
