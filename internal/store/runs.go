package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// BeginAnalysis creates a new analysis run and returns its unique ID.
func (s *SQLStore) BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error) {
	// Skip for NoneBackend
	if s.disabled() {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES (?, ?)`, analysisRunsTable)
	analysisID, err := s.insertID(bgCtx(), s.db, query, "analysis_id", formatTime(startTime, s.backend), string(configJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis run: %w", err)
	}
	return analysisID, nil
}

// EndAnalysis updates the analysis run with completion data.
func (s *SQLStore) EndAnalysis(analysisID int64, endTime time.Time, stats contract.RunStats) error {
	if s.disabled() {
		return nil
	}

	var start nullTime
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE analysis_id = ?`, analysisRunsTable)
	if err := s.db.QueryRow(s.rebind(query), analysisID).Scan(&start); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("analysis run %d: %w", analysisID, contract.ErrNotFound)
		}
		return fmt.Errorf("failed to get start_time for analysis %d: %w", analysisID, err)
	}

	durationMs := endTime.Sub(start.Time).Milliseconds()
	update := fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, total_sessions = ?, total_metrics = ?, total_routes = ?
		WHERE analysis_id = ?`, analysisRunsTable)
	if _, err := s.db.Exec(s.rebind(update), formatTime(endTime, s.backend), durationMs,
		stats.Sessions, stats.Metrics, stats.Routes, analysisID); err != nil {
		return fmt.Errorf("failed to update analysis run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLStore) ListRuns(limit int) ([]schema.AnalysisRunRecord, error) {
	if s.disabled() {
		return []schema.AnalysisRunRecord{}, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, start_time, end_time, run_duration_ms, total_sessions, total_metrics, total_routes, config_params
		FROM %s ORDER BY analysis_id DESC%s`, analysisRunsTable, limitClause(limit))
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []schema.AnalysisRunRecord{}
	for rows.Next() {
		var rec schema.AnalysisRunRecord
		var start, end nullTime
		if err := rows.Scan(&rec.AnalysisID, &start, &end, &rec.RunDurationMs, &rec.TotalSessions,
			&rec.TotalMetrics, &rec.TotalRoutes, &rec.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		rec.StartTime = start.Time
		rec.EndTime = end.Ptr()
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return runs, nil
}

// GetStatus returns status information about the store.
func (s *SQLStore) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:        string(s.backend),
		Connected:      s.db != nil,
		TableRowCounts: make(map[string]int64),
	}
	if s.disabled() {
		return status, nil
	}

	for _, table := range allTables {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableRowCounts[table] = count
	}
	status.TotalSessions = int(status.TableRowCounts[sessionsTable])
	status.TotalMetrics = int(status.TableRowCounts[metricsTable])
	status.AlertConfigs = int(status.TableRowCounts[alertConfigsTable])
	status.TotalRuns = int(status.TableRowCounts[analysisRunsTable])

	if status.TotalMetrics > 0 {
		var oldest, newest nullTime
		if err := s.db.QueryRow(fmt.Sprintf("SELECT MIN(ts), MAX(ts) FROM %s", metricsTable)).Scan(&oldest, &newest); err != nil {
			return status, fmt.Errorf("failed to get metric time range: %w", err)
		}
		status.OldestMetric = oldest.Time
		status.NewestMetric = newest.Time
	}

	openQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status IN (?, ?)", alertInstancesTable)
	if err := s.db.QueryRow(s.rebind(openQuery), string(schema.AlertActive), string(schema.AlertAcknowledged)).Scan(&status.OpenAlerts); err != nil {
		return status, fmt.Errorf("failed to count open alerts: %w", err)
	}

	if status.TotalRuns > 0 {
		var last nullTime
		lastQuery := fmt.Sprintf("SELECT analysis_id, start_time FROM %s ORDER BY analysis_id DESC LIMIT 1", analysisRunsTable)
		if err := s.db.QueryRow(lastQuery).Scan(&status.LastRunID, &last); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime = last.Time
	}

	status.MigrationSchema = s.migrationVersion()
	return status, nil
}

// migrationVersion reads the golang-migrate bookkeeping table. Databases that were
// never migrated explicitly report an empty version.
func (s *SQLStore) migrationVersion() string {
	var version int64
	var dirty bool
	if err := s.db.QueryRow(fmt.Sprintf("SELECT version, dirty FROM %s LIMIT 1", migrationsTable)).Scan(&version, &dirty); err != nil {
		return ""
	}
	if dirty {
		return fmt.Sprintf("v%d (dirty)", version)
	}
	return fmt.Sprintf("v%d", version)
}
