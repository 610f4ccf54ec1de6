package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

const configColumns = "id, name, metric_type, condition_op, threshold, route_pattern, window_minutes, severity, enabled, created_at, updated_at"

const instanceColumns = "id, config_id, status, triggered_value, threshold, message, triggered_at, acknowledged_at, resolved_at"

// CreateConfig validates and stores a new alert config.
func (s *SQLStore) CreateConfig(ctx context.Context, cfg schema.AlertConfig) (schema.AlertConfig, error) {
	if s.disabled() {
		return cfg, contract.ErrStoreDisabled
	}
	if err := contract.ValidateStruct(cfg); err != nil {
		return cfg, err
	}

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO %s (name, metric_type, condition_op, threshold, route_pattern, window_minutes, severity, enabled, created_at, updated_at)
		VALUES (%s)`, alertConfigsTable, placeholders(10))
	id, err := s.insertID(ctx, s.db, query, "id",
		cfg.Name, string(cfg.MetricType), string(cfg.Condition), cfg.Threshold, cfg.RoutePattern,
		cfg.WindowMinutes, string(cfg.Severity), cfg.Enabled,
		formatTime(cfg.CreatedAt, s.backend), formatTime(cfg.UpdatedAt, s.backend))
	if err != nil {
		return cfg, fmt.Errorf("failed to insert alert config: %w", err)
	}
	cfg.ID = id
	return cfg, nil
}

// GetConfig returns one alert config or ErrNotFound.
func (s *SQLStore) GetConfig(ctx context.Context, id int64) (schema.AlertConfig, error) {
	if s.disabled() {
		return schema.AlertConfig{}, fmt.Errorf("alert config %d: %w", id, contract.ErrNotFound)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", configColumns, alertConfigsTable)
	cfg, err := scanConfig(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("alert config %d: %w", id, contract.ErrNotFound)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to get alert config %d: %w", id, err)
	}
	return cfg, nil
}

// ListConfigs lists configs by ID.
func (s *SQLStore) ListConfigs(ctx context.Context, enabledOnly bool) ([]schema.AlertConfig, error) {
	if s.disabled() {
		return []schema.AlertConfig{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s", configColumns, alertConfigsTable)
	var args []any
	if enabledOnly {
		query += " WHERE enabled = ?"
		args = append(args, true)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	configs := []schema.AlertConfig{}
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert configs: %w", err)
	}
	return configs, nil
}

// UpdateConfig replaces every mutable field of an existing config.
func (s *SQLStore) UpdateConfig(ctx context.Context, cfg schema.AlertConfig) (schema.AlertConfig, error) {
	if s.disabled() {
		return cfg, contract.ErrStoreDisabled
	}
	if err := contract.ValidateStruct(cfg); err != nil {
		return cfg, err
	}
	existing, err := s.GetConfig(ctx, cfg.ID)
	if err != nil {
		return cfg, err
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()

	query := fmt.Sprintf(`UPDATE %s SET name = ?, metric_type = ?, condition_op = ?, threshold = ?, route_pattern = ?,
		window_minutes = ?, severity = ?, enabled = ?, updated_at = ? WHERE id = ?`, alertConfigsTable)
	if _, err := s.db.ExecContext(ctx, s.rebind(query),
		cfg.Name, string(cfg.MetricType), string(cfg.Condition), cfg.Threshold, cfg.RoutePattern,
		cfg.WindowMinutes, string(cfg.Severity), cfg.Enabled, formatTime(cfg.UpdatedAt, s.backend), cfg.ID); err != nil {
		return cfg, fmt.Errorf("failed to update alert config %d: %w", cfg.ID, err)
	}
	return cfg, nil
}

// DeleteConfig removes a config together with its instances.
func (s *SQLStore) DeleteConfig(ctx context.Context, id int64) error {
	if s.disabled() {
		return contract.ErrStoreDisabled
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", alertConfigsTable)), id)
		if err != nil {
			return fmt.Errorf("failed to delete alert config %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("alert config %d: %w", id, contract.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf("DELETE FROM %s WHERE config_id = ?", alertInstancesTable)), id); err != nil {
			return fmt.Errorf("failed to delete instances of alert config %d: %w", id, err)
		}
		return nil
	})
}

// CreateInstanceIfNoneOpen inserts inst unless its config already has an active or
// acknowledged instance. The config row is locked for the check on MySQL and
// PostgreSQL; SQLite is serialized by its single connection.
func (s *SQLStore) CreateInstanceIfNoneOpen(ctx context.Context, inst schema.AlertInstance) (schema.AlertInstance, bool, error) {
	if s.disabled() {
		return inst, false, contract.ErrStoreDisabled
	}
	if inst.Status == "" {
		inst.Status = schema.AlertActive
	}

	created := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		lock := fmt.Sprintf("SELECT id FROM %s WHERE id = ?", alertConfigsTable)
		if s.backend != schema.SQLiteBackend {
			lock += " FOR UPDATE"
		}
		var configID int64
		if err := tx.QueryRowContext(ctx, s.rebind(lock), inst.ConfigID).Scan(&configID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("alert config %d: %w", inst.ConfigID, contract.ErrNotFound)
			}
			return fmt.Errorf("failed to lock alert config %d: %w", inst.ConfigID, err)
		}

		var open int
		openQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE config_id = ? AND status IN (?, ?)", alertInstancesTable)
		if err := tx.QueryRowContext(ctx, s.rebind(openQuery), inst.ConfigID,
			string(schema.AlertActive), string(schema.AlertAcknowledged)).Scan(&open); err != nil {
			return fmt.Errorf("failed to count open alerts: %w", err)
		}
		if open > 0 {
			return nil
		}

		insert := fmt.Sprintf("INSERT INTO %s (config_id, status, triggered_value, threshold, message, triggered_at) VALUES (%s)",
			alertInstancesTable, placeholders(6))
		id, err := s.insertID(ctx, tx, insert, "id", inst.ConfigID, string(inst.Status), inst.TriggeredValue,
			inst.Threshold, inst.Message, formatTime(inst.TriggeredAt, s.backend))
		if err != nil {
			return fmt.Errorf("failed to insert alert instance: %w", err)
		}
		inst.ID = id
		created = true
		return nil
	})
	if err != nil {
		return inst, false, err
	}
	if !created {
		return schema.AlertInstance{}, false, nil
	}
	return inst, true, nil
}

// GetInstance returns one alert instance or ErrNotFound.
func (s *SQLStore) GetInstance(ctx context.Context, id int64) (schema.AlertInstance, error) {
	if s.disabled() {
		return schema.AlertInstance{}, fmt.Errorf("alert instance %d: %w", id, contract.ErrNotFound)
	}
	return s.getInstance(ctx, s.db, id)
}

func (s *SQLStore) getInstance(ctx context.Context, q queryer, id int64) (schema.AlertInstance, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", instanceColumns, alertInstancesTable)
	inst, err := scanInstance(q.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return inst, fmt.Errorf("alert instance %d: %w", id, contract.ErrNotFound)
	}
	if err != nil {
		return inst, fmt.Errorf("failed to get alert instance %d: %w", id, err)
	}
	return inst, nil
}

// ListInstances lists instances newest first.
func (s *SQLStore) ListInstances(ctx context.Context, status schema.AlertStatus, limit int) ([]schema.AlertInstance, error) {
	if s.disabled() {
		return []schema.AlertInstance{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s", instanceColumns, alertInstancesTable)
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY triggered_at DESC, id DESC" + limitClause(limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert instances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	instances := []schema.AlertInstance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert instances: %w", err)
	}
	return instances, nil
}

// TransitionInstance moves an instance to next, stamping the matching timestamp.
func (s *SQLStore) TransitionInstance(ctx context.Context, id int64, next schema.AlertStatus, at time.Time) (schema.AlertInstance, error) {
	if s.disabled() {
		return schema.AlertInstance{}, contract.ErrStoreDisabled
	}

	var inst schema.AlertInstance
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		inst, err = s.getInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		if !inst.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", contract.ErrInvalidTransition, inst.Status, next)
		}

		at = at.UTC()
		column := "resolved_at"
		if next == schema.AlertAcknowledged {
			column = "acknowledged_at"
		}
		query := fmt.Sprintf("UPDATE %s SET status = ?, %s = ? WHERE id = ?", alertInstancesTable, column)
		if _, err := tx.ExecContext(ctx, s.rebind(query), string(next), formatTime(at, s.backend), id); err != nil {
			return fmt.Errorf("failed to update alert instance %d: %w", id, err)
		}

		inst.Status = next
		if next == schema.AlertAcknowledged {
			inst.AcknowledgedAt = &at
		} else {
			inst.ResolvedAt = &at
		}
		return nil
	})
	if err != nil {
		return schema.AlertInstance{}, err
	}
	return inst, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (schema.AlertConfig, error) {
	var cfg schema.AlertConfig
	var metricType, condition, severity string
	var created, updated nullTime
	if err := row.Scan(&cfg.ID, &cfg.Name, &metricType, &condition, &cfg.Threshold, &cfg.RoutePattern,
		&cfg.WindowMinutes, &severity, &cfg.Enabled, &created, &updated); err != nil {
		return cfg, err
	}
	cfg.MetricType = schema.MetricType(metricType)
	cfg.Condition = schema.AlertCondition(condition)
	cfg.Severity = schema.Severity(severity)
	cfg.CreatedAt = created.Time
	cfg.UpdatedAt = updated.Time
	return cfg, nil
}

func scanInstance(row rowScanner) (schema.AlertInstance, error) {
	var inst schema.AlertInstance
	var status string
	var triggered, acked, resolved nullTime
	if err := row.Scan(&inst.ID, &inst.ConfigID, &status, &inst.TriggeredValue, &inst.Threshold,
		&inst.Message, &triggered, &acked, &resolved); err != nil {
		return inst, err
	}
	inst.Status = schema.AlertStatus(status)
	inst.TriggeredAt = triggered.Time
	inst.AcknowledgedAt = acked.Ptr()
	inst.ResolvedAt = resolved.Ptr()
	return inst, nil
}
