package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/schema"
)

const sessionColumns = "id, anonymous_user_id, device_id, device_type, platform, app_version, session_start, session_end"

const metricColumns = "id, session_id, ts, metric_type, value, route, screen_name, params"

// ListSessions returns sessions overlapping [filter.Start, filter.End], ordered by start.
func (s *SQLStore) ListSessions(ctx context.Context, filter schema.SessionFilter) ([]schema.Session, error) {
	if s.disabled() {
		return []schema.Session{}, nil
	}

	var where []string
	var args []any
	if !filter.End.IsZero() {
		where = append(where, "session_start <= ?")
		args = append(args, formatTime(filter.End, s.backend))
	}
	if !filter.Start.IsZero() {
		where = append(where, "(session_end IS NULL OR session_end >= ?)")
		args = append(args, formatTime(filter.Start, s.backend))
	}
	if filter.AppVersion != "" {
		where = append(where, "app_version = ?")
		args = append(args, filter.AppVersion)
	}
	if filter.DeviceType != "" {
		where = append(where, "device_type = ?")
		args = append(args, filter.DeviceType)
	}
	if filter.Platform != "" {
		where = append(where, "LOWER(platform) = ?")
		args = append(args, strings.ToLower(filter.Platform))
	}
	if filter.UserID != "" {
		where = append(where, "anonymous_user_id = ?")
		args = append(args, filter.UserID)
	}

	order := "session_start, id"
	if filter.Newest {
		order = "session_start DESC, id DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s%s",
		sessionColumns, sessionsTable, whereClause(where), order, limitClause(filter.Limit))
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []schema.Session{}
	for rows.Next() {
		var sess schema.Session
		var start, end nullTime
		if err := rows.Scan(&sess.ID, &sess.AnonymousUserID, &sess.DeviceID, &sess.DeviceType,
			&sess.Platform, &sess.AppVersion, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.SessionStart = start.Time
		sess.SessionEnd = end.Ptr()
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	if filter.Newest {
		slices.Reverse(sessions)
	}
	return sessions, nil
}

// ListMetrics returns samples ordered by timestamp, then ID, or by ID alone when
// filter.ByID is set.
func (s *SQLStore) ListMetrics(ctx context.Context, sessionIDs []string, filter schema.MetricFilter) ([]schema.MetricSample, error) {
	if s.disabled() {
		return []schema.MetricSample{}, nil
	}

	var where []string
	var args []any
	if len(sessionIDs) > 0 {
		where = append(where, fmt.Sprintf("session_id IN (%s)", placeholders(len(sessionIDs))))
		for _, id := range sessionIDs {
			args = append(args, id)
		}
	}
	if !filter.Start.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, formatTime(filter.Start, s.backend))
	}
	if !filter.End.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, formatTime(filter.End, s.backend))
	}
	if len(filter.Types) > 0 {
		where = append(where, fmt.Sprintf("metric_type IN (%s)", placeholders(len(filter.Types))))
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if filter.Route != "" {
		where = append(where, "(route = ? OR screen_name = ?)")
		args = append(args, filter.Route, filter.Route)
	}
	if filter.After > 0 {
		where = append(where, "id > ?")
		args = append(args, filter.After)
	}

	order := "ts, id"
	switch {
	case filter.ByID:
		order = "id"
	case filter.Newest:
		order = "ts DESC, id DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s%s",
		metricColumns, metricsTable, whereClause(where), order, limitClause(filter.Limit))
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	samples := []schema.MetricSample{}
	for rows.Next() {
		var m schema.MetricSample
		var ts nullTime
		var metricType string
		var params sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &ts, &metricType, &m.Value,
			&m.Context.Route, &m.Context.ScreenName, &params); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		m.Timestamp = ts.Time
		m.MetricType = schema.MetricType(metricType)
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &m.Context.Params); err != nil {
				return nil, fmt.Errorf("failed to decode params of metric %d: %w", m.ID, err)
			}
		}
		samples = append(samples, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}
	if filter.Newest && !filter.ByID {
		slices.Reverse(samples)
	}
	return samples, nil
}

// InsertSessions upserts sessions. Re-sending a session updates its end time.
func (s *SQLStore) InsertSessions(ctx context.Context, sessions []schema.Session) error {
	if s.disabled() {
		return nil
	}
	if len(sessions) == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", sessionsTable, sessionColumns, placeholders(8))
	switch s.backend {
	case schema.MySQLBackend:
		query += " ON DUPLICATE KEY UPDATE session_end = VALUES(session_end)"
	default:
		query += " ON CONFLICT (id) DO UPDATE SET session_end = excluded.session_end"
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(query))
		if err != nil {
			return fmt.Errorf("failed to prepare session insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, sess := range sessions {
			if _, err := stmt.ExecContext(ctx, sess.ID, sess.AnonymousUserID, sess.DeviceID, sess.DeviceType,
				sess.Platform, sess.AppVersion, formatTime(sess.SessionStart, s.backend),
				formatNullTime(sess.SessionEnd, s.backend)); err != nil {
				return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
			}
		}
		return nil
	})
}

// InsertMetrics appends samples. Sample IDs are assigned by the database.
func (s *SQLStore) InsertMetrics(ctx context.Context, samples []schema.MetricSample) error {
	if s.disabled() {
		return nil
	}
	if len(samples) == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (session_id, ts, metric_type, value, route, screen_name, params) VALUES (%s)",
		metricsTable, placeholders(7))

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(query))
		if err != nil {
			return fmt.Errorf("failed to prepare metric insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, m := range samples {
			var params any
			if len(m.Context.Params) > 0 {
				raw, err := json.Marshal(m.Context.Params)
				if err != nil {
					return fmt.Errorf("failed to encode params: %w", err)
				}
				params = string(raw)
			}
			if _, err := stmt.ExecContext(ctx, m.SessionID, formatTime(m.Timestamp, s.backend), string(m.MetricType),
				m.Value, m.Context.Route, m.Context.ScreenName, params); err != nil {
				return fmt.Errorf("failed to insert metric for session %s: %w", m.SessionID, err)
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
