// Package store persists sessions, metric samples, alerts and analysis runs in SQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names.
const (
	sessionsTable       = "perfscope_sessions"
	metricsTable        = "perfscope_metric_samples"
	alertConfigsTable   = "perfscope_alert_configs"
	alertInstancesTable = "perfscope_alert_instances"
	analysisRunsTable   = "perfscope_analysis_runs"
)

// allTables lists every table in drop order.
var allTables = []string{analysisRunsTable, alertInstancesTable, alertConfigsTable, metricsTable, sessionsTable}

//go:embed migrations
var migrationsFS embed.FS

// sqliteTimeLayout is fixed width so that text comparisons order like times.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// migrationsTable is the bookkeeping table of golang-migrate.
const migrationsTable = "schema_migrations"

// bgCtx is used by the AnalysisStore methods, which predate context plumbing.
func bgCtx() context.Context {
	return context.Background()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements the DataSource, MetricWriter, AlertStore and AnalysisStore
// interfaces over one SQL database.
type SQLStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var (
	_ contract.DataSource    = &SQLStore{} // Compile-time check
	_ contract.MetricWriter  = &SQLStore{} // Compile-time check
	_ contract.AlertStore    = &SQLStore{} // Compile-time check
	_ contract.AnalysisStore = &SQLStore{} // Compile-time check
)

// driverName returns the database/sql driver registered for the backend.
func driverName(backend schema.DatabaseBackend) string {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite"
	case schema.MySQLBackend:
		return "mysql"
	case schema.PostgreSQLBackend:
		return "pgx"
	default:
		return ""
	}
}

// migrationDir returns the embedded migration directory for the backend.
func migrationDir(backend schema.DatabaseBackend) string {
	if backend == schema.PostgreSQLBackend {
		return "postgres"
	}
	return string(backend)
}

// NewStore opens the backend and makes sure its tables exist.
// An empty SQLite connection string uses the default database file.
func NewStore(backend schema.DatabaseBackend, connStr string) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetDBFilePath()
		}
		db, err = sql.Open(driverName(backend), dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		db, err = sql.Open(driverName(backend), connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		db, err = sql.Open(driverName(backend), connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=... user=...", err)
		}

	case schema.NoneBackend:
		return &SQLStore{backend: backend}, nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is accessible."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}

	s := &SQLStore{db: db, backend: backend}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// createTables applies the statements of the initial migration. They are all
// idempotent, so a later "db migrate" over the same database only records the version.
func (s *SQLStore) createTables() error {
	path := fmt.Sprintf("migrations/%s/000001_init.up.sql", migrationDir(s.backend))
	raw, err := migrationsFS.ReadFile(path)
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Backend returns the configured backend.
func (s *SQLStore) Backend() schema.DatabaseBackend {
	return s.backend
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) disabled() bool {
	return s.backend == schema.NoneBackend || s.db == nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertID runs an INSERT and returns the generated key.
func (s *SQLStore) insertID(ctx context.Context, q queryer, query, idColumn string, args ...any) (int64, error) {
	if s.backend == schema.PostgreSQLBackend {
		var id int64
		err := q.QueryRowContext(ctx, s.rebind(query+" RETURNING "+idColumn), args...).Scan(&id)
		return id, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(sqliteTimeLayout)
	default:
		return t.UTC()
	}
}

// formatNullTime is formatTime for optional columns.
func formatNullTime(t *time.Time, backend schema.DatabaseBackend) any {
	if t == nil {
		return nil
	}
	return formatTime(*t, backend)
}

// placeholders returns n comma separated ? markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// nullTime scans the time columns of every backend: native times from pgx,
// strings or bytes from SQLite and MySQL without parseTime.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Scan implements sql.Scanner.
func (n *nullTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into a time", value)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

// Ptr returns nil for NULL.
func (n nullTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
