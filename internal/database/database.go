package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var (
	// ErrInvalidConfig is returned when a Config cannot describe a database.
	ErrInvalidConfig = errors.New("invalid database config")

	// ErrSchemaAhead is returned when the stored schema is newer than the configured version.
	ErrSchemaAhead = errors.New("database schema is newer than configured version")
)

// Driver identifies the SQL backend behind a DB.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config describes the local database: its name, schema version and log verbosity.
type Config struct {
	Name     string
	Version  int64
	LogLevel LogLevel
}

// Validate checks that the config can be opened.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Version < 1 {
		return fmt.Errorf("%w: version must be at least 1, got %d", ErrInvalidConfig, c.Version)
	}
	if !c.LogLevel.IsValid() {
		return fmt.Errorf("%w: unknown log level %d", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// Driver picks the backend from the name: postgres URLs go to pgx, anything else is a SQLite file.
func (c Config) Driver() Driver {
	if strings.HasPrefix(c.Name, "postgres://") || strings.HasPrefix(c.Name, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Querier is the subset of *sql.DB used by repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is the process-wide database handle.
type DB struct {
	cfg     Config
	driver  Driver
	path    string
	sql     *sql.DB
	pool    *pgxpool.Pool
	version int64
}

// SQL returns the underlying database/sql handle.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Config returns the configuration the database was opened with.
func (db *DB) Config() Config {
	return db.cfg
}

// Driver returns the backend in use.
func (db *DB) Driver() Driver {
	return db.driver
}

// Path returns the file path for SQLite databases, empty otherwise.
func (db *DB) Path() string {
	return db.path
}

// SchemaVersion returns the migration version after initialization.
func (db *DB) SchemaVersion() int64 {
	return db.version
}

// Builder returns a squirrel statement builder with the backend's placeholder format.
func (db *DB) Builder() sq.StatementBuilderType {
	if db.driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Querier returns the handle repositories should run statements on.
// At full log level SQLite statements are logged; pgx traces its own.
func (db *DB) Querier() Querier {
	if db.cfg.LogLevel == LogLevelFull && db.driver == DriverSQLite {
		return &loggingQuerier{next: db.sql}
	}
	return db.sql
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db == nil || db.sql == nil {
		return errors.New("database not initialized")
	}
	return db.sql.PingContext(ctx)
}

// Tables lists user tables, including the migration bookkeeping table.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	var query sq.SelectBuilder
	switch db.driver {
	case DriverPostgres:
		query = db.Builder().
			Select("tablename").
			From("pg_tables").
			Where(sq.Eq{"schemaname": "public"}).
			OrderBy("tablename")
	default:
		query = db.Builder().
			Select("name").
			From("sqlite_master").
			Where(sq.Eq{"type": "table"}).
			Where(sq.NotLike{"name": "sqlite_%"}).
			OrderBy("name")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := db.sql.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// Close closes the database handle. It is safe to call on a nil or unopened DB.
func (db *DB) Close() {
	if db == nil || db.sql == nil {
		return
	}
	if err := db.sql.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	db.sql, db.pool = nil, nil
	if db.cfg.LogLevel != LogLevelNone {
		slog.Info("database connection closed", "name", db.displayName())
	}
}

func (db *DB) displayName() string {
	if db.driver == DriverPostgres {
		return "postgres"
	}
	return db.cfg.Name
}

// Initializer opens the database and brings its schema to the configured version.
type Initializer struct {
	// DataDir is where relative SQLite names are resolved.
	DataDir string
}

// Init validates cfg, opens the database and runs migrations.
func (i Initializer) Init(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := Open(ctx, cfg, i.DataDir)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Open connects to the database described by cfg without touching the schema.
func Open(ctx context.Context, cfg Config, dataDir string) (*DB, error) {
	switch cfg.Driver() {
	case DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return openSQLite(ctx, cfg, dataDir)
	}
}

func openSQLite(ctx context.Context, cfg Config, dataDir string) (*DB, error) {
	path := cfg.Name
	if path != ":memory:" && !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One writer keeps SQLite free of SQLITE_BUSY under concurrent callers.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.LogLevel != LogLevelNone {
		slog.Info("database connected", "driver", DriverSQLite, "path", path)
	}

	return &DB{cfg: cfg, driver: DriverSQLite, path: path, sql: conn}, nil
}

func openPostgres(ctx context.Context, cfg Config) (*DB, error) {
	config, err := pgxpool.ParseConfig(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	if cfg.LogLevel == LogLevelFull {
		config.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(logPgx),
			LogLevel: tracelog.LogLevelInfo,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.LogLevel != LogLevelNone {
		slog.Info("database connected", "driver", DriverPostgres, "host", config.ConnConfig.Host)
	}

	return &DB{cfg: cfg, driver: DriverPostgres, sql: stdlib.OpenDBFromPool(pool), pool: pool}, nil
}

func logPgx(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]any, 0, len(data)*2)
	for k, v := range data {
		if k == "args" {
			if args, ok := v.([]any); ok {
				v = len(args)
			}
			k = "arg_count"
		}
		attrs = append(attrs, k, v)
	}
	slog.InfoContext(ctx, "database "+msg, attrs...)
}

// loggingQuerier logs statements without their arguments, which may carry tokens.
type loggingQuerier struct {
	next *sql.DB
}

func (q *loggingQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	slog.InfoContext(ctx, "database exec", "sql", query, "arg_count", len(args))
	return q.next.ExecContext(ctx, query, args...)
}

func (q *loggingQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	slog.InfoContext(ctx, "database query", "sql", query, "arg_count", len(args))
	return q.next.QueryContext(ctx, query, args...)
}

func (q *loggingQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	slog.InfoContext(ctx, "database query", "sql", query, "arg_count", len(args))
	return q.next.QueryRowContext(ctx, query, args...)
}
