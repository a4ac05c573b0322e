package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its base FS, dialect and logger in package globals.
var migrateMu sync.Mutex

// RunMigrations applies pending migrations up to the configured version.
func RunMigrations(ctx context.Context, db *DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(migrationLogger(db.cfg.LogLevel))

	if err := goose.SetDialect(gooseDialect(db.driver)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	current, err := goose.GetDBVersionContext(ctx, db.sql)
	if err != nil {
		return fmt.Errorf("get migration version: %w", err)
	}
	if current > db.cfg.Version {
		return fmt.Errorf("%w: database is at version %d, configured version is %d", ErrSchemaAhead, current, db.cfg.Version)
	}

	if err := goose.UpToContext(ctx, db.sql, "migrations", db.cfg.Version); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db.sql)
	if err != nil {
		return fmt.Errorf("get migration version: %w", err)
	}
	if version != db.cfg.Version {
		return fmt.Errorf("%w: no migration for version %d (latest is %d)", ErrInvalidConfig, db.cfg.Version, version)
	}
	db.version = version

	if db.cfg.LogLevel != LogLevelNone {
		slog.Info("migrations completed", "version", version)
	}

	return nil
}

func gooseDialect(d Driver) string {
	if d == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

func migrationLogger(level LogLevel) goose.Logger {
	if level == LogLevelNone {
		return goose.NopLogger()
	}
	return gooseLogger{}
}

// gooseLogger forwards goose progress output to slog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
}
