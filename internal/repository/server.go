package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mtlprog/chatboot/internal/database"
	"github.com/mtlprog/chatboot/internal/domain"
)

// ServerRepository handles database operations for known servers.
type ServerRepository struct {
	db database.Querier
	sb sq.StatementBuilderType
}

// NewServerRepository creates a new ServerRepository.
func NewServerRepository(db *database.DB) *ServerRepository {
	return &ServerRepository{
		db: db.Querier(),
		sb: db.Builder(),
	}
}

// Save inserts the server or updates its version and check time.
func (r *ServerRepository) Save(ctx context.Context, server domain.Server) error {
	query, args, err := r.sb.
		Insert("servers").
		Columns("url", "version", "checked_at").
		Values(server.URL, server.Version, toUnix(server.CheckedAt)).
		Suffix(onConflictUpdate([]string{"url"}, "version", "checked_at")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save server: %w", err)
	}
	return nil
}

// GetByURL retrieves a server by its URL.
func (r *ServerRepository) GetByURL(ctx context.Context, url string) (*domain.Server, error) {
	query, args, err := r.sb.
		Select("url", "version", "checked_at").
		From("servers").
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var (
		server    domain.Server
		checkedAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&server.URL, &server.Version, &checkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrServerNotFound
		}
		return nil, fmt.Errorf("query server: %w", err)
	}
	server.CheckedAt = fromUnix(checkedAt)

	return &server, nil
}

// List returns all known servers ordered by URL.
func (r *ServerRepository) List(ctx context.Context) ([]domain.Server, error) {
	query, args, err := r.sb.
		Select("url", "version", "checked_at").
		From("servers").
		OrderBy("url").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()

	var servers []domain.Server
	for rows.Next() {
		var (
			server    domain.Server
			checkedAt int64
		)
		if err := rows.Scan(&server.URL, &server.Version, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		server.CheckedAt = fromUnix(checkedAt)
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}

	return servers, nil
}
