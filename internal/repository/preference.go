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

// PreferenceRepository is a small key/value store for local state such as
// the current server and username.
type PreferenceRepository struct {
	db database.Querier
	sb sq.StatementBuilderType
}

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(db *database.DB) *PreferenceRepository {
	return &PreferenceRepository{
		db: db.Querier(),
		sb: db.Builder(),
	}
}

// Set stores value under key.
func (r *PreferenceRepository) Set(ctx context.Context, key, value string) error {
	query, args, err := r.sb.
		Insert("preferences").
		Columns("name", "value").
		Values(key, value).
		Suffix(onConflictUpdate([]string{"name"}, "value")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key.
func (r *PreferenceRepository) Get(ctx context.Context, key string) (string, error) {
	query, args, err := r.sb.
		Select("value").
		From("preferences").
		Where(sq.Eq{"name": key}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var value string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrPrefNotFound
		}
		return "", fmt.Errorf("query preference %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Missing keys are not an error.
func (r *PreferenceRepository) Delete(ctx context.Context, key string) error {
	query, args, err := r.sb.
		Delete("preferences").
		Where(sq.Eq{"name": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}
