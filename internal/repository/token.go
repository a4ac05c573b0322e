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

// TokenRepository stores one auth token per server.
type TokenRepository struct {
	db database.Querier
	sb sq.StatementBuilderType
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *database.DB) *TokenRepository {
	return &TokenRepository{
		db: db.Querier(),
		sb: db.Builder(),
	}
}

// Save stores the token, replacing any previous token for the same server.
func (r *TokenRepository) Save(ctx context.Context, token domain.Token) error {
	query, args, err := r.sb.
		Insert("tokens").
		Columns("server_url", "user_id", "auth_token", "created_at").
		Values(token.ServerURL, token.UserID, token.AuthToken, toUnix(token.CreatedAt)).
		Suffix(onConflictUpdate([]string{"server_url"}, "user_id", "auth_token", "created_at")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Get returns the token for a server.
func (r *TokenRepository) Get(ctx context.Context, serverURL string) (*domain.Token, error) {
	query, args, err := r.sb.
		Select("server_url", "user_id", "auth_token", "created_at").
		From("tokens").
		Where(sq.Eq{"server_url": serverURL}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var (
		token     domain.Token
		createdAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&token.ServerURL, &token.UserID, &token.AuthToken, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("query token: %w", err)
	}
	token.CreatedAt = fromUnix(createdAt)

	return &token, nil
}

// Delete removes the token for a server. Missing tokens are not an error.
func (r *TokenRepository) Delete(ctx context.Context, serverURL string) error {
	query, args, err := r.sb.
		Delete("tokens").
		Where(sq.Eq{"server_url": serverURL}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
