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

var accountColumns = []string{"server_url", "username", "avatar_url", "icon_url", "logo_url", "created_at"}

// AccountRepository handles database operations for accounts.
type AccountRepository struct {
	db database.Querier
	sb sq.StatementBuilderType
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{
		db: db.Querier(),
		sb: db.Builder(),
	}
}

// Save inserts the account or refreshes its avatar, icon and logo.
func (r *AccountRepository) Save(ctx context.Context, account domain.Account) error {
	query, args, err := r.sb.
		Insert("accounts").
		Columns("server_url", "username", "avatar_url", "icon_url", "logo_url", "created_at").
		Values(account.ServerURL, account.Username, account.AvatarURL, account.IconURL, account.LogoURL, toUnix(account.CreatedAt)).
		Suffix(onConflictUpdate([]string{"server_url", "username"}, "avatar_url", "icon_url", "logo_url")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// Get retrieves an account by server and username.
func (r *AccountRepository) Get(ctx context.Context, serverURL, username string) (*domain.Account, error) {
	query, args, err := r.sb.
		Select(accountColumns...).
		From("accounts").
		Where(sq.Eq{"server_url": serverURL, "username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var (
		account   domain.Account
		createdAt int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&account.ServerURL,
		&account.Username,
		&account.AvatarURL,
		&account.IconURL,
		&account.LogoURL,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	account.CreatedAt = fromUnix(createdAt)

	return &account, nil
}

// List returns all accounts ordered by server and username.
func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	query, args, err := r.sb.
		Select(accountColumns...).
		From("accounts").
		OrderBy("server_url", "username").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var (
			account   domain.Account
			createdAt int64
		)
		if err := rows.Scan(&account.ServerURL, &account.Username, &account.AvatarURL, &account.IconURL, &account.LogoURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		account.CreatedAt = fromUnix(createdAt)
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}
