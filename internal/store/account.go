package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/qnahub/apiserver/types"
)

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT id, email, password
		FROM accounts
		WHERE email = $1`
	var account types.Account
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, mapError(err)
	}
	return account, nil
}

// Create inserts account and returns it with the assigned ID. A duplicate
// email yields ErrAlreadyExists.
func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	const query = `
		INSERT INTO accounts (email, password)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		account.Email,
		account.PasswordHash,
	).Scan(&account.ID); err != nil {
		return types.Account{}, mapError(err)
	}
	return account, nil
}
