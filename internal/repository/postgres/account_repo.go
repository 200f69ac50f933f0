package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountCols = `account_id, username, email, pwd_hash, language, verified, change_stamp, created_at`

// Exists reports whether the account id is taken.
func (r *AccountRepo) Exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id=$1)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("account exists: %w", err)
	}
	return ok, nil
}

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (account_id, username, email, pwd_hash, language, verified, change_stamp, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Username, a.Email, a.PwdHash, a.Language, a.Verified, a.ChangeStamp, a.CreatedAt)
	if c, ok := uniqueViolation(err); ok {
		if c == pkAccounts {
			return errs.ErrIDCollision
		}
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, c)
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return r.getOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE account_id=$1`, id)
}

// GetByEmail selects an account by email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.getOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE email=$1`, email)
}

// GetByUsername selects an account by username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	return r.getOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE username=$1`, username)
}

func (r *AccountRepo) getOne(ctx context.Context, q string, arg any) (*model.Account, error) {
	row := r.db.Pool.QueryRow(ctx, q, arg)
	var a model.Account
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PwdHash, &a.Language, &a.Verified, &a.ChangeStamp, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// DeleteUnverifiedBefore removes abandoned signups older than cutoff.
func (r *AccountRepo) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `DELETE FROM accounts WHERE NOT verified AND created_at < $1 RETURNING email`
	emails, err := collectStrings(r.db.Pool.Query(ctx, q, cutoff))
	if err != nil {
		return nil, fmt.Errorf("delete unverified accounts: %w", err)
	}
	return emails, nil
}

// DeleteUnverifiedIdle removes unverified accounts that no longer await any confirmation.
func (r *AccountRepo) DeleteUnverifiedIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `
DELETE FROM accounts a
WHERE NOT a.verified AND a.created_at < $1
  AND NOT EXISTS (SELECT 1 FROM account_changes c WHERE c.account_id = a.account_id)
RETURNING a.email`
	emails, err := collectStrings(r.db.Pool.Query(ctx, q, cutoff))
	if err != nil {
		return nil, fmt.Errorf("delete idle unverified accounts: %w", err)
	}
	return emails, nil
}
