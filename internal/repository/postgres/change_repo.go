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

// ChangeRepo implements ChangeRepository using PostgreSQL.
type ChangeRepo struct{ db *DB }

// NewChangeRepo constructs a pending change repository.
func NewChangeRepo(db *DB) *ChangeRepo { return &ChangeRepo{db: db} }

const changeCols = `change_id, account_id, username, email, pwd_hash, verified, delete_acct, step, created_at`

func scanChange(row pgx.Row) (*model.PendingChange, error) {
	var c model.PendingChange
	err := row.Scan(&c.ID, &c.AccountID, &c.Username, &c.Email, &c.Password, &c.Verified, &c.Delete, &c.Step, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("scan change: %w", err)
	}
	return &c, nil
}

// Exists reports whether the change id is taken.
func (r *ChangeRepo) Exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM account_changes WHERE change_id=$1)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("change exists: %w", err)
	}
	return ok, nil
}

// Create inserts a pending change row.
func (r *ChangeRepo) Create(ctx context.Context, c *model.PendingChange) error {
	const q = `
INSERT INTO account_changes (` + changeCols + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Pool.Exec(ctx, q, c.ID, c.AccountID, c.Username, c.Email, c.Password, c.Verified, c.Delete, c.Step, c.CreatedAt)
	if cn, ok := uniqueViolation(err); ok {
		if cn == pkAccountChanges {
			return errs.ErrIDCollision
		}
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, cn)
	}
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("create change: %w", err)
	}
	return nil
}

// Get selects a change scoped by owner and id.
func (r *ChangeRepo) Get(ctx context.Context, accountID, changeID string) (*model.PendingChange, error) {
	const q = `SELECT ` + changeCols + ` FROM account_changes WHERE change_id=$1 AND account_id=$2`
	return scanChange(r.db.Pool.QueryRow(ctx, q, changeID, accountID))
}

// Delete removes a change by id.
func (r *ChangeRepo) Delete(ctx context.Context, changeID string) error {
	const q = `DELETE FROM account_changes WHERE change_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, changeID)
	if err != nil {
		return fmt.Errorf("delete change: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteByAccount removes all changes owned by accountID.
func (r *ChangeRepo) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	const q = `DELETE FROM account_changes WHERE account_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete changes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Apply consumes the change and merges it into the owning account in one transaction.
// The change row is locked first, so a concurrent Apply of the same id blocks and then sees no row.
func (r *ChangeRepo) Apply(ctx context.Context, accountID, changeID string, stamp time.Time) (c *model.PendingChange, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			c, err = nil, e
		}
	}()

	const sel = `SELECT ` + changeCols + ` FROM account_changes WHERE change_id=$1 AND account_id=$2 FOR UPDATE`
	c, err = scanChange(tx.QueryRow(ctx, sel, changeID, accountID))
	if err != nil {
		return nil, err
	}

	const del = `DELETE FROM account_changes WHERE change_id=$1`
	if _, err = tx.Exec(ctx, del, changeID); err != nil {
		return nil, fmt.Errorf("consume change: %w", err)
	}

	if c.Delete {
		const delAcc = `DELETE FROM accounts WHERE account_id=$1`
		tag, e := tx.Exec(ctx, delAcc, accountID)
		if e != nil {
			err = fmt.Errorf("delete account: %w", e)
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			err = errs.ErrNotFound
			return nil, err
		}
		return c, nil
	}

	const lock = `SELECT username, email, pwd_hash, verified, change_stamp FROM accounts WHERE account_id=$1 FOR UPDATE`
	var cur model.Account
	if err = tx.QueryRow(ctx, lock, accountID).Scan(&cur.Username, &cur.Email, &cur.PwdHash, &cur.Verified, &cur.ChangeStamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, err
	}

	merged := merge(cur, c.Mutation)
	merged.ChangeStamp = nextStamp(cur.ChangeStamp, stamp)

	const upd = `
UPDATE accounts
SET username=$2, email=$3, pwd_hash=$4, verified=$5, change_stamp=$6
WHERE account_id=$1`
	if _, err = tx.Exec(ctx, upd, accountID, merged.Username, merged.Email, merged.PwdHash, merged.Verified, merged.ChangeStamp); err != nil {
		if cn, ok := uniqueViolation(err); ok {
			err = fmt.Errorf("%w: %s", errs.ErrAlreadyExists, cn)
		}
		return nil, err
	}

	const dropSessions = `DELETE FROM sessions WHERE account_id=$1`
	if _, err = tx.Exec(ctx, dropSessions, accountID); err != nil {
		return nil, fmt.Errorf("drop sessions: %w", err)
	}
	return c, nil
}

// merge copies every field set in m over cur.
func merge(cur model.Account, m model.Mutation) model.Account {
	if m.Username != nil {
		cur.Username = *m.Username
	}
	if m.Email != nil {
		cur.Email = *m.Email
	}
	if m.Password != nil {
		cur.PwdHash = *m.Password
	}
	if m.Verified != nil {
		cur.Verified = *m.Verified
	}
	return cur
}

// nextStamp returns want, or one microsecond past prev when want would not move the stamp forward.
func nextStamp(prev, want time.Time) time.Time {
	if want.After(prev) {
		return want
	}
	return prev.Add(time.Microsecond)
}

// DeleteCreatedBefore removes expired changes.
func (r *ChangeRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `DELETE FROM account_changes WHERE created_at < $1 RETURNING account_id`
	ids, err := collectStrings(r.db.Pool.Query(ctx, q, cutoff))
	if err != nil {
		return nil, fmt.Errorf("delete expired changes: %w", err)
	}
	return ids, nil
}
