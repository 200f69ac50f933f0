package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// Create inserts a session row. A zero ExpiresAt is stored as NULL.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (session_id, account_id, user_agent, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5)`
	var exp *time.Time
	if !s.ExpiresAt.IsZero() {
		exp = &s.ExpiresAt
	}
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.AccountID, s.UserAgent, exp, s.CreatedAt)
	if cn, ok := uniqueViolation(err); ok && cn == pkSessions {
		return errs.ErrIDCollision
	}
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get selects a session by ID.
func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	const q = `SELECT session_id, account_id, user_agent, expires_at, created_at FROM sessions WHERE session_id=$1`
	var s model.Session
	var exp *time.Time
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.AccountID, &s.UserAgent, &exp, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if exp != nil {
		s.ExpiresAt = *exp
	}
	return &s, nil
}

// Delete removes a session by ID.
func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM sessions WHERE session_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
