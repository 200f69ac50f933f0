package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/accounts/internal/clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of a pgx pool used by PG.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG is a PostgreSQL-backed limiter with a sliding failure window and lockout.
type PG struct {
	q      Querier
	policy Policy
	clock  clock.Clock
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, p Policy, c clock.Clock) *PG {
	if c == nil {
		c = clock.System{}
	}
	return &PG{q: q, policy: p, clock: c}
}

// Allow reports whether an attempt is allowed now.
func (l *PG) Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE subject=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, q, subject, ipHash).Scan(&blockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("limiter allow: %w", err)
	}
	if now := l.clock.Now(); blockedUntil.After(now) {
		return false, blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success clears the counter for (subject, ip).
func (l *PG) Success(ctx context.Context, subject string, ipHash []byte) error {
	const q = `DELETE FROM auth_limiter WHERE subject=$1 AND ip_hash=$2`
	if _, err := l.q.Exec(ctx, q, subject, ipHash); err != nil {
		return fmt.Errorf("limiter success: %w", err)
	}
	return nil
}

// Failure records a failed attempt and blocks once MaxFails is reached inside Window.
func (l *PG) Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	now := l.clock.Now()

	const q = `
INSERT INTO auth_limiter (subject, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', $3)
ON CONFLICT (subject, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN $3 - auth_limiter.updated_at > $4::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = $3
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, q, subject, ipHash, now, l.policy.Window).Scan(&fails); err != nil {
		return false, 0, fmt.Errorf("limiter failure: %w", err)
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}

	const upd = `UPDATE auth_limiter SET blocked_until=$3 WHERE subject=$1 AND ip_hash=$2`
	if _, err := l.q.Exec(ctx, upd, subject, ipHash, now.Add(l.policy.BlockFor)); err != nil {
		return false, 0, fmt.Errorf("limiter block: %w", err)
	}
	return true, l.policy.BlockFor, nil
}
