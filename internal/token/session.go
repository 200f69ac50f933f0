package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/accounts/internal/clock"
	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
	"github.com/and161185/accounts/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// SessionIssuer backs every token with a sessions row that can be revoked by id.
// Confirmed account changes drop all of the account's rows, matching StampIssuer revocation.
type SessionIssuer struct {
	accounts AccountReader
	sessions repository.SessionRepository
	signKey  []byte
	ttl      time.Duration
	clock    clock.Clock
}

// NewSessionIssuer constructs the session-row issuer.
func NewSessionIssuer(accounts AccountReader, sessions repository.SessionRepository, signKey []byte, ttl time.Duration, c clock.Clock) *SessionIssuer {
	return &SessionIssuer{accounts: accounts, sessions: sessions, signKey: signKey, ttl: ttl, clock: c}
}

var _ Issuer = (*SessionIssuer)(nil)

// Issue creates a session row and signs its id.
func (s *SessionIssuer) Issue(ctx context.Context, accountID string) (model.Tokens, error) {
	sid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, fmt.Errorf("session id: %w", err)
	}
	now := s.clock.Now()
	exp, expAt := expiry(now, s.ttl)
	sess := &model.Session{ID: sid, AccountID: accountID, UserAgent: userAgentFromCtx(ctx), ExpiresAt: expAt, CreatedAt: now}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return model.Tokens{}, err
	}
	claims := jwt.RegisteredClaims{
		ID:        sid.String(),
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: exp,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: expAt}, nil
}

// Verify requires a live session row owned by the claimed account.
func (s *SessionIssuer) Verify(ctx context.Context, raw string) (*model.Account, error) {
	sess, err := s.session(ctx, raw)
	if err != nil {
		return nil, err
	}
	a, err := s.accounts.GetByID(ctx, sess.AccountID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrInvalidToken
	}
	return a, err
}

// Revoke deletes the session behind raw.
func (s *SessionIssuer) Revoke(ctx context.Context, raw string) error {
	sess, err := s.session(ctx, raw)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

func (s *SessionIssuer) session(ctx context.Context, raw string) (*model.Session, error) {
	var claims jwt.RegisteredClaims
	if err := parse(raw, s.signKey, &claims, s.clock.Now); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	sid, err := uuid.FromString(claims.ID)
	if err != nil {
		return nil, errs.ErrInvalidToken
	}
	sess, err := s.sessions.Get(ctx, sid)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if sess.AccountID != claims.Subject {
		return nil, errs.ErrInvalidToken
	}
	if !sess.ExpiresAt.IsZero() && !s.clock.Now().Before(sess.ExpiresAt) {
		return nil, errs.ErrInvalidToken
	}
	return sess, nil
}
