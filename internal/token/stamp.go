package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/accounts/internal/clock"
	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// StampClaims binds a token to the account change stamp it was issued under.
type StampClaims struct {
	AccountID   string `json:"account_id"`
	ChangeStamp int64  `json:"change_stamp"` // unix microseconds
	jwt.RegisteredClaims
}

// StampIssuer issues stateless tokens that die as soon as the account is restamped.
type StampIssuer struct {
	accounts AccountReader
	signKey  []byte
	ttl      time.Duration // zero means no exp claim
	clock    clock.Clock
}

// NewStampIssuer constructs the default issuer.
func NewStampIssuer(accounts AccountReader, signKey []byte, ttl time.Duration, c clock.Clock) *StampIssuer {
	return &StampIssuer{accounts: accounts, signKey: signKey, ttl: ttl, clock: c}
}

var _ Issuer = (*StampIssuer)(nil)

// Issue reloads the account and signs its current stamp.
func (s *StampIssuer) Issue(ctx context.Context, accountID string) (model.Tokens, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.clock.Now()
	exp, expAt := expiry(now, s.ttl)
	claims := StampClaims{
		AccountID:   a.ID,
		ChangeStamp: a.ChangeStamp.UnixMicro(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign token: %w", err)
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: expAt}, nil
}

// Verify checks the signature and requires the stored stamp to equal the claimed one.
func (s *StampIssuer) Verify(ctx context.Context, raw string) (*model.Account, error) {
	var claims StampClaims
	if err := parse(raw, s.signKey, &claims, s.clock.Now); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	if claims.AccountID == "" {
		return nil, errs.ErrInvalidToken
	}
	a, err := s.accounts.GetByID(ctx, claims.AccountID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if a.ChangeStamp.UnixMicro() != claims.ChangeStamp {
		return nil, errs.ErrInvalidToken
	}
	return a, nil
}
