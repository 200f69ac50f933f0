// Package token issues and verifies bearer tokens.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/accounts/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints and checks bearer tokens. Implementations differ in how revocation works.
type Issuer interface {
	// Issue mints a token for the account as it is stored right now.
	Issue(ctx context.Context, accountID string) (model.Tokens, error)
	// Verify returns the account the token belongs to, or errs.ErrInvalidToken.
	Verify(ctx context.Context, token string) (*model.Account, error)
}

// AccountReader loads accounts by id.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
}

const leeway = 30 * time.Second

type ctxKey string

const userAgentKey ctxKey = "accounts.userAgent"

// WithUserAgent stores the client user agent for issuers that record it.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

func userAgentFromCtx(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey).(string)
	return ua
}

func parse(raw string, key []byte, claims jwt.Claims, now func() time.Time) error {
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithLeeway(leeway), jwt.WithTimeFunc(now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err
}

func expiry(now time.Time, ttl time.Duration) (*jwt.NumericDate, time.Time) {
	if ttl <= 0 {
		return nil, time.Time{}
	}
	exp := now.Add(ttl)
	return jwt.NewNumericDate(exp), exp
}
