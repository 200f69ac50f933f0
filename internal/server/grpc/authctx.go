package grpcserver

import (
	"context"

	"github.com/and161185/accounts/internal/model"
)

type ctxKey string

const (
	accountKey ctxKey = "accounts.account"
	tokenKey   ctxKey = "accounts.token"
)

// WithAccount stores the authenticated account and its bearer token in context.
func WithAccount(ctx context.Context, acc *model.Account, token string) context.Context {
	ctx = context.WithValue(ctx, accountKey, acc)
	return context.WithValue(ctx, tokenKey, token)
}

// AccountFromCtx fetches the authenticated account from context.
func AccountFromCtx(ctx context.Context) (*model.Account, bool) {
	acc, ok := ctx.Value(accountKey).(*model.Account)
	return acc, ok && acc != nil
}

// TokenFromCtx fetches the bearer token the account was authenticated with.
func TokenFromCtx(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}
