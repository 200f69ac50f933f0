// Package convert maps domain values to API wire messages.
package convert

import (
	"github.com/and161185/accounts/internal/api"
	"github.com/and161185/accounts/internal/model"
)

// ToAPIAccount returns the public view of a. The password hash and change stamp are never exposed.
func ToAPIAccount(a *model.Account) *api.Account {
	if a == nil {
		return nil
	}
	return &api.Account{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Language:  a.Language,
		Verified:  a.Verified,
		CreatedAt: a.CreatedAt,
	}
}

// ToTokenResponse wraps an issued token.
func ToTokenResponse(t model.Tokens) *api.TokenResponse {
	return &api.TokenResponse{Token: t.AccessToken, ExpiresAt: t.ExpiresAt}
}

// ToLoginResponse wraps a token issued for accountID.
func ToLoginResponse(accountID string, t model.Tokens) *api.LoginResponse {
	return &api.LoginResponse{AccountID: accountID, Token: t.AccessToken, ExpiresAt: t.ExpiresAt}
}

