// Package api defines the wire messages and gRPC service description of the account API.
package api

import "time"

// SignupRequest creates an unverified account.
type SignupRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	Language string `json:"language,omitempty" validate:"omitempty,max=16"`
}

// SignupResponse carries the new account id and a token for it.
type SignupResponse struct {
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// LoginRequest authenticates by email or username plus password.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=1024"`
}

// LoginResponse is returned by every flow that signs the caller in.
type LoginResponse struct {
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// TokenResponse carries a token reissued after a confirmed change.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// LoginCodeRequest asks for a sign-in code by email.
type LoginCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// ConfirmLoginCodeRequest signs in with an emailed code.
type ConfirmLoginCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,numeric,max=32"`
}

// ConfirmRequest confirms a pending change of the authenticated account.
type ConfirmRequest struct {
	Code string `json:"code" validate:"required,numeric,max=32"`
}

// UsernameRequest proposes a new username.
type UsernameRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

// PasswordRequest proposes a new password.
type PasswordRequest struct {
	Password string `json:"password" validate:"required,max=1024"`
}

// EmailRequest proposes a new email address.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// Empty is used where a call has no payload.
type Empty struct{}

// CancelResponse reports how many pending changes were discarded.
type CancelResponse struct {
	Cancelled int64 `json:"cancelled"`
}

// Account is the public view of an account.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Language  string    `json:"language"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}
