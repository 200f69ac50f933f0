// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Account is the persisted identity. The password is never stored in plaintext.
type Account struct {
	ID          string    // PK, fixed length alphanumeric
	Username    string    // unique
	Email       string    // unique
	PwdHash     string    // PHC-encoded argon2id
	Language    string    // email copy selector
	Verified    bool      // false until a {verified:true} change is confirmed
	ChangeStamp time.Time // replaced on every confirmed mutation
	CreatedAt   time.Time
}

// Mutation is a set of optional field updates. Nil fields leave the account unchanged.
type Mutation struct {
	Username *string
	Email    *string
	Password *string // plaintext on input to Propose, hash once stored
	Verified *bool
	Delete   bool // removes the account when confirmed
	Step     *int16
}

// Empty reports whether applying the mutation would only restamp the account.
func (m Mutation) Empty() bool {
	return m.Username == nil && m.Email == nil && m.Password == nil && m.Verified == nil && !m.Delete
}

// PendingChange is a proposed, not yet applied mutation addressed by a single-use code.
type PendingChange struct {
	ID        string // digits only, used as the emailed code
	AccountID string // FK -> accounts.account_id
	Mutation
	CreatedAt time.Time
}

// Session is an explicit token row used by the session token strategy.
type Session struct {
	ID        uuid.UUID
	AccountID string
	UserAgent string
	ExpiresAt time.Time // zero means no expiry
	CreatedAt time.Time
}

// Tokens collects an issued bearer token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // zero when the token has no expiry
}

// Ptr returns a pointer to v; handy for building mutations.
func Ptr[T any](v T) *T { return &v }
