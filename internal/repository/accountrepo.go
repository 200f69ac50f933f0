// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/accounts/internal/model"
)

// AccountRepository provides access to account rows.
type AccountRepository interface {
	// Exists reports whether an account with id is present.
	Exists(ctx context.Context, id string) (bool, error)
	// Create inserts a new account. Returns errs.ErrIDCollision when the id is
	// taken and errs.ErrAlreadyExists when the username or email is.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id string) (*model.Account, error)
	// GetByEmail loads an account by email.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// GetByUsername loads an account by username.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// DeleteUnverifiedBefore removes unverified accounts created before cutoff and returns their emails.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	// DeleteUnverifiedIdle removes unverified accounts created before cutoff
	// that have no pending change left, returning their emails.
	DeleteUnverifiedIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}
