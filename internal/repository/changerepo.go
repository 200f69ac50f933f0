package repository

import (
	"context"
	"time"

	"github.com/and161185/accounts/internal/model"
)

// ChangeRepository stores pending changes and applies them to accounts.
type ChangeRepository interface {
	// Exists reports whether a pending change with id is present.
	Exists(ctx context.Context, id string) (bool, error)
	// Create inserts a pending change. Returns errs.ErrIDCollision when the id
	// is taken and errs.ErrNotFound when the owning account is absent.
	Create(ctx context.Context, c *model.PendingChange) error
	// Get loads a change scoped by both owner and id.
	Get(ctx context.Context, accountID, changeID string) (*model.PendingChange, error)
	// Delete removes a change by id.
	Delete(ctx context.Context, changeID string) error
	// DeleteByAccount removes every change owned by accountID and returns how many were removed.
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	// Apply atomically locks, deletes and applies the change to its account,
	// replacing the change stamp with stamp. Returns the consumed change.
	Apply(ctx context.Context, accountID, changeID string, stamp time.Time) (*model.PendingChange, error)
	// DeleteCreatedBefore removes changes created before cutoff and returns their owners.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}
