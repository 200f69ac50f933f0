package repository

import (
	"context"

	"github.com/and161185/accounts/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SessionRepository stores explicit session rows for the session token strategy.
type SessionRepository interface {
	// Create inserts a session.
	Create(ctx context.Context, s *model.Session) error
	// Get loads a session by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// Delete removes one session.
	Delete(ctx context.Context, id uuid.UUID) error
}
