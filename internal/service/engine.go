// Package service contains application services for accounts and their pending changes.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/accounts/internal/clock"
	"github.com/and161185/accounts/internal/idgen"
	"github.com/and161185/accounts/internal/metrics"
	"github.com/and161185/accounts/internal/model"
	"github.com/and161185/accounts/internal/repository"
)

// PasswordHasher hashes and checks passwords with a configurable work factor.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

// ConfirmationEngine creates, looks up, confirms and deletes pending changes.
type ConfirmationEngine struct {
	accounts repository.AccountRepository
	changes  repository.ChangeRepository
	ids      *idgen.Allocator
	hasher   PasswordHasher
	clock    clock.Clock
}

// NewConfirmationEngine constructs the engine. ids draws change codes.
func NewConfirmationEngine(accounts repository.AccountRepository, changes repository.ChangeRepository, ids *idgen.Allocator, hasher PasswordHasher, c clock.Clock) *ConfirmationEngine {
	return &ConfirmationEngine{accounts: accounts, changes: changes, ids: ids, hasher: hasher, clock: c}
}

// Propose stores m as a pending change of accountID and returns its code.
// A plaintext password in m is hashed before anything is stored.
func (e *ConfirmationEngine) Propose(ctx context.Context, accountID string, m model.Mutation) (string, error) {
	if m.Password != nil {
		h, err := e.hasher.Hash(*m.Password)
		if err != nil {
			return "", err
		}
		m.Password = &h
	}
	now := e.clock.Now()
	id, err := e.ids.Allocate(ctx, e.changes.Exists, func(ctx context.Context, id string) error {
		return e.changes.Create(ctx, &model.PendingChange{ID: id, AccountID: accountID, Mutation: m, CreatedAt: now})
	})
	if err != nil {
		return "", fmt.Errorf("propose: %w", err)
	}
	metrics.ChangesProposed.WithLabelValues(kindOf(m)).Inc()
	return id, nil
}

// Lookup returns the change only if it belongs to accountID.
func (e *ConfirmationEngine) Lookup(ctx context.Context, accountID, changeID string) (*model.PendingChange, error) {
	return e.changes.Get(ctx, accountID, changeID)
}

// Confirm consumes the change and applies it to the account with a fresh change stamp.
func (e *ConfirmationEngine) Confirm(ctx context.Context, accountID, changeID string) (*model.PendingChange, error) {
	c, err := e.changes.Apply(ctx, accountID, changeID, e.clock.Now())
	metrics.ChangesConfirmed.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}
	return c, nil
}

// Cancel discards a change without applying it.
func (e *ConfirmationEngine) Cancel(ctx context.Context, changeID string) error {
	return e.changes.Delete(ctx, changeID)
}

// CancelAll discards every pending change of accountID.
func (e *ConfirmationEngine) CancelAll(ctx context.Context, accountID string) (int64, error) {
	return e.changes.DeleteByAccount(ctx, accountID)
}

// SweepExpiredChanges deletes changes older than ttl and returns their owners.
func (e *ConfirmationEngine) SweepExpiredChanges(ctx context.Context, ttl time.Duration) ([]string, error) {
	return e.changes.DeleteCreatedBefore(ctx, e.clock.Now().Add(-ttl))
}

// SweepUnverifiedAccounts deletes unverified accounts older than ttl and returns their emails.
func (e *ConfirmationEngine) SweepUnverifiedAccounts(ctx context.Context, ttl time.Duration) ([]string, error) {
	return e.accounts.DeleteUnverifiedBefore(ctx, e.clock.Now().Add(-ttl))
}

// SweepIdleUnverified deletes unverified accounts older than grace that await no confirmation.
func (e *ConfirmationEngine) SweepIdleUnverified(ctx context.Context, grace time.Duration) ([]string, error) {
	return e.accounts.DeleteUnverifiedIdle(ctx, e.clock.Now().Add(-grace))
}
