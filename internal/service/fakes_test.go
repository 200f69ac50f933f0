package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/limiter"
	"github.com/and161185/accounts/internal/model"
	"github.com/and161185/accounts/internal/repository"
)

// memStore keeps accounts and pending changes in memory with the same
// ownership and single-use rules as the postgres repositories.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	changes  map[string]model.PendingChange

	createErr error // returned by account Create
	applyErr  error // returned by Apply before anything changes
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]model.Account{}, changes: map[string]model.PendingChange{}}
}

type memAccounts struct{ s *memStore }
type memChanges struct{ s *memStore }

var (
	_ repository.AccountRepository = memAccounts{}
	_ repository.ChangeRepository  = memChanges{}
)

func (s *memStore) accountsRepo() memAccounts { return memAccounts{s} }
func (s *memStore) changesRepo() memChanges   { return memChanges{s} }

func (s *memStore) account(id string) (model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *memStore) changeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changes)
}

func (r memAccounts) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.accounts[id]
	return ok, nil
}

func (r memAccounts) Create(_ context.Context, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createErr != nil {
		return r.s.createErr
	}
	if _, ok := r.s.accounts[a.ID]; ok {
		return errs.ErrIDCollision
	}
	for _, cur := range r.s.accounts {
		if cur.Username == a.Username || cur.Email == a.Email {
			return errs.ErrAlreadyExists
		}
	}
	r.s.accounts[a.ID] = *a
	return nil
}

func (r memAccounts) GetByID(_ context.Context, id string) (*model.Account, error) {
	return r.find(func(a model.Account) bool { return a.ID == id })
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	return r.find(func(a model.Account) bool { return a.Email == email })
}

func (r memAccounts) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	return r.find(func(a model.Account) bool { return a.Username == username })
}

func (r memAccounts) find(match func(model.Account) bool) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if match(a) {
			c := a
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memAccounts) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	return r.deleteUnverified(cutoff, false), nil
}

func (r memAccounts) DeleteUnverifiedIdle(_ context.Context, cutoff time.Time) ([]string, error) {
	return r.deleteUnverified(cutoff, true), nil
}

func (r memAccounts) deleteUnverified(cutoff time.Time, idleOnly bool) []string {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var emails []string
	for id, a := range r.s.accounts {
		if a.Verified || !a.CreatedAt.Before(cutoff) {
			continue
		}
		if idleOnly && r.s.hasChangesLocked(id) {
			continue
		}
		r.s.dropAccountLocked(id)
		emails = append(emails, a.Email)
	}
	return emails
}

func (s *memStore) hasChangesLocked(accountID string) bool {
	for _, c := range s.changes {
		if c.AccountID == accountID {
			return true
		}
	}
	return false
}

func (s *memStore) dropAccountLocked(id string) {
	delete(s.accounts, id)
	for cid, c := range s.changes {
		if c.AccountID == id {
			delete(s.changes, cid)
		}
	}
}

func (r memChanges) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.changes[id]
	return ok, nil
}

func (r memChanges) Create(_ context.Context, c *model.PendingChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.changes[c.ID]; ok {
		return errs.ErrIDCollision
	}
	if _, ok := r.s.accounts[c.AccountID]; !ok {
		return errs.ErrNotFound
	}
	r.s.changes[c.ID] = *c
	return nil
}

func (r memChanges) Get(_ context.Context, accountID, changeID string) (*model.PendingChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.changes[changeID]
	if !ok || c.AccountID != accountID {
		return nil, errs.ErrNotFound
	}
	return &c, nil
}

func (r memChanges) Delete(_ context.Context, changeID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.changes[changeID]; !ok {
		return errs.ErrNotFound
	}
	delete(r.s.changes, changeID)
	return nil
}

func (r memChanges) DeleteByAccount(_ context.Context, accountID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.changes {
		if c.AccountID == accountID {
			delete(r.s.changes, id)
			n++
		}
	}
	return n, nil
}

func (r memChanges) Apply(_ context.Context, accountID, changeID string, stamp time.Time) (*model.PendingChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.applyErr != nil {
		return nil, r.s.applyErr
	}
	c, ok := r.s.changes[changeID]
	if !ok || c.AccountID != accountID {
		return nil, errs.ErrNotFound
	}
	a, ok := r.s.accounts[accountID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if c.Delete {
		r.s.dropAccountLocked(accountID)
		return &c, nil
	}
	if c.Username != nil {
		a.Username = *c.Username
	}
	if c.Email != nil {
		a.Email = *c.Email
	}
	if c.Password != nil {
		a.PwdHash = *c.Password
	}
	if c.Verified != nil {
		a.Verified = *c.Verified
	}
	for id, other := range r.s.accounts {
		if id != accountID && (other.Username == a.Username || other.Email == a.Email) {
			return nil, errs.ErrAlreadyExists
		}
	}
	if stamp.After(a.ChangeStamp) {
		a.ChangeStamp = stamp
	} else {
		a.ChangeStamp = a.ChangeStamp.Add(time.Microsecond)
	}
	delete(r.s.changes, changeID)
	r.s.accounts[accountID] = a
	return &c, nil
}

func (r memChanges) DeleteCreatedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var owners []string
	for id, c := range r.s.changes {
		if c.CreatedAt.Before(cutoff) {
			delete(r.s.changes, id)
			owners = append(owners, c.AccountID)
		}
	}
	return owners, nil
}

// fakeHasher prefixes the plaintext so stored values are recognisably not plaintext.
type fakeHasher struct {
	hashErr   error
	verifyErr error
	verifies  atomic.Int32
}

var _ PasswordHasher = (*fakeHasher)(nil)

func (h *fakeHasher) Hash(plain string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + plain, nil
}

func (h *fakeHasher) Verify(plain, hash string) (bool, error) {
	h.verifies.Add(1)
	if h.verifyErr != nil {
		return false, h.verifyErr
	}
	if !strings.HasPrefix(hash, "hashed:") {
		return false, errs.ErrCrypto
	}
	return hash == "hashed:"+plain, nil
}

type sentMail struct {
	address string
	subject string
	code    string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor string // address that fails delivery
}

var _ Notifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) Send(_ context.Context, address, subject, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor != "" && address == n.failFor {
		return errors.New("smtp: connection refused")
	}
	n.sent = append(n.sent, sentMail{address: address, subject: subject, code: code})
	return nil
}

func (n *fakeNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMail{}
	}
	return n.sent[len(n.sent)-1]
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool

	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}
