package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/accounts/internal/clock"
	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/idgen"
	"github.com/and161185/accounts/internal/limiter"
	"github.com/and161185/accounts/internal/metrics"
	"github.com/and161185/accounts/internal/model"
	"github.com/and161185/accounts/internal/repository"
	"github.com/and161185/accounts/internal/token"
)

// Notifier delivers a confirmation code.
type Notifier interface {
	Send(ctx context.Context, address, subject, title, code string) error
}

// Revoker is implemented by token issuers that can revoke a single token.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// Copy is the subject and title of one confirmation email.
type Copy struct {
	Subject string
	Title   string
}

// Messages holds the email copy of every flow.
type Messages struct {
	Signup   Copy
	Login    Copy
	Username Copy
	Password Copy
	EmailOne Copy // sent to the current address
	EmailTwo Copy // sent to the new address
	Deletion Copy
}

// SignupInput is a new account request.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Language string
}

// AccountService implements the account flows on top of the confirmation engine.
type AccountService struct {
	accounts repository.AccountRepository
	engine   *ConfirmationEngine
	ids      *idgen.Allocator
	hasher   PasswordHasher
	tokens   token.Issuer
	notifier Notifier
	lim      limiter.Limiter
	msgs     Messages
	clock    clock.Clock

	decoyOnce sync.Once
	decoy     string // verified in place of a missing account's hash
}

// Deps groups AccountService collaborators.
type Deps struct {
	Accounts   repository.AccountRepository
	Engine     *ConfirmationEngine
	AccountIDs *idgen.Allocator
	Hasher     PasswordHasher
	Tokens     token.Issuer
	Notifier   Notifier
	Limiter    limiter.Limiter
	Messages   Messages
	Clock      clock.Clock
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(d Deps) *AccountService {
	return &AccountService{
		accounts: d.Accounts,
		engine:   d.Engine,
		ids:      d.AccountIDs,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		notifier: d.Notifier,
		lim:      d.Limiter,
		msgs:     d.Messages,
		clock:    d.Clock,
	}
}

// Signup creates an unverified account, mails a verification code and returns a token.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (model.Tokens, string, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return model.Tokens{}, "", fmt.Errorf("%w: empty username/email/password", errs.ErrValidation)
	}
	if in.Language == "" {
		in.Language = "en"
	}
	pwd, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.Tokens{}, "", err
	}
	now := s.clock.Now()
	accountID, err := s.ids.Allocate(ctx, s.accounts.Exists, func(ctx context.Context, id string) error {
		return s.accounts.Create(ctx, &model.Account{
			ID:          id,
			Username:    in.Username,
			Email:       in.Email,
			PwdHash:     pwd,
			Language:    in.Language,
			ChangeStamp: now,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return model.Tokens{}, "", fmt.Errorf("signup: %w", err)
	}

	m := model.Mutation{Verified: model.Ptr(true)}
	if err := s.proposeAndSend(ctx, accountID, m, in.Email, s.msgs.Signup); err != nil {
		return model.Tokens{}, accountID, err
	}
	tok, err := s.tokens.Issue(ctx, accountID)
	if err != nil {
		return model.Tokens{}, accountID, err
	}
	return tok, accountID, nil
}

// ConfirmSignup verifies the account and returns a fresh token.
func (s *AccountService) ConfirmSignup(ctx context.Context, acc *model.Account, code string) (model.Tokens, error) {
	return s.confirmAndReissue(ctx, acc.ID, code, kindSignup)
}

// Login checks a password for an email or username, applying lockouts per (subject, ip).
func (s *AccountService) Login(ctx context.Context, identifier, password, ip string) (model.Tokens, *model.Account, error) {
	subject := limiter.Subject(identifier)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	if !allowed {
		return model.Tokens{}, nil, errs.ErrRateLimited
	}

	acc, err := s.lookupIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, err
	}
	hash := s.decoyHash()
	if acc != nil {
		hash = acc.PwdHash
	}
	ok, err := s.hasher.Verify(password, hash)
	if acc == nil {
		ok = false
	} else if err != nil {
		return model.Tokens{}, nil, err
	}
	if !ok {
		return model.Tokens{}, nil, s.failure(ctx, subject, ipHash)
	}

	_ = s.lim.Success(ctx, subject, ipHash)

	tok, err := s.tokens.Issue(ctx, acc.ID)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return tok, acc, nil
}

// RequestLoginCode mails a single-use sign-in code. Unknown addresses succeed silently.
func (s *AccountService) RequestLoginCode(ctx context.Context, email, ip string) error {
	subject := limiter.Subject(email)
	allowed, _, err := s.lim.Allow(ctx, subject, limiter.HashIP(ip))
	if err != nil {
		return err
	}
	if !allowed {
		return errs.ErrRateLimited
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.proposeAndSend(ctx, acc.ID, model.Mutation{}, acc.Email, s.msgs.Login)
}

// ConfirmLoginCode consumes a sign-in code and returns a token.
func (s *AccountService) ConfirmLoginCode(ctx context.Context, email, code, ip string) (model.Tokens, *model.Account, error) {
	subject := limiter.Subject(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	if !allowed {
		return model.Tokens{}, nil, errs.ErrRateLimited
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, err
	}
	if acc == nil {
		return model.Tokens{}, nil, s.failure(ctx, subject, ipHash)
	}
	tok, err := s.confirmAndReissue(ctx, acc.ID, code, kindLogin)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, s.failure(ctx, subject, ipHash)
	}
	if err != nil {
		return model.Tokens{}, nil, err
	}
	_ = s.lim.Success(ctx, subject, ipHash)
	return tok, acc, nil
}

// Authenticate resolves a bearer token to its account.
func (s *AccountService) Authenticate(ctx context.Context, raw string) (*model.Account, error) {
	return s.tokens.Verify(ctx, raw)
}

// Logout revokes raw when the issuer keeps per-token state. Stamp tokens cannot be revoked one by one.
func (s *AccountService) Logout(ctx context.Context, raw string) error {
	r, ok := s.tokens.(Revoker)
	if !ok {
		return nil
	}
	return r.Revoke(ctx, raw)
}

// RequestUsernameChange mails a code that renames the account.
func (s *AccountService) RequestUsernameChange(ctx context.Context, acc *model.Account, username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", errs.ErrValidation)
	}
	if err := s.ensureFree(ctx, s.accounts.GetByUsername, username); err != nil {
		return err
	}
	return s.proposeAndSend(ctx, acc.ID, model.Mutation{Username: &username}, acc.Email, s.msgs.Username)
}

// ConfirmUsernameChange applies a username change and returns a fresh token.
func (s *AccountService) ConfirmUsernameChange(ctx context.Context, acc *model.Account, code string) (model.Tokens, error) {
	return s.confirmAndReissue(ctx, acc.ID, code, kindUsername)
}

// RequestPasswordChange mails a code that replaces the password.
func (s *AccountService) RequestPasswordChange(ctx context.Context, acc *model.Account, password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty password", errs.ErrValidation)
	}
	return s.proposeAndSend(ctx, acc.ID, model.Mutation{Password: &password}, acc.Email, s.msgs.Password)
}

// ConfirmPasswordChange applies a password change and returns a fresh token.
func (s *AccountService) ConfirmPasswordChange(ctx context.Context, acc *model.Account, code string) (model.Tokens, error) {
	return s.confirmAndReissue(ctx, acc.ID, code, kindPassword)
}

// RequestDeletion mails a code that deletes the account.
func (s *AccountService) RequestDeletion(ctx context.Context, acc *model.Account) error {
	return s.proposeAndSend(ctx, acc.ID, model.Mutation{Delete: true}, acc.Email, s.msgs.Deletion)
}

// ConfirmDeletion removes the account.
func (s *AccountService) ConfirmDeletion(ctx context.Context, acc *model.Account, code string) error {
	return s.confirmKind(ctx, acc.ID, code, kindDelete)
}

// CancelConfirmations discards every pending change of the account.
func (s *AccountService) CancelConfirmations(ctx context.Context, acc *model.Account) (int64, error) {
	return s.engine.CancelAll(ctx, acc.ID)
}

// decoyHash is a hash of no account's password, so unknown identifiers cost one verify too.
func (s *AccountService) decoyHash() string {
	s.decoyOnce.Do(func() {
		s.decoy, _ = s.hasher.Hash("decoy password for unknown accounts")
	})
	return s.decoy
}

func (s *AccountService) lookupIdentifier(ctx context.Context, identifier string) (*model.Account, error) {
	if strings.Contains(identifier, "@") {
		return s.accounts.GetByEmail(ctx, identifier)
	}
	return s.accounts.GetByUsername(ctx, identifier)
}

func (s *AccountService) failure(ctx context.Context, subject string, ipHash []byte) error {
	if blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash); ferr == nil && blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrUnauthorized
}

func (s *AccountService) ensureFree(ctx context.Context, get func(context.Context, string) (*model.Account, error), v string) error {
	_, err := get(ctx, v)
	switch {
	case err == nil:
		return errs.ErrAlreadyExists
	case errors.Is(err, errs.ErrNotFound):
		return nil
	default:
		return err
	}
}

// proposeAndSend stores m and mails its code. If delivery fails the change is cancelled.
func (s *AccountService) proposeAndSend(ctx context.Context, accountID string, m model.Mutation, address string, c Copy) error {
	code, err := s.engine.Propose(ctx, accountID, m)
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, address, c.Subject, c.Title, code); err != nil {
		metrics.DeliveryFailures.Inc()
		_ = s.engine.Cancel(ctx, code)
		if !errors.Is(err, errs.ErrDelivery) {
			err = fmt.Errorf("%w: %v", errs.ErrDelivery, err)
		}
		return err
	}
	return nil
}

// confirmKind confirms code only if it was proposed by the flow named kind.
func (s *AccountService) confirmKind(ctx context.Context, accountID, code, kind string) error {
	c, err := s.engine.Lookup(ctx, accountID, code)
	if err != nil {
		return err
	}
	if kindOf(c.Mutation) != kind {
		return errs.ErrNotFound
	}
	_, err = s.engine.Confirm(ctx, accountID, code)
	return err
}

func (s *AccountService) confirmAndReissue(ctx context.Context, accountID, code, kind string) (model.Tokens, error) {
	if err := s.confirmKind(ctx, accountID, code, kind); err != nil {
		return model.Tokens{}, err
	}
	return s.tokens.Issue(ctx, accountID)
}
