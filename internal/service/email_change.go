package service

import (
	"context"
	"fmt"

	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
)

// The email change proves control of both addresses: a step one code goes to
// the current address, and only after it is confirmed does a step two code go
// to the new one. Confirming step two applies the change.

// RequestEmailChange proposes step one and mails its code to the current address.
func (s *AccountService) RequestEmailChange(ctx context.Context, acc *model.Account, newEmail string) error {
	if newEmail == "" {
		return fmt.Errorf("%w: empty email", errs.ErrValidation)
	}
	if err := s.ensureFree(ctx, s.accounts.GetByEmail, newEmail); err != nil {
		return err
	}
	step := emailStepOne
	m := model.Mutation{Email: &newEmail, Step: &step}
	return s.proposeAndSend(ctx, acc.ID, m, acc.Email, s.msgs.EmailOne)
}

// ConfirmEmailStepOne replaces the step one record with a step two record mailed to the new address.
func (s *AccountService) ConfirmEmailStepOne(ctx context.Context, acc *model.Account, code string) error {
	c, err := s.emailChange(ctx, acc.ID, code, emailStepOne)
	if err != nil {
		return err
	}
	// a concurrent confirmation of the same code loses here with ErrNotFound
	if err := s.engine.Cancel(ctx, c.ID); err != nil {
		return err
	}
	step := emailStepTwo
	m := model.Mutation{Email: c.Email, Step: &step}
	return s.proposeAndSend(ctx, acc.ID, m, *c.Email, s.msgs.EmailTwo)
}

// ConfirmEmailStepTwo applies the email change and returns a fresh token.
func (s *AccountService) ConfirmEmailStepTwo(ctx context.Context, acc *model.Account, code string) (model.Tokens, error) {
	if _, err := s.emailChange(ctx, acc.ID, code, emailStepTwo); err != nil {
		return model.Tokens{}, err
	}
	if _, err := s.engine.Confirm(ctx, acc.ID, code); err != nil {
		return model.Tokens{}, err
	}
	return s.tokens.Issue(ctx, acc.ID)
}

// emailChange loads an email change record and checks its phase.
func (s *AccountService) emailChange(ctx context.Context, accountID, code string, want int16) (*model.PendingChange, error) {
	c, err := s.engine.Lookup(ctx, accountID, code)
	if err != nil {
		return nil, err
	}
	if kindOf(c.Mutation) != kindEmail {
		return nil, errs.ErrNotFound
	}
	if c.Step == nil || *c.Step != want {
		return nil, fmt.Errorf("%w: want step %d", errs.ErrStepMismatch, want)
	}
	return c, nil
}
