package service

import (
	"errors"

	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
)

// Change kinds, derived from which fields a mutation sets.
const (
	kindSignup   = "signup"
	kindLogin    = "login"
	kindUsername = "username"
	kindPassword = "password"
	kindEmail    = "email"
	kindDelete   = "delete"
)

// Email change phases.
const (
	emailStepOne int16 = 1
	emailStepTwo int16 = 2
)

func kindOf(m model.Mutation) string {
	switch {
	case m.Empty():
		return kindLogin
	case m.Delete:
		return kindDelete
	case m.Email != nil:
		return kindEmail
	case m.Username != nil:
		return kindUsername
	case m.Password != nil:
		return kindPassword
	default:
		return kindSignup
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrStepMismatch):
		return "step_mismatch"
	case errors.Is(err, errs.ErrAlreadyExists):
		return "conflict"
	default:
		return "error"
	}
}
