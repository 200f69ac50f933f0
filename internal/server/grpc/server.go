// Package grpcserver exposes the account API over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/accounts/internal/api"
	"github.com/and161185/accounts/internal/convert"
	"github.com/and161185/accounts/internal/model"
	"github.com/and161185/accounts/internal/service"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Accounts is the service layer the handlers call.
type Accounts interface {
	Authenticator
	Signup(ctx context.Context, in service.SignupInput) (model.Tokens, string, error)
	ConfirmSignup(ctx context.Context, acc *model.Account, code string) (model.Tokens, error)
	Login(ctx context.Context, identifier, password, ip string) (model.Tokens, *model.Account, error)
	RequestLoginCode(ctx context.Context, email, ip string) error
	ConfirmLoginCode(ctx context.Context, email, code, ip string) (model.Tokens, *model.Account, error)
	Logout(ctx context.Context, raw string) error
	RequestUsernameChange(ctx context.Context, acc *model.Account, username string) error
	ConfirmUsernameChange(ctx context.Context, acc *model.Account, code string) (model.Tokens, error)
	RequestPasswordChange(ctx context.Context, acc *model.Account, password string) error
	ConfirmPasswordChange(ctx context.Context, acc *model.Account, code string) (model.Tokens, error)
	RequestEmailChange(ctx context.Context, acc *model.Account, email string) error
	ConfirmEmailStepOne(ctx context.Context, acc *model.Account, code string) error
	ConfirmEmailStepTwo(ctx context.Context, acc *model.Account, code string) (model.Tokens, error)
	RequestDeletion(ctx context.Context, acc *model.Account) error
	ConfirmDeletion(ctx context.Context, acc *model.Account, code string) error
	CancelConfirmations(ctx context.Context, acc *model.Account) (int64, error)
}

var _ Accounts = (*service.AccountService)(nil)

// Server wires the account service into gRPC handlers.
type Server struct {
	accounts Accounts
	validate *validator.Validate
	log      *zap.Logger
}

var _ api.AccountsServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(accounts Accounts, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{accounts: accounts, validate: validator.New(), log: log}
}

// --- Sign-in ---

// Signup creates an unverified account and mails its confirmation code.
func (s *Server) Signup(ctx context.Context, req *api.SignupRequest) (*api.SignupResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	tok, id, err := s.accounts.Signup(ctx, service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Language: req.Language,
	})
	if err != nil {
		return nil, s.fail(ctx, err, "signup")
	}
	return &api.SignupResponse{AccountID: id, Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt}, nil
}

// Login authenticates by email or username and password.
func (s *Server) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	tok, acc, err := s.accounts.Login(ctx, req.Identifier, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, s.fail(ctx, err, "login")
	}
	return convert.ToLoginResponse(acc.ID, tok), nil
}

// RequestLoginCode mails a sign-in code if the address belongs to an account.
func (s *Server) RequestLoginCode(ctx context.Context, req *api.LoginCodeRequest) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := s.accounts.RequestLoginCode(ctx, req.Email, remoteIP(ctx)); err != nil {
		return nil, s.fail(ctx, err, "request login code")
	}
	return &api.Empty{}, nil
}

// ConfirmLoginCode signs in with a mailed code.
func (s *Server) ConfirmLoginCode(ctx context.Context, req *api.ConfirmLoginCodeRequest) (*api.LoginResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	tok, acc, err := s.accounts.ConfirmLoginCode(ctx, req.Email, req.Code, remoteIP(ctx))
	if err != nil {
		return nil, s.fail(ctx, err, "confirm login code")
	}
	return convert.ToLoginResponse(acc.ID, tok), nil
}

// Logout revokes the caller's token where the token strategy supports it.
func (s *Server) Logout(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	raw, ok := TokenFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	if err := s.accounts.Logout(ctx, raw); err != nil {
		return nil, s.fail(ctx, err, "logout")
	}
	return &api.Empty{}, nil
}

// GetAccount returns the caller's public account view.
func (s *Server) GetAccount(ctx context.Context, _ *api.Empty) (*api.Account, error) {
	acc, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	return convert.ToAPIAccount(acc), nil
}

// --- Confirmations ---

// ConfirmSignup verifies the account.
func (s *Server) ConfirmSignup(ctx context.Context, req *api.ConfirmRequest) (*api.TokenResponse, error) {
	return s.confirmWithToken(ctx, req, "confirm signup", s.accounts.ConfirmSignup)
}

// RequestUsernameChange mails a code that renames the account.
func (s *Server) RequestUsernameChange(ctx context.Context, req *api.UsernameRequest) (*api.Empty, error) {
	return s.request(ctx, req, "request username change", func(ctx context.Context, acc *model.Account) error {
		return s.accounts.RequestUsernameChange(ctx, acc, req.Username)
	})
}

// ConfirmUsernameChange applies a username change.
func (s *Server) ConfirmUsernameChange(ctx context.Context, req *api.ConfirmRequest) (*api.TokenResponse, error) {
	return s.confirmWithToken(ctx, req, "confirm username change", s.accounts.ConfirmUsernameChange)
}

// RequestPasswordChange mails a code that replaces the password.
func (s *Server) RequestPasswordChange(ctx context.Context, req *api.PasswordRequest) (*api.Empty, error) {
	return s.request(ctx, req, "request password change", func(ctx context.Context, acc *model.Account) error {
		return s.accounts.RequestPasswordChange(ctx, acc, req.Password)
	})
}

// ConfirmPasswordChange applies a password change.
func (s *Server) ConfirmPasswordChange(ctx context.Context, req *api.ConfirmRequest) (*api.TokenResponse, error) {
	return s.confirmWithToken(ctx, req, "confirm password change", s.accounts.ConfirmPasswordChange)
}

// RequestEmailChange mails a step one code to the current address.
func (s *Server) RequestEmailChange(ctx context.Context, req *api.EmailRequest) (*api.Empty, error) {
	return s.request(ctx, req, "request email change", func(ctx context.Context, acc *model.Account) error {
		return s.accounts.RequestEmailChange(ctx, acc, req.Email)
	})
}

// ConfirmEmailStepOne advances an email change and mails the new address.
func (s *Server) ConfirmEmailStepOne(ctx context.Context, req *api.ConfirmRequest) (*api.Empty, error) {
	return s.request(ctx, req, "confirm email step one", func(ctx context.Context, acc *model.Account) error {
		return s.accounts.ConfirmEmailStepOne(ctx, acc, req.Code)
	})
}

// ConfirmEmailStepTwo applies an email change.
func (s *Server) ConfirmEmailStepTwo(ctx context.Context, req *api.ConfirmRequest) (*api.TokenResponse, error) {
	return s.confirmWithToken(ctx, req, "confirm email step two", s.accounts.ConfirmEmailStepTwo)
}

// RequestDeletion mails a code that deletes the account.
func (s *Server) RequestDeletion(ctx context.Context, req *api.Empty) (*api.Empty, error) {
	return s.request(ctx, req, "request deletion", s.accounts.RequestDeletion)
}

// ConfirmDeletion deletes the account.
func (s *Server) ConfirmDeletion(ctx context.Context, req *api.ConfirmRequest) (*api.Empty, error) {
	return s.request(ctx, req, "confirm deletion", func(ctx context.Context, acc *model.Account) error {
		return s.accounts.ConfirmDeletion(ctx, acc, req.Code)
	})
}

// CancelConfirmations discards every pending change of the caller.
func (s *Server) CancelConfirmations(ctx context.Context, _ *api.Empty) (*api.CancelResponse, error) {
	acc, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.accounts.CancelConfirmations(ctx, acc)
	if err != nil {
		return nil, s.fail(ctx, err, "cancel confirmations")
	}
	return &api.CancelResponse{Cancelled: n}, nil
}

// --- helpers ---

func (s *Server) request(ctx context.Context, req any, op string, fn func(context.Context, *model.Account) error) (*api.Empty, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	acc, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, acc); err != nil {
		return nil, s.fail(ctx, err, op)
	}
	return &api.Empty{}, nil
}

func (s *Server) confirmWithToken(ctx context.Context, req *api.ConfirmRequest, op string,
	fn func(context.Context, *model.Account, string) (model.Tokens, error)) (*api.TokenResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	acc, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := fn(ctx, acc, req.Code)
	if err != nil {
		return nil, s.fail(ctx, err, op)
	}
	return convert.ToTokenResponse(tok), nil
}

func (s *Server) account(ctx context.Context) (*model.Account, error) {
	acc, ok := AccountFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	return acc, nil
}

// check runs struct validation and reports failures as InvalidArgument.
func (s *Server) check(req any) error {
	if _, ok := req.(*api.Empty); ok {
		return nil
	}
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		return status.Error(codes.InvalidArgument, strings.Join(msgs, "; "))
	}
	return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "numeric":
		return field + " must be digits"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// fail maps err to a status and logs errors that map to Internal.
func (s *Server) fail(ctx context.Context, err error, op string) error {
	st := toStatus(err, op)
	if status.Code(st) == codes.Internal {
		fields := []zap.Field{zap.String("op", op), zap.Error(err)}
		if acc, ok := AccountFromCtx(ctx); ok {
			fields = append(fields, zap.String("account_id", acc.ID))
		}
		s.log.Error("request failed", fields...)
	}
	return st
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}
