// Package client is a typed client for the account API.
package client

import (
	"context"
	"sync"

	"github.com/and161185/accounts/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the account service over a gRPC connection using the JSON codec.
// Calls that return a token replace the one the client sends.
type Client struct {
	cc grpc.ClientConnInterface

	mu    sync.RWMutex
	token string
}

// New wraps an established connection.
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// SetToken sets the bearer token sent with every call.
func (c *Client) SetToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if t := c.Token(); t != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+t)
	}
	return c.cc.Invoke(ctx, api.FullMethod(method), in, out, grpc.CallContentSubtype(api.CodecName))
}

// Signup creates an account and keeps its token.
func (c *Client) Signup(ctx context.Context, in *api.SignupRequest) (*api.SignupResponse, error) {
	out := new(api.SignupResponse)
	if err := c.invoke(ctx, api.MethodSignup, in, out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login signs in with a password and keeps the token.
func (c *Client) Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error) {
	out := new(api.LoginResponse)
	in := &api.LoginRequest{Identifier: identifier, Password: password}
	if err := c.invoke(ctx, api.MethodLogin, in, out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// RequestLoginCode asks for a sign-in code.
func (c *Client) RequestLoginCode(ctx context.Context, email string) error {
	return c.invoke(ctx, api.MethodRequestLoginCode, &api.LoginCodeRequest{Email: email}, new(api.Empty))
}

// ConfirmLoginCode signs in with a mailed code and keeps the token.
func (c *Client) ConfirmLoginCode(ctx context.Context, email, code string) (*api.LoginResponse, error) {
	out := new(api.LoginResponse)
	in := &api.ConfirmLoginCodeRequest{Email: email, Code: code}
	if err := c.invoke(ctx, api.MethodConfirmLoginCode, in, out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Logout revokes the current token server side, where supported, and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.invoke(ctx, api.MethodLogout, &api.Empty{}, new(api.Empty)); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// GetAccount returns the caller's account.
func (c *Client) GetAccount(ctx context.Context) (*api.Account, error) {
	out := new(api.Account)
	if err := c.invoke(ctx, api.MethodGetAccount, &api.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmSignup verifies the account.
func (c *Client) ConfirmSignup(ctx context.Context, code string) (*api.TokenResponse, error) {
	return c.confirmWithToken(ctx, api.MethodConfirmSignup, code)
}

// RequestUsernameChange proposes a new username.
func (c *Client) RequestUsernameChange(ctx context.Context, username string) error {
	return c.invoke(ctx, api.MethodRequestUsernameChange, &api.UsernameRequest{Username: username}, new(api.Empty))
}

// ConfirmUsernameChange applies a username change.
func (c *Client) ConfirmUsernameChange(ctx context.Context, code string) (*api.TokenResponse, error) {
	return c.confirmWithToken(ctx, api.MethodConfirmUsernameChange, code)
}

// RequestPasswordChange proposes a new password.
func (c *Client) RequestPasswordChange(ctx context.Context, password string) error {
	return c.invoke(ctx, api.MethodRequestPasswordChange, &api.PasswordRequest{Password: password}, new(api.Empty))
}

// ConfirmPasswordChange applies a password change.
func (c *Client) ConfirmPasswordChange(ctx context.Context, code string) (*api.TokenResponse, error) {
	return c.confirmWithToken(ctx, api.MethodConfirmPasswordChange, code)
}

// RequestEmailChange proposes a new email address.
func (c *Client) RequestEmailChange(ctx context.Context, email string) error {
	return c.invoke(ctx, api.MethodRequestEmailChange, &api.EmailRequest{Email: email}, new(api.Empty))
}

// ConfirmEmailStepOne confirms the code sent to the current address.
func (c *Client) ConfirmEmailStepOne(ctx context.Context, code string) error {
	return c.invoke(ctx, api.MethodConfirmEmailStepOne, &api.ConfirmRequest{Code: code}, new(api.Empty))
}

// ConfirmEmailStepTwo confirms the code sent to the new address.
func (c *Client) ConfirmEmailStepTwo(ctx context.Context, code string) (*api.TokenResponse, error) {
	return c.confirmWithToken(ctx, api.MethodConfirmEmailStepTwo, code)
}

// RequestDeletion asks for a deletion code.
func (c *Client) RequestDeletion(ctx context.Context) error {
	return c.invoke(ctx, api.MethodRequestDeletion, &api.Empty{}, new(api.Empty))
}

// ConfirmDeletion deletes the account and forgets the token.
func (c *Client) ConfirmDeletion(ctx context.Context, code string) error {
	if err := c.invoke(ctx, api.MethodConfirmDeletion, &api.ConfirmRequest{Code: code}, new(api.Empty)); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// CancelConfirmations discards every pending change.
func (c *Client) CancelConfirmations(ctx context.Context) (int64, error) {
	out := new(api.CancelResponse)
	if err := c.invoke(ctx, api.MethodCancelConfirmations, &api.Empty{}, out); err != nil {
		return 0, err
	}
	return out.Cancelled, nil
}

func (c *Client) confirmWithToken(ctx context.Context, method, code string) (*api.TokenResponse, error) {
	out := new(api.TokenResponse)
	if err := c.invoke(ctx, method, &api.ConfirmRequest{Code: code}, out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out, nil
}
