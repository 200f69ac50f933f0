package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "accounts.v1.Accounts"

// Method names.
const (
	MethodSignup                = "Signup"
	MethodConfirmSignup         = "ConfirmSignup"
	MethodLogin                 = "Login"
	MethodRequestLoginCode      = "RequestLoginCode"
	MethodConfirmLoginCode      = "ConfirmLoginCode"
	MethodLogout                = "Logout"
	MethodGetAccount            = "GetAccount"
	MethodRequestUsernameChange = "RequestUsernameChange"
	MethodConfirmUsernameChange = "ConfirmUsernameChange"
	MethodRequestPasswordChange = "RequestPasswordChange"
	MethodConfirmPasswordChange = "ConfirmPasswordChange"
	MethodRequestEmailChange    = "RequestEmailChange"
	MethodConfirmEmailStepOne   = "ConfirmEmailStepOne"
	MethodConfirmEmailStepTwo   = "ConfirmEmailStepTwo"
	MethodRequestDeletion       = "RequestDeletion"
	MethodConfirmDeletion       = "ConfirmDeletion"
	MethodCancelConfirmations   = "CancelConfirmations"
)

// FullMethod returns the /service/method path of name.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// AccountsServer is the server API of the account service.
type AccountsServer interface {
	Signup(context.Context, *SignupRequest) (*SignupResponse, error)
	ConfirmSignup(context.Context, *ConfirmRequest) (*TokenResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RequestLoginCode(context.Context, *LoginCodeRequest) (*Empty, error)
	ConfirmLoginCode(context.Context, *ConfirmLoginCodeRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	GetAccount(context.Context, *Empty) (*Account, error)
	RequestUsernameChange(context.Context, *UsernameRequest) (*Empty, error)
	ConfirmUsernameChange(context.Context, *ConfirmRequest) (*TokenResponse, error)
	RequestPasswordChange(context.Context, *PasswordRequest) (*Empty, error)
	ConfirmPasswordChange(context.Context, *ConfirmRequest) (*TokenResponse, error)
	RequestEmailChange(context.Context, *EmailRequest) (*Empty, error)
	ConfirmEmailStepOne(context.Context, *ConfirmRequest) (*Empty, error)
	ConfirmEmailStepTwo(context.Context, *ConfirmRequest) (*TokenResponse, error)
	RequestDeletion(context.Context, *Empty) (*Empty, error)
	ConfirmDeletion(context.Context, *ConfirmRequest) (*Empty, error)
	CancelConfirmations(context.Context, *Empty) (*CancelResponse, error)
}

// PublicMethods lists the calls that need no bearer token.
var PublicMethods = map[string]bool{
	FullMethod(MethodSignup):           true,
	FullMethod(MethodLogin):            true,
	FullMethod(MethodRequestLoginCode): true,
	FullMethod(MethodConfirmLoginCode): true,
}

// RegisterAccountsServer registers srv on s.
func RegisterAccountsServer(s grpc.ServiceRegistrar, srv AccountsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the account service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSignup, AccountsServer.Signup),
		unary(MethodConfirmSignup, AccountsServer.ConfirmSignup),
		unary(MethodLogin, AccountsServer.Login),
		unary(MethodRequestLoginCode, AccountsServer.RequestLoginCode),
		unary(MethodConfirmLoginCode, AccountsServer.ConfirmLoginCode),
		unary(MethodLogout, AccountsServer.Logout),
		unary(MethodGetAccount, AccountsServer.GetAccount),
		unary(MethodRequestUsernameChange, AccountsServer.RequestUsernameChange),
		unary(MethodConfirmUsernameChange, AccountsServer.ConfirmUsernameChange),
		unary(MethodRequestPasswordChange, AccountsServer.RequestPasswordChange),
		unary(MethodConfirmPasswordChange, AccountsServer.ConfirmPasswordChange),
		unary(MethodRequestEmailChange, AccountsServer.RequestEmailChange),
		unary(MethodConfirmEmailStepOne, AccountsServer.ConfirmEmailStepOne),
		unary(MethodConfirmEmailStepTwo, AccountsServer.ConfirmEmailStepTwo),
		unary(MethodRequestDeletion, AccountsServer.RequestDeletion),
		unary(MethodConfirmDeletion, AccountsServer.ConfirmDeletion),
		unary(MethodCancelConfirmations, AccountsServer.CancelConfirmations),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "accounts/v1/accounts",
}

// unary builds the method handler grpc.Server dispatches to, decoding into Req
// and running the configured interceptor chain.
func unary[Req, Resp any](name string, call func(AccountsServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AccountsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AccountsServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
