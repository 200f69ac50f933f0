package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/and161185/accounts/internal/api"
	"github.com/and161185/accounts/internal/client"
)

type command func(ctx context.Context, cl *client.Client, args []string, out io.Writer) error

// lastExpiry is the expiry of the most recent token a command received.
var lastExpiry time.Time

var commands = map[string]command{
	"signup":           signup,
	"confirm-signup":   confirmWith((*client.Client).ConfirmSignup),
	"login":            login,
	"code":             requestCode,
	"code-login":       codeLogin,
	"whoami":           whoami,
	"username":         changeUsername,
	"confirm-username": confirmWith((*client.Client).ConfirmUsernameChange),
	"password":         changePassword,
	"confirm-password": confirmWith((*client.Client).ConfirmPasswordChange),
	"email":            changeEmail,
	"confirm-email-1":  confirmEmailStepOne,
	"confirm-email-2":  confirmWith((*client.Client).ConfirmEmailStepTwo),
	"delete":           requestDeletion,
	"confirm-delete":   confirmDeletion,
	"cancel":           cancelAll,
	"logout":           logout,
}

func parse(name string, args []string, need ...string) (map[string]*string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	vals := map[string]*string{}
	for _, f := range []string{"u", "e", "p", "c", "id", "lang"} {
		vals[f] = fs.String(f, "", f)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for _, n := range need {
		if *vals[n] == "" {
			return nil, fmt.Errorf("%s: need -%s", name, n)
		}
	}
	return vals, nil
}

func signup(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("signup", args, "u", "e", "p")
	if err != nil {
		return err
	}
	resp, err := cl.Signup(ctx, &api.SignupRequest{Username: *v["u"], Email: *v["e"], Password: *v["p"], Language: *v["lang"]})
	if err != nil {
		return err
	}
	lastExpiry = resp.ExpiresAt
	fmt.Fprintln(out, resp.AccountID)
	fmt.Fprintln(out, "check your email for the confirmation code")
	return nil
}

func login(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("login", args, "id", "p")
	if err != nil {
		return err
	}
	resp, err := cl.Login(ctx, *v["id"], *v["p"])
	if err != nil {
		return err
	}
	lastExpiry = resp.ExpiresAt
	fmt.Fprintln(out, "ok")
	return nil
}

func requestCode(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("code", args, "e")
	if err != nil {
		return err
	}
	if err := cl.RequestLoginCode(ctx, *v["e"]); err != nil {
		return err
	}
	fmt.Fprintln(out, "if the address is registered, a code is on its way")
	return nil
}

func codeLogin(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("code-login", args, "e", "c")
	if err != nil {
		return err
	}
	resp, err := cl.ConfirmLoginCode(ctx, *v["e"], *v["c"])
	if err != nil {
		return err
	}
	lastExpiry = resp.ExpiresAt
	fmt.Fprintln(out, "ok")
	return nil
}

func whoami(ctx context.Context, cl *client.Client, _ []string, out io.Writer) error {
	acc, err := cl.GetAccount(ctx)
	if err != nil {
		return err
	}
	printJSON(out, acc)
	return nil
}

func changeUsername(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("username", args, "u")
	if err != nil {
		return err
	}
	return sent(out, cl.RequestUsernameChange(ctx, *v["u"]))
}

func changePassword(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("password", args, "p")
	if err != nil {
		return err
	}
	return sent(out, cl.RequestPasswordChange(ctx, *v["p"]))
}

func changeEmail(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("email", args, "e")
	if err != nil {
		return err
	}
	return sent(out, cl.RequestEmailChange(ctx, *v["e"]))
}

func confirmEmailStepOne(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("confirm-email-1", args, "c")
	if err != nil {
		return err
	}
	if err := cl.ConfirmEmailStepOne(ctx, *v["c"]); err != nil {
		return err
	}
	fmt.Fprintln(out, "check the new address for the second code")
	return nil
}

func requestDeletion(ctx context.Context, cl *client.Client, _ []string, out io.Writer) error {
	return sent(out, cl.RequestDeletion(ctx))
}

func confirmDeletion(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
	v, err := parse("confirm-delete", args, "c")
	if err != nil {
		return err
	}
	if err := cl.ConfirmDeletion(ctx, *v["c"]); err != nil {
		return err
	}
	fmt.Fprintln(out, "account deleted")
	return nil
}

func cancelAll(ctx context.Context, cl *client.Client, _ []string, out io.Writer) error {
	n, err := cl.CancelConfirmations(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "cancelled %d\n", n)
	return nil
}

func logout(ctx context.Context, cl *client.Client, _ []string, out io.Writer) error {
	if cl.Token() == "" {
		return errors.New("not logged in")
	}
	if err := cl.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "ok")
	return nil
}

// confirmWith builds a command that confirms a code and keeps the reissued token.
func confirmWith(fn func(*client.Client, context.Context, string) (*api.TokenResponse, error)) command {
	return func(ctx context.Context, cl *client.Client, args []string, out io.Writer) error {
		v, err := parse("confirm", args, "c")
		if err != nil {
			return err
		}
		resp, err := fn(cl, ctx, *v["c"])
		if err != nil {
			return err
		}
		lastExpiry = resp.ExpiresAt
		fmt.Fprintln(out, "ok")
		return nil
	}
}

func sent(out io.Writer, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "check your email for the confirmation code")
	return nil
}
