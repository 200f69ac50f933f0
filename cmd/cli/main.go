// Command accounts is a CLI client for the account service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/accounts/internal/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "accounts")
	}
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "accounts")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "accounts")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

// saveToken stores tok, or removes the file when tok is empty.
func saveToken(tok string, exp time.Time) error {
	if tok == "" {
		err := os.Remove(tokenPath())
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

// loadToken returns the saved token. A zero expiry means the token never expires.
func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || (!tf.ExpiresAt.IsZero() && time.Now().After(tf.ExpiresAt)) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

func loadTLS(caPath string, skipVerify, plaintext bool) (credentials.TransportCredentials, error) {
	if plaintext {
		return insecure.NewCredentials(), nil
	}
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(addr, caPath string, skipVerify, plaintext bool) (*grpc.ClientConn, error) {
	creds, err := loadTLS(caPath, skipVerify, plaintext)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent("accounts-cli/"+version),
	)
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `accounts CLI
Usage:
  accounts -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  signup          -u <username> -e <email> -p <password> [-lang <tag>]   (saves token)
  confirm-signup  -c <code>
  login           -id <username|email> -p <password>                    (saves token)
  code            -e <email>                                            (mails a sign-in code)
  code-login      -e <email> -c <code>                                  (saves token)
  whoami
  username        -u <new username>
  confirm-username -c <code>
  password        -p <new password>
  confirm-password -c <code>
  email           -e <new email>
  confirm-email-1 -c <code from the current address>
  confirm-email-2 -c <code from the new address>
  delete
  confirm-delete  -c <code>
  cancel
  logout
`)
	os.Exit(2)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS for RPC calls.
func main() {
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	name := flag.Arg(0)
	if name == "version" {
		fmt.Printf("accounts %s (%s)\n", version, buildDate)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cc, err := dial(*addr, *caPath, *skipVerify, *plaintext)
	if err != nil {
		fail(err)
	}
	defer cc.Close()

	cl := client.New(cc)
	if tok, err := loadToken(); err == nil {
		cl.SetToken(tok)
	}
	before := cl.Token()

	if err := cmd(ctx, cl, flag.Args()[1:], os.Stdout); err != nil {
		fail(err)
	}
	if cl.Token() != before {
		if err := saveToken(cl.Token(), lastExpiry); err != nil {
			fail(err)
		}
	}
}

func fail(err error) {
	if st, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", st.Code(), st.Message())
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
