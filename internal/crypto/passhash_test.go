package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/and161185/accounts/internal/errs"
)

func fastParams() Params {
	return Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}
}

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHashPassword_DependsOnSaltAndPassword(t *testing.T) {
	t.Parallel()

	p := fastParams()
	pw := []byte("p@ssw0rd")
	salt := []byte("NaCl-16-bytes?")

	h1 := HashPassword(pw, salt, p)
	if !bytes.Equal(h1, HashPassword(pw, salt, p)) {
		t.Fatalf("hash not deterministic for same input")
	}
	if bytes.Equal(h1, HashPassword(pw, []byte("another-salt----"), p)) {
		t.Fatalf("hash should differ when salt differs")
	}
	if bytes.Equal(h1, HashPassword([]byte("p@ssw0rd!"), salt, p)) {
		t.Fatalf("hash should differ when password differs")
	}
}

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(fastParams())
	enc, err := h.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(enc, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", enc)
	}

	ok, err := h.Verify("pw123", enc)
	if err != nil || !ok {
		t.Fatalf("Verify(correct): ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("pw124", enc)
	if err != nil || ok {
		t.Fatalf("Verify(wrong): ok=%v err=%v", ok, err)
	}

	again, _ := h.Hash("pw123")
	if again == enc {
		t.Fatalf("two hashes of the same password share a salt")
	}
}

func TestArgon2Hasher_VerifyUsesEncodedParams(t *testing.T) {
	t.Parallel()

	old := NewArgon2Hasher(fastParams())
	enc, err := old.Hash("secret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	stronger := fastParams()
	stronger.Time = 2
	ok, err := NewArgon2Hasher(stronger).Verify("secret", enc)
	if err != nil || !ok {
		t.Fatalf("hash made with older params must still verify: ok=%v err=%v", ok, err)
	}
}

func TestArgon2Hasher_MalformedHashIsCryptoFailure(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(fastParams())
	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x$c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=8,t=1,p=0$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8,t=0,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$",
	} {
		ok, err := h.Verify("pw", bad)
		if ok || !errors.Is(err, errs.ErrCrypto) {
			t.Fatalf("Verify(%q): ok=%v err=%v, want ErrCrypto", bad, ok, err)
		}
	}
}

func TestArgon2Hasher_HashRejectsUnusableParams(t *testing.T) {
	t.Parallel()

	for name, mutate := range map[string]func(*Params){
		"threads": func(p *Params) { p.Threads = 0 },
		"time":    func(p *Params) { p.Time = 0 },
		"memory":  func(p *Params) { p.Memory = 0 },
		"key":     func(p *Params) { p.KeyLen = 0 },
	} {
		p := fastParams()
		mutate(&p)
		enc, err := NewArgon2Hasher(p).Hash("pw")
		if enc != "" || !errors.Is(err, errs.ErrCrypto) {
			t.Fatalf("%s: Hash=%q err=%v, want ErrCrypto", name, enc, err)
		}
	}
}

func TestDefaultParams_Usable(t *testing.T) {
	t.Parallel()

	if err := DefaultParams().Check(); err != nil {
		t.Fatalf("DefaultParams: %v", err)
	}
}
