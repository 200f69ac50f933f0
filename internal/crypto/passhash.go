// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/and161185/accounts/internal/errs"
)

// Params is the argon2id work factor.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultParams are tuned for server-side hashing.
func DefaultParams() Params {
	return Params{Time: 3, Memory: 64 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}
}

// Upper bounds accepted from configuration and stored hashes.
const (
	maxTime   = 64
	maxMemory = 4 * 1024 * 1024 // KiB
	maxKeyLen = 1024
)

// Check reports whether argon2 can run with p.
func (p Params) Check() error {
	switch {
	case p.Time == 0 || p.Time > maxTime:
		return fmt.Errorf("argon2 time %d out of range", p.Time)
	case p.Threads == 0:
		return fmt.Errorf("argon2 threads must be positive")
	case p.Memory == 0 || p.Memory > maxMemory:
		return fmt.Errorf("argon2 memory %d KiB out of range", p.Memory)
	case p.KeyLen < 4 || p.KeyLen > maxKeyLen:
		return fmt.Errorf("argon2 key length %d out of range", p.KeyLen)
	}
	return nil
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword returns the raw Argon2id key of password using salt and p.
func HashPassword(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// Argon2Hasher produces and checks PHC-encoded argon2id strings.
type Argon2Hasher struct {
	params Params
}

// NewArgon2Hasher constructs a hasher with the given work factor.
func NewArgon2Hasher(p Params) *Argon2Hasher {
	return &Argon2Hasher{params: p}
}

// Hash returns $argon2id$v=19$m=..,t=..,p=..$salt$key for plain.
func (h *Argon2Hasher) Hash(plain string) (string, error) {
	if err := h.params.Check(); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrCrypto, err)
	}
	salt, err := RandBytes(int(h.params.SaltLen))
	if err != nil {
		return "", fmt.Errorf("%w: salt: %v", errs.ErrCrypto, err)
	}
	key := HashPassword([]byte(plain), salt, h.params)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches encoded. A malformed hash is an ErrCrypto, not a mismatch.
func (h *Argon2Hasher) Verify(plain, encoded string) (bool, error) {
	p, salt, want, err := decode(encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errs.ErrCrypto, err)
	}
	got := HashPassword([]byte(plain), salt, p)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Params{}, nil, nil, fmt.Errorf("bad hash format")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, fmt.Errorf("unsupported argon2 version")
	}
	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return Params{}, nil, nil, fmt.Errorf("bad params: %v", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("bad salt: %v", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("bad key: %v", err)
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	if err := p.Check(); err != nil {
		return Params{}, nil, nil, err
	}
	return p, salt, key, nil
}
