// Package idgen allocates random fixed-length identifiers with bounded collision retries.
package idgen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/and161185/accounts/internal/errs"
)

// Alphabets used by the service.
const (
	Alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Digits       = "0123456789"
)

// ExistsFunc reports whether id is already taken in the target table.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// InsertFunc persists a row under id. It must return errs.ErrIDCollision
// when the storage uniqueness constraint on id rejects the insert.
type InsertFunc func(ctx context.Context, id string) error

// Allocator draws identifiers of Length characters over Alphabet.
type Allocator struct {
	length     int
	alphabet   string
	retryLimit int
	rnd        io.Reader
}

// New constructs an allocator. retryLimit is the total number of draws allowed per call.
func New(length int, alphabet string, retryLimit int) *Allocator {
	if retryLimit < 1 {
		retryLimit = 1
	}
	return &Allocator{length: length, alphabet: alphabet, retryLimit: retryLimit, rnd: rand.Reader}
}

// Generate returns one uniformly random identifier without any collision check.
func (a *Allocator) Generate() (string, error) {
	if a.length <= 0 || a.alphabet == "" {
		return "", errors.New("idgen: empty length or alphabet")
	}
	max := big.NewInt(int64(len(a.alphabet)))
	out := make([]byte, a.length)
	for i := range out {
		n, err := rand.Int(a.rnd, max)
		if err != nil {
			return "", fmt.Errorf("idgen: %w", err)
		}
		out[i] = a.alphabet[n.Int64()]
	}
	return string(out), nil
}

// Allocate draws ids until one passes exists and insert, up to the retry limit.
// A collision from either step consumes one attempt; any other error is returned as is.
func (a *Allocator) Allocate(ctx context.Context, exists ExistsFunc, insert InsertFunc) (string, error) {
	for attempt := 0; attempt < a.retryLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id, err := a.Generate()
		if err != nil {
			return "", err
		}
		if exists != nil {
			taken, err := exists(ctx, id)
			if err != nil {
				return "", err
			}
			if taken {
				continue
			}
		}
		err = insert(ctx, id)
		if errors.Is(err, errs.ErrIDCollision) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", errs.ErrIdentifierExhaustion
}
