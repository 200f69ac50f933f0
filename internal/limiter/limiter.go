// Package limiter throttles credential checks per (subject, client) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and, if not, when to retry.
	Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful attempt.
	Success(ctx context.Context, subject string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error)
}

// Policy configures the lockout window.
type Policy struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

// Subject normalizes a login identifier so that case variants share a counter.
func Subject(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

// HashIP returns a stable hash of the client host so raw addresses are never stored.
// The port part of a host:port address is ignored.
func HashIP(addr string) []byte {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	h := sha256.Sum256([]byte(addr))
	return h[:]
}
