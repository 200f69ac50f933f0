// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Domain sentinels shared by repository, service and transport layers.
var (
	// ErrNotFound indicates the account or pending change does not exist, or is owned by another account.
	ErrNotFound = errors.New("not found")

	// ErrIdentifierExhaustion indicates the allocator ran out of retries without finding a free id.
	ErrIdentifierExhaustion = errors.New("identifier exhaustion")

	// ErrStepMismatch indicates a multi-phase change was confirmed at the wrong phase.
	ErrStepMismatch = errors.New("step mismatch")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username or email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrCrypto indicates an internal hashing failure, as opposed to a wrong password.
	ErrCrypto = errors.New("crypto failure")

	// ErrInvalidToken indicates a bad signature, an expired token or a stale change stamp.
	ErrInvalidToken = errors.New("invalid token")

	// ErrDelivery indicates the notifier could not deliver a confirmation code.
	ErrDelivery = errors.New("delivery failed")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation indicates malformed input rejected before reaching storage.
	ErrValidation = errors.New("validation")
)

// ErrIDCollision is returned by storage when an insert hits the primary key of
// a freshly drawn identifier. Only the allocator consumes it.
var ErrIDCollision = errors.New("identifier collision")
