package grpcserver

import (
	"context"
	"errors"

	"github.com/and161185/accounts/internal/errs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC statuses. Unclassified errors become
// Internal without their text, so storage details never reach clients.
func toStatus(err error, op string) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrStepMismatch):
		return status.Error(codes.FailedPrecondition, "wrong confirmation step")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "bad credentials")
	case errors.Is(err, errs.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrIdentifierExhaustion):
		return status.Error(codes.ResourceExhausted, "identifier space exhausted")
	case errors.Is(err, errs.ErrDelivery):
		return status.Error(codes.Unavailable, "could not deliver confirmation code")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%s: internal error", op)
	}
}
