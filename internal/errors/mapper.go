// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts domain and infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrDuplicateDecision):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrInactiveMatch):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, ErrNoRewindAvailable):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, ErrSelfDecision), errors.Is(err, ErrInvalidKind), errors.Is(err, ErrEmptyMessage):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrNotParticipant):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	case errors.Is(err, ErrTransientBackend):
		// single generic "try again" state; the cause stays in the logs
		return status.Error(codes.Unavailable, "temporarily unavailable, try again")

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
