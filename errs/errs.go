// Package errs defines the error kinds used throughout clustertrace, per
// spec.md §7. Kinds are carried as grpc status codes, the way the teacher
// package (analysis/sched_*.go) reports every internal failure via
// status.Errorf(codes.X, ...) rather than sentinel error values.
package errs

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IO wraps a failed file read. Propagated; aborts the request.
func IO(format string, args ...interface{}) error {
	return status.Errorf(codes.Unavailable, format, args...)
}

// InvalidConfig wraps a missing required field or a contradictory cluster
// config entry (e.g. gpumem_gb without gpu_cards).
func InvalidConfig(format string, args ...interface{}) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// ContradictoryRequest wraps a user-visible request error, e.g. from > to,
// or --group without a time bucket.
func ContradictoryRequest(format string, args ...interface{}) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}

// MissingHostConfig wraps a request for relative/capacity metrics on a host
// absent from the cluster config.
func MissingHostConfig(format string, args ...interface{}) error {
	return status.Errorf(codes.NotFound, format, args...)
}

// Internal wraps a violated invariant: a bug, not a content or request
// problem.
func Internal(format string, args ...interface{}) error {
	return status.Errorf(codes.Internal, format, args...)
}

// KindOf returns the grpc code backing err: codes.OK if err is nil, and
// codes.Unknown if err does not carry a grpc status.
func KindOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind codes.Code) bool {
	return KindOf(err) == kind
}
