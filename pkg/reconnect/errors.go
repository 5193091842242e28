package reconnect

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	_, err := session.Exec(ctx, "UPDATE accounts SET ...")
//	if errors.Is(err, reconnect.ErrDatabaseConnection) {
//	    // retries ran out and the database is still unreachable
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates the initial database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrDatabaseConnection signals that the database is unreachable after
	// the retry budget was spent.
	ErrDatabaseConnection = errors.New("database connection error")

	// ErrStatementInvalid signals that a statement failed while the
	// connection itself is healthy.
	ErrStatementInvalid = errors.New("statement invalid")
)

// FailureKind distinguishes the two propagated retry failure kinds.
type FailureKind int

const (
	// ConnectionLevel means the database is unreachable.
	ConnectionLevel FailureKind = iota
	// StatementLevel means the connection is healthy but the statement keeps failing.
	StatementLevel
)

// String returns a human-readable string representation of the FailureKind.
func (k FailureKind) String() string {
	switch k {
	case ConnectionLevel:
		return "connection"
	case StatementLevel:
		return "statement"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// RetryExhaustedError is returned when an operation kept failing with a
// retryable error until the attempt budget was spent.
type RetryExhaustedError struct {
	Kind     FailureKind
	Attempts int
	Class    ErrorClass
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	switch e.Kind {
	case ConnectionLevel:
		return fmt.Sprintf("database unreachable after %d attempt(s): %v", e.Attempts, e.Cause)
	default:
		return fmt.Sprintf("statement failed after %d attempt(s): %v", e.Attempts, e.Cause)
	}
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Cause
}

// Is matches ErrDatabaseConnection or ErrStatementInvalid according to Kind.
func (e *RetryExhaustedError) Is(target error) bool {
	switch target {
	case ErrDatabaseConnection:
		return e.Kind == ConnectionLevel
	case ErrStatementInvalid:
		return e.Kind == StatementLevel
	}
	return false
}

// StatementError reports a retryable failure that could not be retried
// because replaying it would be unsafe.
type StatementError struct {
	Reason string
	Cause  error
}

func (e *StatementError) Error() string {
	if e.Reason == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
}

func (e *StatementError) Unwrap() error {
	return e.Cause
}

// Is matches ErrStatementInvalid.
func (e *StatementError) Is(target error) bool {
	return target == ErrStatementInvalid
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Check for sentinel errors
	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrDatabaseConnection), errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrStatementInvalid):
		return ExitStatementFailed
	}

	if isUsageError(err) {
		return ExitUsageError
	}

	return ExitGeneralError
}

// isUsageError recognises the error texts cobra produces for bad invocations.
func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"unknown flag",
		"unknown shorthand flag",
		"unknown command",
		"accepts ",
		"requires at least",
		"required flag",
		"invalid argument",
		"flag needs an argument",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
