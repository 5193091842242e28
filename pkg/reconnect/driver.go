package reconnect

//go:generate go tool mockgen -source=driver.go -destination=../../internal/mocks/driver/mock_driver.go -package=mocks

import (
	"context"
	"time"
)

// Driver is the part of a database connection the retry engine needs.
// Each call chain owns its Driver; implementations need not be safe for
// concurrent use.
type Driver interface {
	// Reconnect forces the underlying connection to be re-established.
	Reconnect(ctx context.Context) error

	// CurrentTarget returns the resolved host and database of the connection.
	CurrentTarget() Target

	// InTransaction reports whether a transaction is open on the connection.
	InTransaction() bool
}

// BackoffStrategy calculates the delay before the next retry attempt.
type BackoffStrategy interface {
	// NextDelay returns the duration to wait after the given failed attempt.
	// attempt is one-indexed (1 = the first execution failed).
	NextDelay(attempt int) time.Duration
}
