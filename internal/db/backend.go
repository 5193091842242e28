package db

import (
	"context"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Backend is one database connection as seen by a Session. Implementations
// pin a single physical connection so that transaction state is well defined,
// and replace it on Reconnect.
//
// A Backend belongs to one call chain and is not safe for concurrent use.
type Backend interface {
	reconnect.Driver

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (ExecResult, error)

	// Query runs a statement and reads all rows into memory.
	Query(ctx context.Context, query string, args ...any) (*ResultSet, error)

	// Begin opens a transaction on the pinned connection.
	Begin(ctx context.Context) error

	// Commit commits the open transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the open transaction.
	Rollback(ctx context.Context) error

	// Close releases the connection and everything the backend owns.
	Close() error
}

// ExecResult is the outcome of Backend.Exec.
type ExecResult struct {
	RowsAffected int64
}

// ResultSet is a fully read query result. Rows are materialised before the
// call returns, so a failure part way through a result is retried as a whole.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}
