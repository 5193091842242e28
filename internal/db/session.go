package db

import (
	"context"

	"github.com/vvka-141/reconnect/internal/retry"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

type readOnlyKey struct{}

// MarkReadOnly overrides statement inspection for operations run with the
// returned context. Use it for stored procedure calls that only read, or to
// keep a SELECT with side effects out of read-only retry.
func MarkReadOnly(ctx context.Context, readOnly bool) context.Context {
	return context.WithValue(ctx, readOnlyKey{}, readOnly)
}

func readOnlyOverride(ctx context.Context) (bool, bool) {
	v, ok := ctx.Value(readOnlyKey{}).(bool)
	return v, ok
}

// Session is a database connection whose statements are retried across
// reconnects according to the executor's policy.
//
// A Session belongs to one call chain and is not safe for concurrent use.
// Open one Session per goroutine.
type Session struct {
	backend  Backend
	executor *retry.Executor
	guard    retry.TransactionGuard
}

// NewSession wraps backend. The session owns backend and closes it in Close.
func NewSession(backend Backend, executor *retry.Executor) *Session {
	return &Session{backend: backend, executor: executor}
}

// Target returns the database the session is connected to.
func (s *Session) Target() reconnect.Target {
	return s.backend.CurrentTarget()
}

// InTransaction reports whether Begin was called without Commit or Rollback.
func (s *Session) InTransaction() bool {
	return s.guard.Open()
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	return runStatement(ctx, s, query, func(ctx context.Context) (ExecResult, error) {
		return s.backend.Exec(ctx, query, args...)
	})
}

// Query runs a statement and returns all of its rows.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	return runStatement(ctx, s, query, func(ctx context.Context) (*ResultSet, error) {
		return s.backend.Query(ctx, query, args...)
	})
}

// Begin opens a transaction. A connection lost before the transaction
// starts is retried like any other statement.
func (s *Session) Begin(ctx context.Context) error {
	_, err := retry.Execute(ctx, s.executor, retry.Call[struct{}]{
		Driver:    s.backend,
		Statement: "BEGIN",
		ReadOnly:  true,
		Run: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.backend.Begin(ctx)
		},
	})
	if err != nil {
		return err
	}
	s.guard.Begin()
	return nil
}

// Commit commits the open transaction. A failed commit is never retried:
// whether it took effect on the server is unknown.
func (s *Session) Commit(ctx context.Context) error {
	defer s.guard.End()
	return s.backend.Commit(ctx)
}

// Rollback aborts the open transaction. It is not retried; a lost
// connection already rolled the transaction back.
func (s *Session) Rollback(ctx context.Context) error {
	defer s.guard.End()
	return s.backend.Rollback(ctx)
}

// Close releases the connection.
func (s *Session) Close() error {
	s.guard.End()
	return s.backend.Close()
}

func runStatement[T any](ctx context.Context, s *Session, query string, run func(ctx context.Context) (T, error)) (T, error) {
	readOnly, ok := readOnlyOverride(ctx)
	if !ok {
		readOnly = retry.IsReadStatement(query)
	}

	result, err := retry.Execute(ctx, s.executor, retry.Call[T]{
		Driver:         s.backend,
		Statement:      query,
		ReadOnly:       readOnly,
		Guard:          &s.guard,
		AfterReconnect: s.afterReconnect,
		Run:            run,
	})
	if err == nil {
		s.guard.Record()
	}
	return result, err
}

// afterReconnect reopens the transaction the reconnect dropped, so the
// retried statement runs inside a transaction as the caller expects.
func (s *Session) afterReconnect(ctx context.Context) error {
	if !s.guard.Open() {
		return nil
	}
	return s.backend.Begin(ctx)
}
