package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"

	"github.com/vvka-141/reconnect/internal/retry"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

type openOptions struct {
	backoff reconnect.BackoffStrategy
	onRetry func(ec *retry.ExecutionContext, attempt retry.Attempt)
}

// Option configures Open.
type Option func(*openOptions)

// WithBackoff replaces the default linear backoff.
func WithBackoff(strategy reconnect.BackoffStrategy) Option {
	return func(o *openOptions) {
		o.backoff = strategy
	}
}

// WithOnRetry registers a callback invoked before every backoff wait.
func WithOnRetry(callback func(ec *retry.ExecutionContext, attempt retry.Attempt)) Option {
	return func(o *openOptions) {
		o.onRetry = callback
	}
}

// Open connects to the database described by settings and returns a Session
// whose statements are retried under policy.
//
// The initial connection is not retried. Its failure matches
// reconnect.ErrConnectionFailed and carries troubleshooting guidance.
func Open(ctx context.Context, settings *Settings, policy *retry.Policy, logger reconnect.Logger, opts ...Option) (*Session, error) {
	o := openOptions{backoff: retry.NewLinearBackoff()}
	for _, opt := range opts {
		opt(&o)
	}

	target, err := settings.Target()
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, settings, target, logger)
	if err != nil {
		if errors.Is(err, reconnect.ErrInvalidConfig) || errors.Is(err, reconnect.ErrUnsupportedAuthMethod) {
			return nil, err
		}
		return nil, wrapConnectionError(err, target.Host, target.Port, target.Database)
	}
	logger.Verbose("Connected to %s (%s)", target, settings.Driver)

	executor := retry.NewExecutor(policy, o.backoff, logger)
	if o.onRetry != nil {
		executor = executor.WithOnRetry(o.onRetry)
	}
	return NewSession(backend, executor), nil
}

func openBackend(ctx context.Context, s *Settings, target reconnect.Target, logger reconnect.Logger) (Backend, error) {
	switch s.Driver {
	case DriverPgx:
		cfg, err := s.connectionConfig()
		if err != nil {
			return nil, err
		}
		connector, err := NewConnector(cfg, logger)
		if err != nil {
			return nil, err
		}
		backend, err := NewPgxBackend(ctx, connector, target)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case DriverMySQL:
		sqlDB, err := openMySQL(s, logger)
		if err != nil {
			return nil, err
		}
		return newSQLBackendOrClose(ctx, sqlDB, target)

	case DriverSQLite:
		sqlDB, err := sql.Open(DriverSQLite, s.DSN)
		if err != nil {
			return nil, err
		}
		return newSQLBackendOrClose(ctx, sqlDB, target)
	}
	return nil, fmt.Errorf("unsupported driver %q: %w", s.Driver, reconnect.ErrInvalidConfig)
}

func newSQLBackendOrClose(ctx context.Context, sqlDB *sql.DB, target reconnect.Target) (Backend, error) {
	backend, err := NewSQLBackend(ctx, sqlDB, target)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return backend, nil
}
