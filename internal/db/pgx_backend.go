package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// closeTimeout bounds the terminate message sent to a connection being discarded.
const closeTimeout = time.Second

// pgxQuerier is implemented by both *pgxpool.Conn and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxBackend runs statements over a connection pinned from a pgx pool.
type PgxBackend struct {
	connector Connector
	pool      *pgxpool.Pool
	conn      *pgxpool.Conn
	tx        pgx.Tx
	target    reconnect.Target
}

// NewPgxBackend creates the pool through connector and pins one connection.
func NewPgxBackend(ctx context.Context, connector Connector, target reconnect.Target) (*PgxBackend, error) {
	pool, err := connector.Connect(ctx)
	if err != nil {
		if closer, ok := connector.(io.Closer); ok {
			closer.Close()
		}
		return nil, err
	}

	b := &PgxBackend{connector: connector, pool: pool, target: target}
	if err := b.acquire(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Reconnect closes the pinned connection, drops every idle one and pins a
// freshly dialed connection. An open transaction is lost.
func (b *PgxBackend) Reconnect(ctx context.Context) error {
	b.tx = nil
	b.discard()
	b.pool.Reset()
	return b.acquire(ctx)
}

func (b *PgxBackend) acquire(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := conn.Ping(ctx); err != nil {
		b.conn = conn
		b.discard()
		return err
	}
	b.conn = conn
	return nil
}

// discard closes the pinned connection so the pool destroys it on release.
func (b *PgxBackend) discard() {
	if b.conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = b.conn.Conn().Close(ctx)
	b.conn.Release()
	b.conn = nil
}

// CurrentTarget returns the database the backend is bound to.
func (b *PgxBackend) CurrentTarget() reconnect.Target {
	return b.target
}

// InTransaction reports whether Begin was called without Commit or Rollback.
func (b *PgxBackend) InTransaction() bool {
	return b.tx != nil
}

func (b *PgxBackend) querier() (pgxQuerier, error) {
	if b.tx != nil {
		return b.tx, nil
	}
	if b.conn == nil {
		return nil, pgx.ErrTxClosed
	}
	return b.conn, nil
}

func (b *PgxBackend) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	q, err := b.querier()
	if err != nil {
		return ExecResult{}, err
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return ExecResult{}, err
	}
	return ExecResult{RowsAffected: tag.RowsAffected()}, nil
}

func (b *PgxBackend) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	q, err := b.querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := &ResultSet{Columns: make([]string, len(fields))}
	for i, f := range fields {
		rs.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (b *PgxBackend) Begin(ctx context.Context) error {
	if b.tx != nil {
		return fmt.Errorf("transaction already open")
	}
	if b.conn == nil {
		return pgx.ErrTxClosed
	}
	tx, err := b.conn.Begin(ctx)
	if err != nil {
		return err
	}
	b.tx = tx
	return nil
}

func (b *PgxBackend) Commit(ctx context.Context) error {
	if b.tx == nil {
		return ErrNoTransaction
	}
	tx := b.tx
	b.tx = nil
	return tx.Commit(ctx)
}

func (b *PgxBackend) Rollback(ctx context.Context) error {
	if b.tx == nil {
		return ErrNoTransaction
	}
	tx := b.tx
	b.tx = nil
	return tx.Rollback(ctx)
}

// Close releases the connection, the pool and the connector's resources.
func (b *PgxBackend) Close() error {
	var errs []error
	if b.tx != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		errs = append(errs, b.tx.Rollback(ctx))
		cancel()
		b.tx = nil
	}
	if b.conn != nil {
		b.conn.Release()
		b.conn = nil
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if closer, ok := b.connector.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

var _ Backend = (*PgxBackend)(nil)
