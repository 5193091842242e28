package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Connection pool configuration for database/sql backends.
const (
	// DefaultSQLMaxOpenConns allows the pinned connection plus one being
	// established during a reconnect.
	DefaultSQLMaxOpenConns = 2

	// DefaultSQLMaxIdleConns keeps no spare connections that could go stale
	// while the server is restarting.
	DefaultSQLMaxIdleConns = 0
)

// ErrNoTransaction is returned by Commit and Rollback without an open transaction.
var ErrNoTransaction = errors.New("no transaction is open")

// sqlQuerier is implemented by both *sql.Conn and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLBackend runs statements over database/sql with one pinned *sql.Conn.
type SQLBackend struct {
	db     *sql.DB
	conn   *sql.Conn
	tx     *sql.Tx
	target reconnect.Target
}

// NewSQLBackend pins a connection from db. The backend takes ownership of db
// and closes it in Close.
func NewSQLBackend(ctx context.Context, db *sql.DB, target reconnect.Target) (*SQLBackend, error) {
	db.SetMaxOpenConns(DefaultSQLMaxOpenConns)
	db.SetMaxIdleConns(DefaultSQLMaxIdleConns)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLBackend{db: db, conn: conn, target: target}, nil
}

// Reconnect pins a fresh connection and discards the previous one. An open
// transaction is lost with the old connection.
func (b *SQLBackend) Reconnect(ctx context.Context) error {
	if b.tx != nil {
		// the transaction holds the connection; it has to end before the
		// connection can be discarded
		_ = b.tx.Rollback()
		b.tx = nil
	}

	fresh, err := b.db.Conn(ctx)
	if err != nil {
		return err
	}

	if old := b.conn; old != nil {
		// ErrBadConn from Raw makes database/sql close the connection
		// instead of returning it to the pool.
		_ = old.Raw(func(any) error { return driver.ErrBadConn })
		_ = old.Close()
	}
	b.conn = fresh

	return fresh.PingContext(ctx)
}

// CurrentTarget returns the database the backend is bound to.
func (b *SQLBackend) CurrentTarget() reconnect.Target {
	return b.target
}

// InTransaction reports whether Begin was called without Commit or Rollback.
func (b *SQLBackend) InTransaction() bool {
	return b.tx != nil
}

func (b *SQLBackend) querier() sqlQuerier {
	if b.tx != nil {
		return b.tx
	}
	return b.conn
}

func (b *SQLBackend) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	res, err := b.querier().ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// some drivers do not report affected rows for DDL
		affected = 0
	}
	return ExecResult{RowsAffected: affected}, nil
}

func (b *SQLBackend) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rows, err := b.querier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if raw, ok := v.([]byte); ok {
				values[i] = string(raw)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (b *SQLBackend) Begin(ctx context.Context) error {
	if b.tx != nil {
		return fmt.Errorf("transaction already open")
	}
	tx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	b.tx = tx
	return nil
}

func (b *SQLBackend) Commit(ctx context.Context) error {
	if b.tx == nil {
		return ErrNoTransaction
	}
	tx := b.tx
	b.tx = nil
	return tx.Commit()
}

func (b *SQLBackend) Rollback(ctx context.Context) error {
	if b.tx == nil {
		return ErrNoTransaction
	}
	tx := b.tx
	b.tx = nil
	return tx.Rollback()
}

// Close releases the pinned connection and the pool.
func (b *SQLBackend) Close() error {
	var errs []error
	if b.tx != nil {
		errs = append(errs, b.tx.Rollback())
		b.tx = nil
	}
	if b.conn != nil {
		errs = append(errs, b.conn.Close())
		b.conn = nil
	}
	errs = append(errs, b.db.Close())
	return errors.Join(errs...)
}

var _ Backend = (*SQLBackend)(nil)
