package manager

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vvka-141/reconnect/internal/db"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

const (
	queryPgTerminateSessions = `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`
	queryMySQLSessions = `
		SELECT id
		FROM information_schema.processlist
		WHERE db = ? AND id <> CONNECTION_ID()
	`
)

// Querier is the part of a db.Session the manager needs.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (db.ExecResult, error)
	Query(ctx context.Context, query string, args ...any) (*db.ResultSet, error)
}

// Manager forces server-side disconnects for failover drills.
// Stateless and safe for concurrent use; thread safety depends on the injected Querier.
type Manager struct {
	driver string
}

// New creates a Manager for the given driver. SQLite has no server
// sessions and is rejected.
func New(driver string) (*Manager, error) {
	switch driver {
	case db.DriverPgx, db.DriverMySQL:
		return &Manager{driver: driver}, nil
	default:
		return nil, fmt.Errorf("terminating sessions is not supported for %q: %w", driver, reconnect.ErrInvalidConfig)
	}
}

// TerminateSessions disconnects every other session on database and returns
// how many were terminated. The caller's own connection is kept.
func (m *Manager) TerminateSessions(ctx context.Context, conn Querier, database string) (int, error) {
	if m.driver == db.DriverPgx {
		return m.terminatePostgres(ctx, conn, database)
	}
	return m.terminateMySQL(ctx, conn, database)
}

func (m *Manager) terminatePostgres(ctx context.Context, conn Querier, database string) (int, error) {
	rs, err := conn.Query(ctx, queryPgTerminateSessions, database)
	if err != nil {
		return 0, fmt.Errorf("failed to terminate sessions on database %q: %w", database, err)
	}

	terminated := 0
	for _, row := range rs.Rows {
		if ok, _ := row[0].(bool); ok {
			terminated++
		}
	}
	return terminated, nil
}

func (m *Manager) terminateMySQL(ctx context.Context, conn Querier, database string) (int, error) {
	rs, err := conn.Query(ctx, queryMySQLSessions, database)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions on database %q: %w", database, err)
	}

	terminated := 0
	for _, row := range rs.Rows {
		id, err := sessionID(row[0])
		if err != nil {
			return terminated, err
		}
		// KILL takes no placeholders; id is numeric
		if _, err := conn.Exec(ctx, "KILL CONNECTION "+strconv.FormatUint(id, 10)); err != nil {
			return terminated, fmt.Errorf("failed to kill session %d: %w", id, err)
		}
		terminated++
	}
	return terminated, nil
}

// sessionID converts a processlist id as returned by either MySQL protocol.
func sessionID(v any) (uint64, error) {
	switch id := v.(type) {
	case int64:
		return uint64(id), nil
	case uint64:
		return id, nil
	case string:
		return strconv.ParseUint(id, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected session id type %T", v)
	}
}

// Verify Session satisfies Querier at compile time
var _ Querier = (*db.Session)(nil)
