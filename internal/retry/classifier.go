package retry

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// PostgreSQL error codes mapped to a retry classification.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 08 - Connection Exception (matched by prefix)
	pgClassConnectionException = "08"

	// Class 57 - Operator Intervention
	pgCodeAdminShutdown    = "57P01"
	pgCodeCrashShutdown    = "57P02"
	pgCodeCannotConnectNow = "57P03"

	// Class 25 - Invalid Transaction State
	pgCodeReadOnlySQLTransaction = "25006"
)

// Matcher decides whether an error message belongs to a classification entry.
type Matcher interface {
	Match(message string) bool
	String() string
}

// Substring matches when the message contains the text, case-sensitively.
type Substring string

func (s Substring) Match(message string) bool {
	return strings.Contains(message, string(s))
}

func (s Substring) String() string {
	return string(s)
}

// Pattern matches messages against a regular expression.
type Pattern struct {
	re *regexp.Regexp
}

// MustPattern compiles expr and panics on error. For package-level entries.
func MustPattern(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

// NewPattern compiles expr into a regular-expression matcher.
func NewPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid error pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

func (p Pattern) Match(message string) bool {
	return p.re != nil && p.re.MatchString(message)
}

// Expr returns the source of the regular expression.
func (p Pattern) Expr() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return "/" + p.re.String() + "/"
}

// Entry is one named member of the classification registry.
type Entry struct {
	Name    string
	Class   reconnect.ErrorClass
	Matcher Matcher

	// RequiresForce restricts retries of writes to ModeForce: the failing
	// statement may already have reached the server. Reads still retry.
	RequiresForce bool
}

// Classification is the outcome of classifying one error.
type Classification struct {
	Class         reconnect.ErrorClass
	Entry         string
	RequiresForce bool
}

// Retryable reports whether the error may be retried under some mode.
func (c Classification) Retryable() bool {
	return c.Class.Retryable()
}

func (c Classification) String() string {
	if c.Entry == "" {
		return c.Class.String()
	}
	return fmt.Sprintf("%s(%s)", c.Class, c.Entry)
}

// builtinEntries is the fixed vocabulary of transient failures.
// Operator-registered entries are consulted after these.
var builtinEntries = []Entry{
	{Name: "server_gone_away", Class: reconnect.ClassConnectionLost, Matcher: Substring("MySQL server has gone away")},
	{Name: "shutdown_in_progress", Class: reconnect.ClassServerUnavailable, Matcher: Substring("Server shutdown in progress")},
	{Name: "connection_closed", Class: reconnect.ClassConnectionLost, Matcher: Substring("closed MySQL connection")},
	{Name: "cannot_connect", Class: reconnect.ClassServerUnavailable, Matcher: Substring("Can't connect to MySQL server")},
	{Name: "query_interrupted", Class: reconnect.ClassConnectionLost, Matcher: Substring("Query execution was interrupted")},
	{Name: "access_denied", Class: reconnect.ClassServerUnavailable, Matcher: Substring("Access denied for user")},
	{Name: "read_only", Class: reconnect.ClassReadOnlyFailover, Matcher: Substring("The MySQL server is running with the --read-only option")},
	{Name: "cannot_connect_local", Class: reconnect.ClassServerUnavailable, Matcher: Substring("Can't connect to local MySQL server")},
	{Name: "unknown_host", Class: reconnect.ClassServerUnavailable, Matcher: Substring("Unknown MySQL server host")},
	{Name: "lost_connection_handshake", Class: reconnect.ClassConnectionLost, Matcher: Substring("Lost connection to MySQL server at 'reading initial communication packet'")},
	{Name: "lost_connection", Class: reconnect.ClassConnectionLost, Matcher: Substring("Lost connection to MySQL server during query"), RequiresForce: true},

	// PostgreSQL and Go driver vocabulary
	{Name: "admin_shutdown", Class: reconnect.ClassServerUnavailable, Matcher: Substring("terminating connection due to administrator command")},
	{Name: "database_shutting_down", Class: reconnect.ClassServerUnavailable, Matcher: Substring("the database system is shutting down")},
	{Name: "database_starting_up", Class: reconnect.ClassServerUnavailable, Matcher: Substring("the database system is starting up")},
	{Name: "read_only_transaction", Class: reconnect.ClassReadOnlyFailover, Matcher: Substring("in a read-only transaction")},
	{Name: "conn_closed", Class: reconnect.ClassConnectionLost, Matcher: MustPattern(`\bconn closed\b`)},
	{Name: "bad_connection", Class: reconnect.ClassConnectionLost, Matcher: Substring("driver: bad connection")},
	{Name: "invalid_connection", Class: reconnect.ClassConnectionLost, Matcher: Substring("invalid connection")},
}

// BuiltinEntries returns a copy of the built-in classification entries.
func BuiltinEntries() []Entry {
	out := make([]Entry, len(builtinEntries))
	copy(out, builtinEntries)
	return out
}

// Classify maps a raw driver error to a classification.
//
// Structural checks on known driver error types run first, then the built-in
// message entries, then the operator entries in registration order. The first
// match wins; no match yields ClassNotRetryable.
func Classify(err error, custom []Entry) Classification {
	if err == nil {
		return Classification{Class: reconnect.ClassNotRetryable}
	}

	if c, ok := classifyDriverError(err); ok {
		return c
	}

	msg := errorMessage(err)
	for _, e := range builtinEntries {
		if e.Matcher.Match(msg) {
			return Classification{Class: e.Class, Entry: e.Name, RequiresForce: e.RequiresForce}
		}
	}
	for _, e := range custom {
		if e.Matcher != nil && e.Matcher.Match(msg) {
			class := e.Class
			if !class.Retryable() {
				class = reconnect.ClassCustom
			}
			return Classification{Class: class, Entry: e.Name, RequiresForce: e.RequiresForce}
		}
	}

	return Classification{Class: reconnect.ClassNotRetryable}
}

// classifyDriverError recognises typed driver errors that do not need
// message inspection.
func classifyDriverError(err error) (Classification, bool) {
	if errors.Is(err, driver.ErrBadConn) {
		return Classification{Class: reconnect.ClassConnectionLost, Entry: "bad_connection"}, true
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return Classification{Class: reconnect.ClassConnectionLost, Entry: "invalid_connection"}, true
	}
	// pgx reports failures that happened before any bytes reached the server
	if pgconn.SafeToRetry(err) {
		return Classification{Class: reconnect.ClassConnectionLost, Entry: "not_sent"}, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(pgErr)
	}

	return Classification{}, false
}

func classifyPgError(pgErr *pgconn.PgError) (Classification, bool) {
	code := pgErr.Code

	if strings.HasPrefix(code, pgClassConnectionException) {
		return Classification{Class: reconnect.ClassConnectionLost, Entry: "pg_" + code}, true
	}

	switch code {
	case pgCodeAdminShutdown, pgCodeCrashShutdown, pgCodeCannotConnectNow:
		return Classification{Class: reconnect.ClassServerUnavailable, Entry: "pg_" + code}, true
	case pgCodeReadOnlySQLTransaction:
		return Classification{Class: reconnect.ClassReadOnlyFailover, Entry: "pg_" + code}, true
	}

	return Classification{}, false
}

// errorMessage returns the text the message entries are matched against.
// MySQL server errors are matched on their message without the number prefix.
func errorMessage(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Message
	}
	return err.Error()
}
