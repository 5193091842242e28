package db

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Supported driver names.
const (
	DriverPgx    = "pgx"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// NormalizeDriver maps accepted driver spellings to a supported driver name.
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pgx", "postgres", "postgresql", "pg":
		return DriverPgx, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported driver %q (want pgx, mysql or sqlite): %w", name, reconnect.ErrInvalidConfig)
	}
}

// InferDriver guesses the driver from the shape of a DSN.
func InferDriver(dsn string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case lower == "":
		return "", fmt.Errorf("empty DSN: %w", reconnect.ErrInvalidConfig)
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPgx, nil
	case strings.HasPrefix(lower, "host=") || strings.HasPrefix(lower, "server="):
		return DriverPgx, nil
	case strings.Contains(lower, "@tcp("), strings.Contains(lower, "@unix("):
		return DriverMySQL, nil
	case strings.HasPrefix(lower, "file:"), lower == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("cannot infer driver from DSN, set --driver: %w", reconnect.ErrInvalidConfig)
	}
}

const redactedPassword = "xxxxx"

var (
	adoPasswordPattern     = regexp.MustCompile(`(?i)\b(password|pwd)\s*=\s*[^;]*`)
	keywordPasswordPattern = regexp.MustCompile(`(?i)\b(password)\s*=\s*('(?:[^'\\]|\\.)*'|\S*)`)
)

// RedactDSN returns dsn with its password replaced, for display.
// A DSN that cannot be parsed is not echoed back at all.
func RedactDSN(driver, dsn string) string {
	switch driver {
	case DriverPgx:
		if strings.Contains(dsn, "://") {
			u, err := url.Parse(dsn)
			if err != nil {
				return "(unparseable DSN)"
			}
			return u.Redacted()
		}
		if strings.Contains(dsn, ";") {
			return adoPasswordPattern.ReplaceAllString(dsn, "${1}="+redactedPassword)
		}
		return keywordPasswordPattern.ReplaceAllString(dsn, "${1}="+redactedPassword)
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "(unparseable DSN)"
		}
		if cfg.Passwd != "" {
			cfg.Passwd = redactedPassword
		}
		return cfg.FormatDSN()
	default:
		return dsn
	}
}
