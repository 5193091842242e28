package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

func TestWrapConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		errMsg   string
		host     string
		port     int
		database string
		want     string
	}{
		{"pgx refused", DriverPgx, "dial tcp 10.0.0.5:5432: connect: connection refused", "10.0.0.5", 5432, "billing", "connection refused to 10.0.0.5:5432"},
		{"pgx refused (Windows)", DriverPgx, "connectex: No connection could be made because the target machine actively refused it", "db1", 5432, "billing", "connection refused to db1:5432"},
		{"mysql server down", DriverMySQL, "Can't connect to MySQL server on 'db1' (111)", "db1", 3306, "employees", "connection refused to db1:3306"},
		{"ipv6 address", DriverPgx, "dial tcp [::1]:5432: connect: connection refused", "::1", 5432, "billing", "connection refused to [::1]:5432"},
		{"lookup failure", DriverMySQL, "dial tcp: lookup db-primary.internal: no such host", "db-primary.internal", 3306, "employees", `cannot resolve host "db-primary.internal"`},
		{"pgx bad password", DriverPgx, `FATAL: password authentication failed for user "app" (SQLSTATE 28P01)`, "db1", 5432, "billing", `password authentication failed for database "billing"`},
		{"mysql access denied", DriverMySQL, "Error 1045 (28000): Access denied for user 'app'@'10.0.0.9' (using password: YES)", "db1", 3306, "employees", `password authentication failed for database "employees"`},
		{"pgx missing database", DriverPgx, `FATAL: database "billing" does not exist (SQLSTATE 3D000)`, "db1", 5432, "billing", `database "billing" does not exist`},
		{"mysql unknown database", DriverMySQL, "Error 1049 (42000): Unknown database 'employees'", "db1", 3306, "employees", `database "employees" does not exist`},
		{"dial timeout", DriverMySQL, "dial tcp 10.0.0.5:3306: i/o timeout", "10.0.0.5", 3306, "employees", "connection timed out to 10.0.0.5:3306"},
		{"tls handshake", DriverPgx, "tls: failed to verify certificate: x509: certificate signed by unknown authority", "db1", 5432, "billing", "SSL/TLS connection error"},
		{"mysql connection limit", DriverMySQL, "Error 1040: Too many connections", "db1", 3306, "employees", `too many connections to database "employees"`},
		{"unrecognized", DriverPgx, "unexpected EOF", "db1", 5432, "billing", "failed to connect to database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := errors.New(tt.errMsg)
			wrapped := wrapConnectionError(original, tt.host, tt.port, tt.database)

			assert.Contains(t, wrapped.Error(), tt.want, "driver %s", tt.driver)
			assert.ErrorIs(t, wrapped, original)
			assert.ErrorIs(t, wrapped, reconnect.ErrConnectionFailed)
			assert.Equal(t, reconnect.ExitConnectionError, reconnect.ExitCodeForError(wrapped))
		})
	}
}

func TestWrapConnectionError_ListsCauses(t *testing.T) {
	wrapped := wrapConnectionError(errors.New("connection refused"), "db1", 5432, "billing")

	assert.Contains(t, wrapped.Error(), "Possible causes:\n  - The database server is not running or is restarting\n")
	assert.Contains(t, wrapped.Error(), "Original error: connection refused")
}

func TestWrapConnectionError_TokenFailurePassesThrough(t *testing.T) {
	provider := &countingProvider{}
	tokenErr := tokenFailure(provider, errors.New("no EC2 IMDS role found"))

	wrapped := wrapConnectionError(tokenErr, "db1", 5432, "billing")

	assert.Same(t, tokenErr, wrapped)
	assert.Equal(t, reconnect.ExitConnectionError, reconnect.ExitCodeForError(wrapped))
	assert.NotContains(t, wrapped.Error(), "Possible causes")
}
