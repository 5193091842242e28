package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

func TestExec_CreateInsertSelect(t *testing.T) {
	isolate(t)
	dsn := sqliteDSN(t, "employees")

	stdout, _, err := executeCommand(t, "--dsn", dsn, "exec",
		"CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO employees (name) VALUES ('Ada'), ('Grace')",
		"SELECT id, name FROM employees ORDER BY id",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "OK, 2 row(s) affected\n")
	assert.Contains(t, stdout, "id\tname\n1\tAda\n2\tGrace\n(2 row(s))\n")
}

func TestExec_NullValues(t *testing.T) {
	isolate(t)
	dsn := sqliteDSN(t, "employees")

	stdout, _, err := executeCommand(t, "--dsn", dsn, "exec", "SELECT NULL AS manager")
	require.NoError(t, err)
	assert.Contains(t, stdout, "manager\nNULL\n")
}

func TestExec_TransactionRollsBackOnFailure(t *testing.T) {
	isolate(t)
	dsn := sqliteDSN(t, "employees")

	_, _, err := executeCommand(t, "--dsn", dsn, "exec", "CREATE TABLE audit (id INTEGER)")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "--dsn", dsn, "exec", "--tx",
		"INSERT INTO audit VALUES (1)",
		"INSERT INTO missing_table VALUES (2)",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_table")
	assert.Equal(t, reconnect.ExitGeneralError, reconnect.ExitCodeForError(err))

	stdout, _, err := executeCommand(t, "--dsn", dsn, "exec", "SELECT COUNT(*) AS n FROM audit")
	require.NoError(t, err)
	assert.Contains(t, stdout, "n\n0\n")
}

func TestExec_TransactionCommits(t *testing.T) {
	isolate(t)
	dsn := sqliteDSN(t, "employees")

	_, _, err := executeCommand(t, "--dsn", dsn, "exec", "CREATE TABLE audit (id INTEGER)")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "--dsn", dsn, "exec", "--tx", "--no-retry",
		"INSERT INTO audit VALUES (1)",
		"INSERT INTO audit VALUES (2)",
	)
	require.NoError(t, err)

	stdout, _, err := executeCommand(t, "--dsn", dsn, "exec", "--read-only", "SELECT COUNT(*) AS n FROM audit")
	require.NoError(t, err)
	assert.Contains(t, stdout, "n\n2\n")
}

func TestExec_MissingDSN(t *testing.T) {
	isolate(t)

	_, _, err := executeCommand(t, "exec", "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, reconnect.ErrInvalidConfig)
	assert.Equal(t, reconnect.ExitConfigError, reconnect.ExitCodeForError(err))
}

func TestExec_DSNFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("RECONNECT_DSN", sqliteDSN(t, "employees"))

	stdout, _, err := executeCommand(t, "exec", "SELECT 7 AS lucky")
	require.NoError(t, err)
	assert.Contains(t, stdout, "lucky\n7\n")
}

func TestExec_InvalidRetryFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"--mode", "sometimes"}},
		{"negative attempts", []string{"--max-attempts=-1"}},
		{"zero backoff", []string{"--backoff-step", "0s"}},
		{"unknown driver", []string{"--driver", "oracle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			args := append([]string{"--dsn", sqliteDSN(t, "employees")}, tt.args...)
			args = append(args, "exec", "SELECT 1")

			_, _, err := executeCommand(t, args...)
			require.Error(t, err)
			assert.Equal(t, reconnect.ExitConfigError, reconnect.ExitCodeForError(err), "error: %v", err)
		})
	}
}

func TestExec_ConnectionRefused(t *testing.T) {
	isolate(t)

	_, _, err := executeCommand(t, "--dsn", "app:secret@tcp(127.0.0.1:1)/employees", "exec", "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, reconnect.ErrConnectionFailed)
	assert.Equal(t, reconnect.ExitConnectionError, reconnect.ExitCodeForError(err))
}

func TestExec_VerboseLogsResolvedConnection(t *testing.T) {
	isolate(t)

	_, stderr, err := executeCommand(t, "--dsn", sqliteDSN(t, "employees"), "--verbose", "--no-color", "exec", "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Connection resolved: driver=sqlite")
	assert.Contains(t, stderr, "Retry policy: enabled=true mode=rw max_attempts=10 databases=(all)")
}
