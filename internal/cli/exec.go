package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vvka-141/reconnect/internal/db"
	"github.com/vvka-141/reconnect/internal/retry"
	"github.com/vvka-141/reconnect/internal/tui"
)

// execFlags holds the exec command's flag values.
type execFlags struct {
	tx       bool
	noRetry  bool
	readOnly bool
}

var execOpts execFlags

var execCmd = &cobra.Command{
	Use:   "exec <sql> [sql...]",
	Short: "Run statements through a reconnecting session",
	Long: `Runs each argument as one statement on a single session. Statements that
read (SELECT, SHOW, EXPLAIN, ...) print their rows; other statements print
the number of rows affected.

A statement that fails with a transient connection error is retried after a
reconnect according to the retry policy.

Examples:
  reconnect exec --dsn "app:secret@tcp(db1:3306)/employees" "SELECT * FROM employees"

  # Both inserts commit together or not at all
  reconnect exec --tx "INSERT INTO audit VALUES (1)" "INSERT INTO audit VALUES (2)"

  # Fail fast on the first error
  reconnect exec --no-retry "SELECT 1"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().BoolVar(&execOpts.tx, "tx", false, "Run all statements in one transaction")
	execCmd.Flags().BoolVar(&execOpts.noRetry, "no-retry", false, "Never retry, return the first error unchanged")
	execCmd.Flags().BoolVar(&execOpts.readOnly, "read-only", false,
		"Treat every statement as a read (eligible for retry in mode r)")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := env.open(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if execOpts.noRetry {
		ctx = retry.WithoutRetry(ctx)
	}
	if execOpts.readOnly {
		ctx = db.MarkReadOnly(ctx, true)
	}

	out := cmd.OutOrStdout()
	if !execOpts.tx {
		return execStatements(ctx, session, out, args)
	}

	if err := session.Begin(ctx); err != nil {
		return err
	}
	if err := execStatements(ctx, session, out, args); err != nil {
		if rbErr := session.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return session.Commit(ctx)
}

func execStatements(ctx context.Context, session *db.Session, out io.Writer, statements []string) error {
	styled := tui.IsStyled(out) && !rootFlags.noColor
	for _, stmt := range statements {
		if retry.IsReadStatement(stmt) {
			rs, err := session.Query(ctx, stmt)
			if err != nil {
				return err
			}
			printResultSet(out, rs, styled)
			continue
		}

		res, err := session.Exec(ctx, stmt)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "OK, %d row(s) affected\n", res.RowsAffected)
	}
	return nil
}
