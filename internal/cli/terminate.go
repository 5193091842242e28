package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/reconnect/internal/db/manager"
	"github.com/vvka-141/reconnect/internal/retry"
)

var terminateDatabase string

var terminateCmd = &cobra.Command{
	Use:   "terminate",
	Short: "Disconnect every other session on the database",
	Long: `Forces the server to close every other connection to the database, the way a
failover or an administrator would. Run it next to "reconnect probe" to watch
sessions recover. Supported for PostgreSQL (pg_terminate_backend) and MySQL
(KILL CONNECTION); the caller needs the privileges those require.

Examples:
  reconnect terminate
  reconnect terminate --target-database employees`,
	Args: cobra.NoArgs,
	RunE: runTerminate,
}

func init() {
	terminateCmd.Flags().StringVar(&terminateDatabase, "target-database", "",
		"Database whose sessions to terminate (default: the database of the DSN)")
	rootCmd.AddCommand(terminateCmd)
}

func runTerminate(cmd *cobra.Command, args []string) error {
	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	mgr, err := manager.New(env.settings.Driver)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := env.open(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	database := terminateDatabase
	if database == "" {
		database = session.Target().Database
	}

	// Killing sessions is not idempotent; never replay it after a reconnect.
	n, err := mgr.TerminateSessions(retry.WithoutRetry(ctx), session, database)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Terminated %d session(s) on %s\n", n, database)
	return nil
}
