package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// globalFlags holds the persistent flag values shared by every command.
type globalFlags struct {
	configPath string

	driver         string
	dsn            string
	authMethod     string
	awsRegion      string
	googleInstance string
	azureTenantID  string
	azureClientID  string

	maxAttempts  int
	mode         string
	databases    []string
	disableRetry bool
	backoffStep  time.Duration

	verbose bool
	logFile string
	noColor bool
}

var rootFlags globalFlags

var rootCmd = &cobra.Command{
	Use:   "reconnect",
	Short: "Transparent reconnect-and-retry for database sessions",
	Long: `reconnect runs SQL through a session that survives server restarts,
network blips and failovers. Transient connection failures are classified,
the connection is re-established and the statement is executed again, up to
a bounded number of attempts with a linear backoff.

Statements are never replayed when that could repeat side effects: a failure
after earlier statements of an open transaction is returned to the caller
unless the retry mode is "force".

Configuration precedence: flags > environment (.env is loaded) > reconnect.yaml.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database unreachable (initial connection or retries exhausted)
  13 - Statement failed with a healthy connection`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.Bool("help", false, "Help for reconnect")
	pf.StringVar(&rootFlags.configPath, "config", "",
		"Path to the configuration file (default: ./"+reconnect.DefaultConfigFileName+" when present)")

	// Connection
	pf.StringVar(&rootFlags.driver, "driver", "", "Database driver: pgx, mysql or sqlite (inferred from the DSN when omitted)")
	pf.StringVar(&rootFlags.dsn, "dsn", "", "Data source name (env: RECONNECT_DSN, DATABASE_URL)")
	pf.StringVar(&rootFlags.authMethod, "auth-method", "", "Authentication: standard, aws, google or azure (env: RECONNECT_AUTH_METHOD)")
	pf.StringVar(&rootFlags.awsRegion, "aws-region", "", "AWS region for IAM authentication (env: AWS_REGION)")
	pf.StringVar(&rootFlags.googleInstance, "google-instance", "", "Cloud SQL instance connection name (project:region:instance)")
	pf.StringVar(&rootFlags.azureTenantID, "azure-tenant-id", "", "Azure AD tenant ID (env: AZURE_TENANT_ID)")
	pf.StringVar(&rootFlags.azureClientID, "azure-client-id", "", "Azure AD client ID (env: AZURE_CLIENT_ID)")

	// Retry policy
	pf.IntVar(&rootFlags.maxAttempts, "max-attempts", 0,
		fmt.Sprintf("Executions per statement before giving up (default %d)", reconnect.DefaultMaxAttempts))
	pf.StringVar(&rootFlags.mode, "mode", "", "Retry mode: rw, r or force (default rw)")
	pf.StringSliceVar(&rootFlags.databases, "database", nil,
		"Retry only targets matching this LIKE pattern (host:database or database, repeatable)")
	pf.BoolVar(&rootFlags.disableRetry, "disable-retry", false, "Disable retries entirely")
	pf.DurationVar(&rootFlags.backoffStep, "backoff-step", reconnect.DefaultBackoffStep,
		"Linear backoff increment between attempts")

	// Output
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable verbose output for all commands")
	pf.StringVar(&rootFlags.logFile, "log-file", "", "Also write every log record as JSON to this file")
	pf.BoolVar(&rootFlags.noColor, "no-color", false, "Disable colours and the live probe dashboard")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
