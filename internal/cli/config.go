package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vvka-141/reconnect/internal/config"
	"github.com/vvka-141/reconnect/internal/db"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Prints the configuration after flags, environment and the configuration file
have been merged, in the format of ` + config.ConfigFileName + `. The password in the DSN
is redacted. The output can be saved as a starting point for a configuration file.

Examples:
  reconnect config
  reconnect config --mode force --database "db1:%" > reconnect.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	env, err := newPolicyEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	effective := config.ProjectConfig{
		Connection: env.project.Connection,
		Retry:      config.FromRetryConfig(env.policy.Snapshot().Config()),
	}

	// The connection section is informative only: a missing DSN does not
	// stop the retry section from being printed.
	if settings, err := resolveSettings(env.project, rootFlags); err == nil {
		effective.Connection.Driver = settings.Driver
		effective.Connection.DSN = settings.DSN
		effective.Connection.AuthMethod = authMethodName(settings)
		effective.Connection.AWSRegion = settings.AWSRegion
		effective.Connection.GoogleInstance = settings.GoogleInstance
		effective.Connection.AzureTenantID = settings.AzureTenantID
		effective.Connection.AzureClientID = settings.AzureClientID
	} else {
		env.logger.Verbose("Connection not resolved: %v", err)
	}
	if effective.Connection.DSN != "" {
		effective.Connection.DSN = db.RedactDSN(effective.Connection.Driver, effective.Connection.DSN)
	}

	data, err := yaml.Marshal(&effective)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// authMethodName returns the configuration spelling accepted by ParseAuthMethod.
func authMethodName(s *db.Settings) string {
	switch s.AuthMethod {
	case reconnect.AuthMethodAWSIAM:
		return "aws"
	case reconnect.AuthMethodGoogleIAM:
		return "google"
	case reconnect.AuthMethodAzureEntraID:
		return "azure"
	default:
		return ""
	}
}
