package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/reconnect/internal/config"
	"github.com/vvka-141/reconnect/internal/db"
	"github.com/vvka-141/reconnect/internal/logging"
	"github.com/vvka-141/reconnect/internal/retry"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// loadProjectConfig loads .env and the configuration file.
// A missing default file yields an empty configuration; a missing file
// named with --config is an error.
func loadProjectConfig(path string) (*config.ProjectConfig, error) {
	_ = godotenv.Load()

	var (
		projectCfg *config.ProjectConfig
		err        error
	)
	if path == "" {
		projectCfg, err = config.Load(".")
	} else {
		projectCfg, err = config.LoadFile(path)
	}
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			if path == "" {
				return &config.ProjectConfig{}, nil // Config file not found is not an error
			}
			return nil, fmt.Errorf("config file %s not found: %w", path, reconnect.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}
	return projectCfg, nil
}

// buildRetryConfig applies the retry flags on top of the file configuration.
// Flags left at their zero value keep the file's setting.
func buildRetryConfig(projectCfg *config.ProjectConfig, flags globalFlags) (retry.Config, error) {
	cfg, err := projectCfg.ToRetryConfig()
	if err != nil {
		return retry.Config{}, err
	}

	if flags.maxAttempts != 0 {
		cfg.MaxAttempts = flags.maxAttempts
	}
	if flags.mode != "" {
		mode, err := reconnect.ParseMode(flags.mode)
		if err != nil {
			return retry.Config{}, err
		}
		cfg.Mode = mode
	}
	if len(flags.databases) > 0 {
		cfg.TargetPatterns = append([]string(nil), flags.databases...)
	}
	if flags.disableRetry {
		cfg.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return retry.Config{}, err
	}
	return cfg, nil
}

// resolveSettings resolves the connection from flags, environment and file.
func resolveSettings(projectCfg *config.ProjectConfig, flags globalFlags) (*db.Settings, error) {
	connFlags := &db.ConnFlags{
		Driver:         flags.driver,
		DSN:            flags.dsn,
		AuthMethod:     flags.authMethod,
		AWSRegion:      flags.awsRegion,
		GoogleInstance: flags.googleInstance,
	}
	azureFlags := &db.AzureFlags{
		TenantID: flags.azureTenantID,
		ClientID: flags.azureClientID,
	}
	return db.ResolveSettings(connFlags, azureFlags, db.LoadFromEnvironment(), &projectCfg.Connection)
}

// runtimeEnv is everything a command needs to open sessions.
type runtimeEnv struct {
	project  *config.ProjectConfig
	settings *db.Settings
	policy   *retry.Policy
	logger   *logging.ConsoleLogger
	backoff  reconnect.BackoffStrategy
}

// newPolicyEnv loads the configuration and builds the retry policy and
// logger. Commands that never connect use it directly.
func newPolicyEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	projectCfg, err := loadProjectConfig(rootFlags.configPath)
	if err != nil {
		return nil, err
	}

	retryCfg, err := buildRetryConfig(projectCfg, rootFlags)
	if err != nil {
		return nil, err
	}
	policy, err := retry.NewPolicy(retryCfg)
	if err != nil {
		return nil, err
	}

	if rootFlags.backoffStep <= 0 {
		return nil, fmt.Errorf("--backoff-step must be positive, got %s: %w", rootFlags.backoffStep, reconnect.ErrInvalidConfig)
	}

	logger, err := logging.New(logging.Options{
		Verbose: getVerboseFlag(cmd),
		Output:  cmd.ErrOrStderr(),
		NoColor: rootFlags.noColor,
		LogFile: rootFlags.logFile,
	})
	if err != nil {
		return nil, err
	}

	return &runtimeEnv{
		project: projectCfg,
		policy:  policy,
		logger:  logger,
		backoff: retry.NewLinearBackoff(retry.WithStep(rootFlags.backoffStep)),
	}, nil
}

// newRuntimeEnv is newPolicyEnv plus resolved connection settings.
func newRuntimeEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	env, err := newPolicyEnv(cmd)
	if err != nil {
		return nil, err
	}

	env.settings, err = resolveSettings(env.project, rootFlags)
	if err != nil {
		env.Close()
		return nil, err
	}

	if getVerboseFlag(cmd) {
		logSettingsVerbose(env)
	}
	return env, nil
}

// open connects a new session under the shared policy.
func (e *runtimeEnv) open(ctx context.Context, opts ...db.Option) (*db.Session, error) {
	opts = append([]db.Option{db.WithBackoff(e.backoff)}, opts...)
	return db.Open(ctx, e.settings, e.policy, e.logger, opts...)
}

// reload re-reads the configuration file and publishes its retry section.
// Connection settings are not reloaded; open sessions keep their target.
func (e *runtimeEnv) reload() error {
	projectCfg, err := loadProjectConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	cfg, err := buildRetryConfig(projectCfg, rootFlags)
	if err != nil {
		return err
	}
	if err := e.policy.Replace(cfg); err != nil {
		return err
	}
	e.project = projectCfg
	e.logger.Info("Reloaded retry configuration (enabled=%t, mode=%s, max_attempts=%d)",
		cfg.Enabled, cfg.Mode, cfg.MaxAttempts)
	return nil
}

func (e *runtimeEnv) Close() {
	if err := e.logger.Close(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Warning: failed to close log file: %v\n", err)
	}
}

// logSettingsVerbose logs the resolved connection and retry policy.
func logSettingsVerbose(e *runtimeEnv) {
	snap := e.policy.Snapshot()
	e.logger.Verbose("Connection resolved: driver=%s dsn=%s auth=%s",
		e.settings.Driver, db.RedactDSN(e.settings.Driver, e.settings.DSN), e.settings.AuthMethod)

	patterns := "(all)"
	if p := snap.Config().TargetPatterns; len(p) > 0 {
		patterns = strings.Join(p, ", ")
	}
	e.logger.Verbose("Retry policy: enabled=%t mode=%s max_attempts=%d databases=%s",
		snap.Enabled(), snap.Mode(), snap.MaxAttempts(), patterns)
}
