package db

import (
	"fmt"
	"os"

	"github.com/vvka-141/reconnect/internal/config"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Settings is the fully resolved connection configuration handed to Open.
type Settings struct {
	Driver     string
	DSN        string
	AuthMethod reconnect.AuthMethod

	AWSRegion         string
	GoogleInstance    string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// Target returns the identity of the database the settings point at.
func (s *Settings) Target() (reconnect.Target, error) {
	return ParseTarget(s.Driver, s.DSN)
}

// ConnFlags represents connection parameters from CLI flags.
//
// Note: there is no password flag. Put the password in the DSN, preferably
// through $RECONNECT_DSN or a .env file rather than the command line.
type ConnFlags struct {
	Driver         string
	DSN            string
	AuthMethod     string
	AWSRegion      string
	GoogleInstance string
}

// AzureFlags represents Azure Entra ID CLI flags.
// These override the corresponding AZURE_* environment variables.
// Note: Client secret is NOT included as a CLI flag for security reasons.
// Use AZURE_CLIENT_SECRET environment variable instead.
type AzureFlags struct {
	TenantID string // Overrides AZURE_TENANT_ID
	ClientID string // Overrides AZURE_CLIENT_ID
}

// IsEmpty returns true if no Azure flags were provided.
func (a *AzureFlags) IsEmpty() bool {
	return a == nil || (a.TenantID == "" && a.ClientID == "")
}

// EnvVars represents the environment variables that configure a connection.
type EnvVars struct {
	RECONNECT_DSN         string // Full DSN for the configured driver
	RECONNECT_DRIVER      string // pgx, mysql or sqlite
	RECONNECT_AUTH_METHOD string // standard, aws, google or azure
	DATABASE_URL          string // Full connection string (Heroku/Rails convention)
	AWS_REGION            string // Region for AWS IAM tokens

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string // Azure AD tenant/directory ID
	AZURE_CLIENT_ID     string // Azure AD application/client ID
	AZURE_CLIENT_SECRET string // Azure AD client secret (for Service Principal auth)
}

// LoadFromEnvironment loads the connection and cloud provider environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		RECONNECT_DSN:         os.Getenv("RECONNECT_DSN"),
		RECONNECT_DRIVER:      os.Getenv("RECONNECT_DRIVER"),
		RECONNECT_AUTH_METHOD: os.Getenv("RECONNECT_AUTH_METHOD"),
		DATABASE_URL:          os.Getenv("DATABASE_URL"),
		AWS_REGION:            os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:       os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:       os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:   os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// HasAzureCredentials returns true if Azure Entra ID environment variables are set.
func (e *EnvVars) HasAzureCredentials() bool {
	return e.AZURE_TENANT_ID != "" || e.AZURE_CLIENT_ID != ""
}

// ResolveSettings resolves the connection settings. Each value is taken from
// the first source that sets it:
//
// 1. CLI flags (--dsn, --driver, --auth-method, ...)
// 2. Environment variables (RECONNECT_DSN, then DATABASE_URL for the DSN)
// 3. The connection section of reconnect.yaml
//
// The driver is inferred from the DSN when no source names it.
//
// Azure Entra ID Authentication:
// If azureFlags are provided OR Azure environment variables are set (AZURE_TENANT_ID, etc.),
// and no auth method was chosen explicitly, the AuthMethod is set to AzureEntraID.
// CLI flags take precedence over environment variables.
func ResolveSettings(
	flags *ConnFlags,
	azureFlags *AzureFlags,
	envVars *EnvVars,
	fileConfig *config.ConnectionConfig,
) (*Settings, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if azureFlags == nil {
		azureFlags = &AzureFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}
	if fileConfig == nil {
		fileConfig = &config.ConnectionConfig{}
	}

	s := &Settings{
		DSN:            firstNonEmpty(flags.DSN, envVars.RECONNECT_DSN, envVars.DATABASE_URL, fileConfig.DSN),
		AWSRegion:      firstNonEmpty(flags.AWSRegion, envVars.AWS_REGION, fileConfig.AWSRegion),
		GoogleInstance: firstNonEmpty(flags.GoogleInstance, fileConfig.GoogleInstance),
	}
	if s.DSN == "" {
		return nil, fmt.Errorf(
			"no database configured\n"+
				"Choose one approach:\n"+
				"  1. Flag: --dsn \"app:secret@tcp(localhost:3306)/employees\"\n"+
				"  2. Environment: export RECONNECT_DSN=... (or DATABASE_URL)\n"+
				"  3. %s: connection.dsn: ...: %w", config.ConfigFileName, reconnect.ErrInvalidConfig)
	}

	var err error
	if name := firstNonEmpty(flags.Driver, envVars.RECONNECT_DRIVER, fileConfig.Driver); name != "" {
		s.Driver, err = NormalizeDriver(name)
	} else {
		s.Driver, err = InferDriver(s.DSN)
	}
	if err != nil {
		return nil, err
	}

	authName := firstNonEmpty(flags.AuthMethod, envVars.RECONNECT_AUTH_METHOD, fileConfig.AuthMethod)
	if s.AuthMethod, err = reconnect.ParseAuthMethod(authName); err != nil {
		return nil, err
	}

	applyAzureAuth(s, authName == "", azureFlags, envVars, fileConfig)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects driver and auth method combinations no backend supports.
func (s *Settings) Validate() error {
	switch {
	case s.Driver == DriverSQLite && s.AuthMethod != reconnect.AuthMethodStandard:
		return fmt.Errorf("sqlite does not support %s authentication: %w", s.AuthMethod, reconnect.ErrUnsupportedAuthMethod)
	case s.Driver == DriverMySQL && s.AuthMethod == reconnect.AuthMethodGoogleIAM:
		return fmt.Errorf("Google IAM authentication is only available with the pgx driver: %w", reconnect.ErrUnsupportedAuthMethod)
	}
	return nil
}

// applyAzureAuth attaches Azure credentials. When implicit is set, the mere
// presence of credentials switches the auth method to Azure Entra ID.
func applyAzureAuth(s *Settings, implicit bool, flags *AzureFlags, env *EnvVars, file *config.ConnectionConfig) {
	tenantID := firstNonEmpty(flags.TenantID, env.AZURE_TENANT_ID, file.AzureTenantID)
	clientID := firstNonEmpty(flags.ClientID, env.AZURE_CLIENT_ID, file.AzureClientID)

	if implicit && (tenantID != "" || clientID != "") {
		s.AuthMethod = reconnect.AuthMethodAzureEntraID
	}
	if s.AuthMethod != reconnect.AuthMethodAzureEntraID {
		return
	}
	s.AzureTenantID = tenantID
	s.AzureClientID = clientID
	// Client secret only comes from env var (no flag for security)
	s.AzureClientSecret = env.AZURE_CLIENT_SECRET
}

// connectionConfig builds the connector configuration from the settings.
func (s *Settings) connectionConfig() (*reconnect.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(s.Driver, s.DSN)
	if err != nil {
		return nil, err
	}
	cfg.AuthMethod = s.AuthMethod
	cfg.AWSRegion = s.AWSRegion
	cfg.GoogleInstance = s.GoogleInstance
	cfg.AzureTenantID = s.AzureTenantID
	cfg.AzureClientID = s.AzureClientID
	cfg.AzureClientSecret = s.AzureClientSecret
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
