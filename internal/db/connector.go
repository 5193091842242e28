package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Connection pool configuration constants for the pgx backend.
const (
	// DefaultMaxConns allows the pinned connection plus one being
	// established during a reconnect.
	DefaultMaxConns = 2

	// DefaultMinConns keeps no idle connections that could go stale while
	// the server restarts.
	DefaultMinConns = 0

	// DefaultMaxConnIdleTime bounds how long a released connection is kept.
	DefaultMaxConnIdleTime = 30 * time.Minute
)

// Connector creates the pgx pool a PgxBackend draws its pinned connection
// from. Authentication happens per physical connection, so every reconnect
// authenticates again.
type Connector interface {
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}

func configurePool(poolConfig *pgxpool.Config, logger reconnect.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Info("%s", notice.Message)
	}
}

// StandardConnector implements the Connector interface for standard
// username/password authentication.
type StandardConnector struct {
	config *reconnect.ConnectionConfig
	logger reconnect.Logger
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
func NewStandardConnector(config *reconnect.ConnectionConfig, logger reconnect.Logger) *StandardConnector {
	return &StandardConnector{config: config, logger: logger}
}

// Connect creates a pool using standard authentication. No connection is
// opened until the first Acquire.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildConnectionString(c.config))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	configurePool(poolConfig, c.logger)

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

// TokenBasedConnector implements the Connector interface for cloud providers
// that authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
// Every new physical connection presents a token from a shared TokenCache,
// so a reconnect never uses an expired token and a reconnect storm does not
// mint one token per dial.
type TokenBasedConnector struct {
	config *reconnect.ConnectionConfig
	tokens *TokenCache
	logger reconnect.Logger
}

// NewTokenBasedConnector creates a connector that authenticates with tokens
// from tokenProvider.
func NewTokenBasedConnector(config *reconnect.ConnectionConfig, tokenProvider TokenProvider, logger reconnect.Logger) *TokenBasedConnector {
	return &TokenBasedConnector{
		config: config,
		tokens: NewTokenCache(tokenProvider, logger),
		logger: logger,
	}
}

func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildConnectionString(c.config))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	configurePool(poolConfig, c.logger)
	poolConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		token, err := c.password(ctx)
		if err != nil {
			return err
		}
		cc.Password = token
		return nil
	}

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

// password returns the token to present as the password of the next dial.
func (c *TokenBasedConnector) password(ctx context.Context) (string, error) {
	token, _, err := c.tokens.GetToken(ctx)
	return token, err
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *reconnect.ConnectionConfig, logger reconnect.Logger) (Connector, error) {
	switch config.AuthMethod {
	case reconnect.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case reconnect.AuthMethodAWSIAM:
		provider, err := newTokenProvider(config)
		if err != nil {
			return nil, err
		}
		return NewTokenBasedConnector(config, provider, logger), nil
	case reconnect.AuthMethodGoogleIAM:
		return newGoogleConnector(config, logger)
	case reconnect.AuthMethodAzureEntraID:
		provider, err := newTokenProvider(config)
		if err != nil {
			return nil, err
		}
		return NewTokenBasedConnector(config, provider, logger), nil
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, reconnect.ErrUnsupportedAuthMethod)
	}
}

// newTokenProvider builds the TokenProvider for token based auth methods.
// It returns nil for methods that authenticate without a token.
// If explicit Azure credentials (tenant, client, secret) are provided, uses
// Service Principal auth. Otherwise, falls back to DefaultAzureCredential chain.
func newTokenProvider(config *reconnect.ConnectionConfig) (TokenProvider, error) {
	switch config.AuthMethod {
	case reconnect.AuthMethodAWSIAM:
		endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)
		provider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
		}
		return provider, nil

	case reconnect.AuthMethodAzureEntraID:
		if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
			provider, err := NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
			if err != nil {
				return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
			}
			return provider, nil
		}
		provider, err := NewAzureDefaultCredentialProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
		return provider, nil
	}
	return nil, nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(config *reconnect.ConnectionConfig, logger reconnect.Logger) (Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires google_instance (project:region:instance): %w", reconnect.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username: %w", reconnect.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, logger), nil
}

// wrapConnectionError wraps raw connection errors with actionable guidance.
// It is applied to the initial connection only; reconnect failures are
// reported as they are. The result matches reconnect.ErrConnectionFailed.
func wrapConnectionError(err error, host string, port int, database string) error {
	if errors.Is(err, reconnect.ErrConnectionFailed) {
		// token failures already name the provider and carry the sentinel
		return err
	}
	return fmt.Errorf("%w: %w", reconnect.ErrConnectionFailed, connectionGuidance(err, host, port, database))
}

// guidanceRule matches a lowercased driver message by substring. The first
// matching rule wins.
type guidanceRule struct {
	contains []string
	headline func(addr, host, database string) string
	causes   []string
}

var guidanceRules = []guidanceRule{
	{
		contains: []string{"connection refused", "actively refused", "can't connect to mysql server"},
		headline: func(addr, _, _ string) string { return "connection refused to " + addr },
		causes: []string{
			"The database server is not running or is restarting",
			"Wrong host or port",
			"Firewall blocking the connection",
		},
	},
	{
		contains: []string{"no such host", "no host", "unknown mysql server host"},
		headline: func(_, host, _ string) string { return fmt.Sprintf("cannot resolve host %q", host) },
		causes: []string{
			"Hostname is misspelled",
			"DNS is not configured or reachable",
			"The failover DNS record has not propagated yet",
		},
	},
	{
		contains: []string{"password authentication failed", "access denied for user", "pam authentication failed"},
		headline: func(_, _, database string) string {
			return fmt.Sprintf("password authentication failed for database %q", database)
		},
		causes: []string{
			"Wrong password in the DSN",
			"Wrong username",
			"An IAM token was rejected: check the database user is mapped to the IAM role",
		},
	},
	{
		contains: []string{"does not exist", "unknown database"},
		headline: func(_, _, database string) string { return fmt.Sprintf("database %q does not exist", database) },
		causes: []string{
			"Database name is misspelled",
			"The database was dropped during failover",
		},
	},
	{
		contains: []string{"timeout", "timed out"},
		headline: func(addr, _, _ string) string { return "connection timed out to " + addr },
		causes: []string{
			"Server is overloaded or unresponsive",
			"Firewall silently dropping packets",
			"Wrong host/port (server not listening)",
		},
	},
	{
		contains: []string{"ssl", "tls"},
		headline: func(_, _, _ string) string { return "SSL/TLS connection error" },
		causes: []string{
			"Server requires TLS but sslmode (pgx) or tls (mysql) in the DSN is wrong",
			"Certificate verification failed",
		},
	},
	{
		contains: []string{"too many connections"},
		headline: func(_, _, database string) string {
			return fmt.Sprintf("too many connections to database %q", database)
		},
		causes: []string{
			"Connection limit reached on the server",
			"Stale connections left over from earlier reconnects",
		},
	},
}

func connectionGuidance(err error, host string, port int, database string) error {
	msg := strings.ToLower(err.Error())
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	for _, rule := range guidanceRules {
		if !containsAny(msg, rule.contains) {
			continue
		}
		var b strings.Builder
		b.WriteString(rule.headline(addr, host, database))
		b.WriteString("\n\nPossible causes:\n")
		for _, cause := range rule.causes {
			b.WriteString("  - " + cause + "\n")
		}
		return fmt.Errorf("%s\nOriginal error: %w", b.String(), err)
	}
	return fmt.Errorf("failed to connect to database: %w", err)
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
