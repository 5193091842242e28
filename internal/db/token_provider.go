package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// TokenProvider abstracts cloud token acquisition for database authentication.
type TokenProvider interface {
	// GetToken acquires a token used as the password of the next connection.
	// Returns the token string and its expiry time.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String returns a human-readable description for logging.
	// Should NOT include secrets. Example: "AzureServicePrincipal(tenant=xxx, client=yyy)"
	String() string
}

// AzureDatabaseScope is the OAuth scope for Azure Database for PostgreSQL and
// Azure Database for MySQL flexible servers.
const AzureDatabaseScope = "https://ossrdbms-aad.database.windows.net/.default"

const (
	// tokenRefreshMargin is how long before expiry a cached token is replaced,
	// so a dial never presents a token that lapses during the handshake.
	tokenRefreshMargin = time.Minute

	// shortLivedTokenThreshold triggers a warning for freshly minted tokens.
	shortLivedTokenThreshold = 5 * time.Minute
)

// tokenFailure reports a failed token acquisition. The error matches
// reconnect.ErrConnectionFailed: no connection can be made without a token.
func tokenFailure(provider fmt.Stringer, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, reconnect.ErrConnectionFailed, err)
}

// TokenCache hands out one token until shortly before it expires. During a
// failover every session reconnects at once; without the cache each dial
// would mint its own token.
type TokenCache struct {
	provider TokenProvider
	logger   reconnect.Logger
	margin   time.Duration
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresOn time.Time
}

// NewTokenCache wraps provider with a cache refreshed tokenRefreshMargin
// before expiry.
func NewTokenCache(provider TokenProvider, logger reconnect.Logger) *TokenCache {
	return &TokenCache{
		provider: provider,
		logger:   logger,
		margin:   tokenRefreshMargin,
		now:      time.Now,
	}
}

// GetToken returns the cached token or mints a new one. Concurrent callers
// wait for a single acquisition.
func (c *TokenCache) GetToken(ctx context.Context) (string, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresOn.Add(-c.margin)) {
		return c.token, c.expiresOn, nil
	}

	token, expiresOn, err := c.provider.GetToken(ctx)
	if err != nil {
		c.token = ""
		return "", time.Time{}, err
	}
	c.token, c.expiresOn = token, expiresOn

	remaining := expiresOn.Sub(c.now()).Round(time.Second)
	if remaining < shortLivedTokenThreshold {
		c.logger.Warn("%s token expires in %v", c.provider, remaining)
	} else {
		c.logger.Verbose("Acquired %s token, valid for %v", c.provider, remaining)
	}
	return token, expiresOn, nil
}

func (c *TokenCache) String() string {
	return c.provider.String()
}
