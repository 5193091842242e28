package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// openMySQL creates a database/sql pool for a MySQL DSN. With AWS IAM or
// Azure Entra ID authentication the password is replaced by a fresh token
// before every new physical connection, so reconnects survive token expiry.
//
// AWS IAM requires TLS; add tls=true (or a registered TLS config) to the DSN.
func openMySQL(s *Settings, logger reconnect.Logger) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(s.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w: %w", reconnect.ErrInvalidConfig, err)
	}

	connCfg, err := s.connectionConfig()
	if err != nil {
		return nil, err
	}
	provider, err := newTokenProvider(connCfg)
	if err != nil {
		return nil, err
	}

	if provider != nil {
		tokens := NewTokenBasedConnector(connCfg, provider, logger)
		// tokens are sent as cleartext passwords over the TLS connection
		cfg.AllowCleartextPasswords = true
		err := cfg.Apply(mysql.BeforeConnect(func(ctx context.Context, c *mysql.Config) error {
			token, err := tokens.password(ctx)
			if err != nil {
				return err
			}
			c.Passwd = token
			return nil
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to configure %s authentication: %w", s.AuthMethod, err)
		}
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL configuration: %w: %w", reconnect.ErrInvalidConfig, err)
	}
	return sql.OpenDB(connector), nil
}
