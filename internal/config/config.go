package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/reconnect/internal/retry"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Driver         string `yaml:"driver,omitempty"`
	DSN            string `yaml:"dsn,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// ErrorMessage registers an operator classification entry.
// Match is a substring unless Regex is set.
type ErrorMessage struct {
	Name      string `yaml:"name"`
	Match     string `yaml:"match"`
	Regex     bool   `yaml:"regex,omitempty"`
	ForceOnly bool   `yaml:"force_only,omitempty"`
}

type RetryConfig struct {
	// Enabled is a pointer so an absent key keeps the default (on).
	Enabled       *bool          `yaml:"enabled,omitempty"`
	MaxAttempts   int            `yaml:"max_attempts,omitempty"`
	Mode          string         `yaml:"mode,omitempty"`
	Databases     []string       `yaml:"databases,omitempty"`
	ErrorMessages []ErrorMessage `yaml:"error_messages,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Retry      RetryConfig      `yaml:"retry"`
}

const ConfigFileName = reconnect.DefaultConfigFileName

// Load reads ConfigFileName from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads the configuration at path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w: %w", filepath.Base(path), reconnect.ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// ToRetryConfig converts the retry section into a validated retry.Config.
// Absent keys keep the values of retry.DefaultConfig.
func (p *ProjectConfig) ToRetryConfig() (retry.Config, error) {
	cfg := retry.DefaultConfig()
	rc := p.Retry

	if rc.Enabled != nil {
		cfg.Enabled = *rc.Enabled
	}
	if rc.MaxAttempts != 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}

	var errs []error
	mode, err := reconnect.ParseMode(rc.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Mode = mode
	cfg.TargetPatterns = append(cfg.TargetPatterns, rc.Databases...)

	for _, m := range rc.ErrorMessages {
		entry := retry.Entry{
			Name:          m.Name,
			Class:         reconnect.ClassCustom,
			RequiresForce: m.ForceOnly,
		}
		switch {
		case m.Match == "":
			// left without a matcher; Validate reports it
		case m.Regex:
			pattern, err := retry.NewPattern(m.Match)
			if err != nil {
				errs = append(errs, fmt.Errorf("error_messages %q: %w: %w", m.Name, reconnect.ErrInvalidConfig, err))
				continue
			}
			entry.Matcher = pattern
		default:
			entry.Matcher = retry.Substring(m.Match)
		}
		cfg.Classifications = append(cfg.Classifications, entry)
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return retry.Config{}, err
	}
	return cfg, nil
}

// FromRetryConfig renders cfg back into the file representation.
func FromRetryConfig(cfg retry.Config) RetryConfig {
	enabled := cfg.Enabled
	rc := RetryConfig{
		Enabled:     &enabled,
		MaxAttempts: cfg.MaxAttempts,
		Mode:        cfg.Mode.String(),
		Databases:   append([]string(nil), cfg.TargetPatterns...),
	}
	for _, e := range cfg.Classifications {
		m := ErrorMessage{Name: e.Name, ForceOnly: e.RequiresForce}
		switch matcher := e.Matcher.(type) {
		case retry.Pattern:
			m.Regex = true
			m.Match = matcher.Expr()
		case nil:
		default:
			m.Match = matcher.String()
		}
		rc.ErrorMessages = append(rc.ErrorMessages, m)
	}
	return rc
}
