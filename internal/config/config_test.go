package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/reconnect/internal/retry"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
	return dir
}

func TestLoad_AllFields(t *testing.T) {
	dir := writeConfig(t, `connection:
  driver: mysql
  dsn: app:secret@tcp(db1:3306)/employees
  auth_method: aws
  aws_region: eu-west-1

retry:
  enabled: true
  max_attempts: 5
  mode: r
  databases:
    - db1:employees
    - db2
  error_messages:
    - name: deadlock
      match: Deadlock found
    - name: lock_wait
      match: "^Lock wait timeout"
      regex: true
      force_only: true
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "mysql", cfg.Connection.Driver)
	assert.Equal(t, "app:secret@tcp(db1:3306)/employees", cfg.Connection.DSN)
	assert.Equal(t, "aws", cfg.Connection.AuthMethod)
	assert.Equal(t, "eu-west-1", cfg.Connection.AWSRegion)

	require.NotNil(t, cfg.Retry.Enabled)
	assert.True(t, *cfg.Retry.Enabled)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "r", cfg.Retry.Mode)
	assert.Equal(t, []string{"db1:employees", "db2"}, cfg.Retry.Databases)
	require.Len(t, cfg.Retry.ErrorMessages, 2)
	assert.Equal(t, ErrorMessage{Name: "lock_wait", Match: "^Lock wait timeout", Regex: true, ForceOnly: true}, cfg.Retry.ErrorMessages[1])
}

func TestLoad_MinimalYAML(t *testing.T) {
	dir := writeConfig(t, `connection:
  dsn: postgresql://localhost/app
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgresql://localhost/app", cfg.Connection.DSN)
	assert.Nil(t, cfg.Retry.Enabled)
	assert.Equal(t, 0, cfg.Retry.MaxAttempts)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(t.TempDir())
	assert.True(t, errors.Is(err, ErrConfigNotFound), "expected ErrConfigNotFound, got: %v", err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := writeConfig(t, "{{invalid")

	cfg, err := Load(dir)
	assert.ErrorIs(t, err, reconnect.ErrInvalidConfig)
	assert.Nil(t, cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := writeConfig(t, "")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ProjectConfig{}, *cfg)
}

func TestToRetryConfig_Defaults(t *testing.T) {
	cfg, err := (&ProjectConfig{}).ToRetryConfig()
	require.NoError(t, err)
	assert.Equal(t, retry.DefaultConfig(), cfg)
}

func TestToRetryConfig_AllFields(t *testing.T) {
	disabled := false
	pc := &ProjectConfig{Retry: RetryConfig{
		Enabled:     &disabled,
		MaxAttempts: 3,
		Mode:        "force",
		Databases:   []string{"db1:employees"},
		ErrorMessages: []ErrorMessage{
			{Name: "deadlock", Match: "Deadlock found"},
			{Name: "lock_wait", Match: `^Lock wait \d+`, Regex: true, ForceOnly: true},
		},
	}}

	cfg, err := pc.ToRetryConfig()
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, reconnect.ModeForce, cfg.Mode)
	assert.Equal(t, []string{"db1:employees"}, cfg.TargetPatterns)
	require.Len(t, cfg.Classifications, 2)

	assert.Equal(t, reconnect.ClassCustom, cfg.Classifications[0].Class)
	assert.True(t, cfg.Classifications[0].Matcher.Match("Deadlock found when trying to get lock"))
	assert.False(t, cfg.Classifications[0].RequiresForce)

	assert.True(t, cfg.Classifications[1].Matcher.Match("Lock wait 50 exceeded"))
	assert.False(t, cfg.Classifications[1].Matcher.Match("no Lock wait 50"))
	assert.True(t, cfg.Classifications[1].RequiresForce)
}

func TestToRetryConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		retry RetryConfig
	}{
		{name: "negative attempts", retry: RetryConfig{MaxAttempts: -1}},
		{name: "unknown mode", retry: RetryConfig{Mode: "sometimes"}},
		{name: "empty database pattern", retry: RetryConfig{Databases: []string{" "}}},
		{name: "bad regex", retry: RetryConfig{ErrorMessages: []ErrorMessage{{Name: "x", Match: "(", Regex: true}}}},
		{name: "missing match", retry: RetryConfig{ErrorMessages: []ErrorMessage{{Name: "x"}}}},
		{name: "duplicate names", retry: RetryConfig{ErrorMessages: []ErrorMessage{
			{Name: "x", Match: "a"},
			{Name: "x", Match: "b"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&ProjectConfig{Retry: tt.retry}).ToRetryConfig()
			assert.ErrorIs(t, err, reconnect.ErrInvalidConfig)
		})
	}
}

func TestFromRetryConfig_RoundTrip(t *testing.T) {
	enabled := true
	original := RetryConfig{
		Enabled:     &enabled,
		MaxAttempts: 4,
		Mode:        "r",
		Databases:   []string{"db1"},
		ErrorMessages: []ErrorMessage{
			{Name: "deadlock", Match: "Deadlock found"},
			{Name: "lock_wait", Match: `^Lock wait`, Regex: true, ForceOnly: true},
		},
	}

	cfg, err := (&ProjectConfig{Retry: original}).ToRetryConfig()
	require.NoError(t, err)
	assert.Equal(t, original, FromRetryConfig(cfg))
}
