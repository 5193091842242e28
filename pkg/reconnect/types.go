package reconnect

import (
	"fmt"
	"strings"
	"time"
)

// Mode controls which operations are eligible for retry.
type Mode int

const (
	// ModeReadWrite retries reads and writes, subject to the transaction guard.
	ModeReadWrite Mode = iota
	// ModeReadOnly retries only operations marked read-only.
	ModeReadOnly
	// ModeForce retries any retryable failure, accepting duplicate side effects.
	ModeForce
)

// String returns the configuration spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeReadWrite:
		return "rw"
	case ModeReadOnly:
		return "r"
	case ModeForce:
		return "force"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// IsValid returns true if the Mode is a defined value.
func (m Mode) IsValid() bool {
	return m >= ModeReadWrite && m <= ModeForce
}

// ParseMode accepts the configuration spellings of a mode.
// Both the short forms (rw, r, force) and the long forms are accepted.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rw", "readwrite", "read-write", "read_write":
		return ModeReadWrite, nil
	case "r", "readonly", "read-only", "read_only":
		return ModeReadOnly, nil
	case "force":
		return ModeForce, nil
	default:
		return ModeReadWrite, fmt.Errorf("unknown retry mode %q (want rw, r or force): %w", s, ErrInvalidConfig)
	}
}

// ErrorClass is the result of classifying a raw driver error.
type ErrorClass int

const (
	ClassNotRetryable ErrorClass = iota
	ClassConnectionLost
	ClassServerUnavailable
	ClassReadOnlyFailover
	ClassCustom
)

// String returns a human-readable string representation of the ErrorClass.
func (c ErrorClass) String() string {
	switch c {
	case ClassNotRetryable:
		return "NotRetryable"
	case ClassConnectionLost:
		return "ConnectionLost"
	case ClassServerUnavailable:
		return "ServerUnavailable"
	case ClassReadOnlyFailover:
		return "ReadOnlyFailover"
	case ClassCustom:
		return "Custom"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Retryable reports whether errors of this class may be retried at all.
func (c ErrorClass) Retryable() bool {
	return c > ClassNotRetryable && c <= ClassCustom
}

// ConnectionLevel reports whether the class signals an unreachable database
// rather than a statement rejected by a healthy server.
func (c ErrorClass) ConnectionLevel() bool {
	return c == ClassConnectionLost || c == ClassServerUnavailable
}

// Target identifies the database a connection is bound to.
type Target struct {
	Host     string
	Port     int
	Database string
	Username string
}

// Address returns host:database, the composite matched by target patterns.
func (t Target) Address() string {
	return t.Host + ":" + t.Database
}

// String renders the connection identity used in retry warnings.
func (t Target) String() string {
	return fmt.Sprintf("host=%s;database=%s;username=%s", t.Host, t.Database, t.Username)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Cloud authentication parameters, used by the matching AuthMethod.
	AWSRegion         string
	GoogleInstance    string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// Target returns the identity of the database the config points at.
func (c *ConnectionConfig) Target() Target {
	return Target{
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		Username: c.Username,
	}
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// UsesToken reports whether the method authenticates with a short-lived
// token minted per physical connection instead of a stored password.
func (a AuthMethod) UsesToken() bool {
	return a == AuthMethodAWSIAM || a == AuthMethodAzureEntraID
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps the configuration spelling to an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam", "aws_iam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam", "google_iam":
		return AuthMethodGoogleIAM, nil
	case "azure", "azure-entra-id", "entra":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("unknown auth method %q: %w", s, ErrUnsupportedAuthMethod)
	}
}
