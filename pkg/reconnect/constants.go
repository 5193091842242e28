package reconnect

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Database unreachable (including exhausted reconnects)
	ExitStatementFailed = 13 // Statement failed with a healthy connection
)

const (
	// DefaultMaxAttempts is the default number of times an operation is executed
	// before the retry loop gives up. The first execution counts as an attempt.
	DefaultMaxAttempts = 10

	// DefaultBackoffStep is the linear backoff increment: the wait before the
	// n-th retry is n * DefaultBackoffStep.
	DefaultBackoffStep = 500 * time.Millisecond

	// MaxStatementPreviewLength is the maximum number of characters of a
	// statement included in retry warnings.
	MaxStatementPreviewLength = 200

	// DefaultConfigFileName is looked up in the working directory when
	// --config is not given.
	DefaultConfigFileName = "reconnect.yaml"
)
