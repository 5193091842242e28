package retry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Config is the operator-facing retry configuration.
type Config struct {
	// Enabled is the master switch. When false no operation is retried.
	Enabled bool

	// MaxAttempts is the number of executions allowed per operation,
	// the first one included. Must be at least 1.
	MaxAttempts int

	// Mode selects which operations are eligible for retry.
	Mode reconnect.Mode

	// TargetPatterns restricts retry to matching host[:database] targets.
	// Empty means every target is eligible.
	TargetPatterns []string

	// Classifications are operator entries consulted after the built-ins.
	Classifications []Entry
}

// DefaultConfig returns retry enabled in read-write mode with the default budget.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxAttempts: reconnect.DefaultMaxAttempts,
		Mode:        reconnect.ModeReadWrite,
	}
}

// Validate checks the invariants of the configuration.
// It returns a multi-error if multiple validation failures occur.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be at least 1, got %d: %w", c.MaxAttempts, reconnect.ErrInvalidConfig))
	}

	if !c.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("invalid retry mode %v: %w", c.Mode, reconnect.ErrInvalidConfig))
	}

	for _, p := range c.TargetPatterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("empty target pattern: %w", reconnect.ErrInvalidConfig))
		}
	}

	seen := make(map[string]bool, len(c.Classifications))
	for _, e := range c.Classifications {
		switch {
		case e.Name == "":
			errs = append(errs, fmt.Errorf("classification entry without a name: %w", reconnect.ErrInvalidConfig))
		case e.Matcher == nil:
			errs = append(errs, fmt.Errorf("classification %q has no matcher: %w", e.Name, reconnect.ErrInvalidConfig))
		case seen[e.Name]:
			errs = append(errs, fmt.Errorf("duplicate classification %q: %w", e.Name, reconnect.ErrInvalidConfig))
		}
		seen[e.Name] = true
	}

	return errors.Join(errs...)
}

func (c Config) clone() Config {
	out := c
	out.TargetPatterns = append([]string(nil), c.TargetPatterns...)
	out.Classifications = append([]Entry(nil), c.Classifications...)
	return out
}
