package retry

import (
	"fmt"
	"sync/atomic"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Snapshot is an immutable view of the retry configuration. One operation
// reads one snapshot for its whole retry loop.
type Snapshot struct {
	config   Config
	patterns []TargetPattern
}

func newSnapshot(cfg Config) (*Snapshot, error) {
	cfg = cfg.clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	patterns, err := compileTargetPatterns(cfg.TargetPatterns)
	if err != nil {
		return nil, err
	}
	return &Snapshot{config: cfg, patterns: patterns}, nil
}

// Config returns a copy of the configuration the snapshot was built from.
func (s *Snapshot) Config() Config {
	return s.config.clone()
}

func (s *Snapshot) Enabled() bool        { return s.config.Enabled }
func (s *Snapshot) MaxAttempts() int     { return s.config.MaxAttempts }
func (s *Snapshot) Mode() reconnect.Mode { return s.config.Mode }

// Classify classifies err against the built-ins and this snapshot's registry.
func (s *Snapshot) Classify(err error) Classification {
	return Classify(err, s.config.Classifications)
}

// TargetEligible reports whether the snapshot's target patterns admit target.
func (s *Snapshot) TargetEligible(target reconnect.Target) bool {
	return TargetEligible(target, s.patterns)
}

// Policy holds the process-wide retry configuration. Reads are lock-free;
// updates publish a new snapshot with compare-and-swap, so concurrent
// operations never observe a half-applied change.
type Policy struct {
	current atomic.Pointer[Snapshot]
}

// NewPolicy creates a policy publishing cfg.
func NewPolicy(cfg Config) (*Policy, error) {
	snap, err := newSnapshot(cfg)
	if err != nil {
		return nil, err
	}
	p := &Policy{}
	p.current.Store(snap)
	return p, nil
}

// Snapshot returns the latest published configuration.
func (p *Policy) Snapshot() *Snapshot {
	return p.current.Load()
}

// Update applies fn to a copy of the current configuration and publishes the
// result. fn may run more than once if another writer publishes concurrently.
// Invalid results are rejected and the current snapshot stays in place.
func (p *Policy) Update(fn func(cfg *Config) error) error {
	for {
		old := p.current.Load()
		cfg := old.config.clone()
		if err := fn(&cfg); err != nil {
			return err
		}
		next, err := newSnapshot(cfg)
		if err != nil {
			return err
		}
		if p.current.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// Replace publishes cfg wholesale.
func (p *Policy) Replace(cfg Config) error {
	next, err := newSnapshot(cfg)
	if err != nil {
		return err
	}
	p.current.Store(next)
	return nil
}

// SetEnabled flips the master switch.
func (p *Policy) SetEnabled(enabled bool) error {
	return p.Update(func(cfg *Config) error {
		cfg.Enabled = enabled
		return nil
	})
}

// SetMaxAttempts sets the per-operation execution budget.
func (p *Policy) SetMaxAttempts(n int) error {
	return p.Update(func(cfg *Config) error {
		cfg.MaxAttempts = n
		return nil
	})
}

// SetMode sets the retry mode.
func (p *Policy) SetMode(mode reconnect.Mode) error {
	return p.Update(func(cfg *Config) error {
		cfg.Mode = mode
		return nil
	})
}

// SetTargetPatterns replaces the target patterns. No patterns means every
// target is eligible.
func (p *Policy) SetTargetPatterns(patterns ...string) error {
	return p.Update(func(cfg *Config) error {
		cfg.TargetPatterns = append([]string(nil), patterns...)
		return nil
	})
}

// EntryOption customises an entry registered with AddClassification.
type EntryOption func(*Entry)

// WithClass sets the class reported for the entry instead of ClassCustom.
func WithClass(class reconnect.ErrorClass) EntryOption {
	return func(e *Entry) {
		e.Class = class
	}
}

// ForceOnly restricts retried writes matching the entry to ModeForce.
func ForceOnly() EntryOption {
	return func(e *Entry) {
		e.RequiresForce = true
	}
}

// AddClassification registers an operator entry. Registering an existing
// name replaces that entry in place. The entry applies from the next
// classification on.
func (p *Policy) AddClassification(name string, matcher Matcher, opts ...EntryOption) error {
	if matcher == nil {
		return fmt.Errorf("classification %q has no matcher: %w", name, reconnect.ErrInvalidConfig)
	}
	entry := Entry{Name: name, Class: reconnect.ClassCustom, Matcher: matcher}
	for _, opt := range opts {
		opt(&entry)
	}

	return p.Update(func(cfg *Config) error {
		for i := range cfg.Classifications {
			if cfg.Classifications[i].Name == name {
				cfg.Classifications[i] = entry
				return nil
			}
		}
		cfg.Classifications = append(cfg.Classifications, entry)
		return nil
	})
}
