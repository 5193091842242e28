package retry

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// Reason explains a retry decision.
type Reason int

const (
	ReasonRetry Reason = iota
	ReasonSuppressed
	ReasonDisabled
	ReasonNotRetryable
	ReasonTarget
	ReasonForceOnly
	ReasonWriteInReadOnlyMode
	ReasonTransaction
)

func (r Reason) String() string {
	switch r {
	case ReasonRetry:
		return "retry"
	case ReasonSuppressed:
		return "retry suppressed in this scope"
	case ReasonDisabled:
		return "retry disabled"
	case ReasonNotRetryable:
		return "error is not retryable"
	case ReasonTarget:
		return "target not eligible for retry"
	case ReasonForceOnly:
		return "error is retried only in force mode"
	case ReasonWriteInReadOnlyMode:
		return "write statements are not retried in read-only mode"
	case ReasonTransaction:
		return "cannot retry: transaction already executed statements"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// Request carries the per-operation facts a decision depends on.
type Request struct {
	Suppressed bool
	Target     reconnect.Target
	ReadOnly   bool

	// PriorStatements is the number of statements already executed inside
	// the open transaction. Zero outside a transaction.
	PriorStatements int
}

// Decision is the outcome of Decide.
type Decision struct {
	Retry  bool
	Reason Reason
}

// Decide gates a retry of a classified failure. The checks run in a fixed
// order and the first rejection wins.
func (s *Snapshot) Decide(c Classification, req Request) Decision {
	reject := func(r Reason) Decision { return Decision{Reason: r} }

	switch {
	case req.Suppressed:
		return reject(ReasonSuppressed)
	case !s.config.Enabled:
		return reject(ReasonDisabled)
	case !c.Retryable():
		return reject(ReasonNotRetryable)
	case !s.TargetEligible(req.Target):
		return reject(ReasonTarget)
	}

	if s.config.Mode == reconnect.ModeForce {
		return Decision{Retry: true, Reason: ReasonRetry}
	}

	// Force-only entries may still retry reads: a lost read has no side effects.
	switch {
	case c.RequiresForce && !req.ReadOnly:
		return reject(ReasonForceOnly)
	case s.config.Mode == reconnect.ModeReadOnly && !req.ReadOnly:
		return reject(ReasonWriteInReadOnlyMode)
	case req.PriorStatements > 0:
		return reject(ReasonTransaction)
	}
	return Decision{Retry: true, Reason: ReasonRetry}
}

var readKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"VALUES":   true,
	"TABLE":    true,
	"SET":      true,
}

// IsReadStatement reports whether sql is a statement that does not modify
// data. Leading whitespace and comments are skipped. SET counts as a read,
// since it only changes session or server variables. WITH is treated as a
// write because a data-modifying CTE cannot be told apart without parsing.
func IsReadStatement(sql string) bool {
	return readKeywords[firstKeyword(stripLeadingComments(sql))]
}

func firstKeyword(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

func stripLeadingComments(s string) string {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"), strings.HasPrefix(s, "#"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = s[nl+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s[2:], "*/")
			if end < 0 {
				return ""
			}
			s = s[end+4:]
		default:
			return s
		}
	}
}
