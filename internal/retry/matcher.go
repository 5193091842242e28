package retry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// TargetPattern is a compiled host[:database] or bare database specifier
// with SQL LIKE wildcards: '_' matches one character, '%' matches any run,
// and '\' makes the next character literal.
type TargetPattern struct {
	raw string
	re  *regexp.Regexp
}

// CompileTargetPattern compiles a LIKE-style target pattern.
func CompileTargetPattern(pattern string) (TargetPattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return TargetPattern{}, fmt.Errorf("empty target pattern: %w", reconnect.ErrInvalidConfig)
	}

	var b strings.Builder
	b.WriteString(`(?is)\A`)

	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '_':
			b.WriteString(".")
		case '%':
			b.WriteString(".*")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		// trailing backslash stands for itself
		b.WriteString(regexp.QuoteMeta(`\`))
	}
	b.WriteString(`\z`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return TargetPattern{}, fmt.Errorf("target pattern %q: %w", pattern, err)
	}
	return TargetPattern{raw: pattern, re: re}, nil
}

// String returns the pattern as configured.
func (p TargetPattern) String() string {
	return p.raw
}

// Matches reports whether the pattern matches the bare database name or the
// host:database composite of target.
func (p TargetPattern) Matches(target reconnect.Target) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(target.Database) || p.re.MatchString(target.Address())
}

// TargetEligible reports whether retry applies to target. An empty pattern
// list leaves every target eligible.
func TargetEligible(target reconnect.Target, patterns []TargetPattern) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if p.Matches(target) {
			return true
		}
	}
	return false
}

func compileTargetPatterns(patterns []string) ([]TargetPattern, error) {
	compiled := make([]TargetPattern, 0, len(patterns))
	for _, raw := range patterns {
		p, err := CompileTargetPattern(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return compiled, nil
}
