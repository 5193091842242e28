package retry

import "context"

type scopeKey struct{}

// WithoutRetry returns a context in which failures are never retried.
// The suppression ends with the returned context; the parent is unaffected.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, true)
}

// WithRetry re-enables retry inside a suppressed scope.
func WithRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, false)
}

// Suppressed reports whether retry is suppressed for ctx.
func Suppressed(ctx context.Context) bool {
	suppressed, _ := ctx.Value(scopeKey{}).(bool)
	return suppressed
}

// RunWithoutRetry runs fn with retry suppressed. Operations fn performs with
// the context it receives propagate their first failure unchanged.
func RunWithoutRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(WithoutRetry(ctx))
}
