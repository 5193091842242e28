// Package retry reconnects and re-executes database operations that failed
// with a transient connection error.
//
// An operation runs through Execute. A failure is classified (Classify), the
// policy snapshot decides whether a retry is safe (Snapshot.Decide), and the
// executor then waits a linear backoff, reconnects the driver and runs the
// operation again until it succeeds or MaxAttempts executions are spent.
//
// # Example Usage
//
//	policy, _ := retry.NewPolicy(retry.DefaultConfig())
//	executor := retry.NewExecutor(policy, retry.NewLinearBackoff(), logger)
//
//	rows, err := retry.Execute(ctx, executor, retry.Call[int64]{
//	    Driver:    conn,
//	    Statement: "UPDATE accounts SET ...",
//	    Run: func(ctx context.Context) (int64, error) {
//	        return conn.Exec(ctx, "UPDATE accounts SET ...")
//	    },
//	})
//
// # Modes
//
// ModeReadWrite retries reads and writes unless the open transaction already
// ran statements. ModeReadOnly retries only calls marked ReadOnly. ModeForce
// retries every retryable failure, including force-only classifications and
// failures inside a transaction; the transaction is restarted and statements
// executed before the failure are lost.
//
// # Scope
//
// WithoutRetry and RunWithoutRetry suppress retry for everything run with the
// derived context. Suppression never leaks to the parent context.
//
// # Thread Safety
//
// Policy reads are lock-free and updates are atomic. Executor instances are
// safe for concurrent use. TransactionGuard and Driver values belong to one
// call chain.
package retry
