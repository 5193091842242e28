package retry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

// State is a step of the retry state machine.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSuccess
	StateWaitingBackoff
	StateReconnecting
	StateExhausted
	StateNonRetryable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAttempting:
		return "Attempting"
	case StateSuccess:
		return "Success"
	case StateWaitingBackoff:
		return "WaitingBackoff"
	case StateReconnecting:
		return "Reconnecting"
	case StateExhausted:
		return "Exhausted"
	case StateNonRetryable:
		return "NonRetryable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Phase tells whether a failure came from the statement or from reconnecting.
type Phase int

const (
	PhaseStatement Phase = iota
	PhaseConnection
)

func (p Phase) String() string {
	if p == PhaseConnection {
		return "connection"
	}
	return "statement"
}

// Attempt describes one failed iteration of the retry loop.
type Attempt struct {
	Index          int
	Wait           time.Duration
	Err            error
	Classification Classification
	Phase          Phase
}

// ExecutionContext is created per operation and lives for its retry loop.
type ExecutionContext struct {
	ID              uuid.UUID
	Statement       string
	Target          reconnect.Target
	InTransaction   bool
	PriorStatements int
	State           State
	Attempts        []Attempt
}

// Call is one operation handed to Execute.
type Call[T any] struct {
	// Driver is reconnected between attempts and names the target.
	Driver reconnect.Driver

	// Statement is the SQL text, used only in log lines.
	Statement string

	// ReadOnly marks the operation as safe to retry in ModeReadOnly.
	ReadOnly bool

	// Guard is the session's transaction record. Nil means no transaction.
	Guard *TransactionGuard

	// AfterReconnect runs after each successful reconnect, before the
	// operation is re-invoked. A failure counts as a connection failure.
	AfterReconnect func(ctx context.Context) error

	// Run executes the operation once.
	Run func(ctx context.Context) (T, error)
}

// Executor drives the retry loop for database operations.
//
// Thread Safety:
// The Executor is safe for concurrent use. Each call reads one policy
// snapshot for its whole loop; concurrent calls share nothing else.
// WithOnRetry returns a NEW instance and leaves the receiver unchanged.
type Executor struct {
	policy   *Policy
	strategy reconnect.BackoffStrategy
	logger   reconnect.Logger
	onRetry  func(ec *ExecutionContext, attempt Attempt)
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a retry executor.
// Panics if policy, strategy or logger is nil.
func NewExecutor(policy *Policy, strategy reconnect.BackoffStrategy, logger reconnect.Logger) *Executor {
	if policy == nil {
		panic("policy cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Executor{
		policy:   policy,
		strategy: strategy,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Policy returns the policy the executor reads its snapshots from.
func (e *Executor) Policy() *Policy {
	return e.policy
}

// WithOnRetry returns a new Executor that calls callback before every
// backoff wait.
//
// Example:
//
//	executor := retry.NewExecutor(policy, retry.NewLinearBackoff(), logger)
//	counting := executor.WithOnRetry(func(ec *retry.ExecutionContext, a retry.Attempt) {
//	    retries.Add(1)
//	})
func (e *Executor) WithOnRetry(callback func(ec *ExecutionContext, attempt Attempt)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Execute runs call.Run, reconnecting and re-running it while failures are
// retryable and the policy allows it.
//
// Non-retryable and scope-suppressed failures are returned unchanged after the
// first attempt. A transaction guard rejection returns *reconnect.StatementError.
// Running out of attempts returns *reconnect.RetryExhaustedError.
func Execute[T any](ctx context.Context, e *Executor, call Call[T]) (T, error) {
	var zero T

	snap := e.policy.Snapshot()
	ec := e.newExecutionContext(call.Driver, call.Statement, call.Guard)
	maxAttempts := snap.MaxAttempts()

	attempt := 1
	e.transition(ec, StateAttempting)
	result, err := call.Run(ctx)
	last := Attempt{Index: attempt, Err: err, Phase: PhaseStatement}

	for {
		if last.Phase == PhaseStatement {
			if err == nil {
				e.transition(ec, StateSuccess)
				return result, nil
			}

			last.Classification = snap.Classify(err)
			decision := snap.Decide(last.Classification, Request{
				Suppressed:      Suppressed(ctx),
				Target:          ec.Target,
				ReadOnly:        call.ReadOnly,
				PriorStatements: ec.PriorStatements,
			})
			if !decision.Retry {
				e.transition(ec, StateNonRetryable)
				e.logger.Verbose("operation %s not retried (%s): %v", ec.ID, decision.Reason, err)
				if decision.Reason == ReasonTransaction {
					return zero, &reconnect.StatementError{Reason: decision.Reason.String(), Cause: err}
				}
				return zero, err
			}
		}

		ec.Attempts = append(ec.Attempts, last)

		if attempt >= maxAttempts {
			e.transition(ec, StateExhausted)
			e.logger.Warn("Query retry failed. %s", e.details(ec, last.Err))
			return zero, exhaustedError(attempt, last)
		}

		e.transition(ec, StateWaitingBackoff)
		last.Wait = e.strategy.NextDelay(attempt)
		ec.Attempts[len(ec.Attempts)-1] = last
		e.logger.Warn("%s Trying to reconnect in %s seconds. %s",
			retryReason(last), formatSeconds(last.Wait), e.details(ec, last.Err))
		if e.onRetry != nil {
			e.onRetry(ec, last)
		}
		if err := e.sleep(ctx, last.Wait); err != nil {
			e.logger.Warn("Query retry cancelled. %s", e.details(ec, last.Err))
			return zero, errors.Join(err, last.Err)
		}

		attempt++
		e.transition(ec, StateReconnecting)
		if rerr := e.reconnect(ctx, ec, call.Driver, call.Guard, call.AfterReconnect); rerr != nil {
			last = Attempt{
				Index:          attempt,
				Err:            rerr,
				Classification: Classification{Class: reconnect.ClassConnectionLost},
				Phase:          PhaseConnection,
			}
			continue
		}

		e.transition(ec, StateAttempting)
		result, err = call.Run(ctx)
		last = Attempt{Index: attempt, Err: err, Phase: PhaseStatement}
	}
}

// reconnect re-establishes the connection and restores the session state the
// operation expects. A transaction open before the failure is not replayed:
// the session starts a fresh one and earlier statements are lost.
func (e *Executor) reconnect(ctx context.Context, ec *ExecutionContext, driver reconnect.Driver, guard *TransactionGuard, after func(context.Context) error) error {
	if err := driver.Reconnect(ctx); err != nil {
		return err
	}
	ec.Target = driver.CurrentTarget()

	if guard != nil && guard.Open() {
		if dropped := guard.Restart(); dropped > 0 {
			e.logger.Warn("Transaction restarted after reconnect; %d uncommitted statement(s) were discarded. (connection: %s)", dropped, ec.Target)
		}
		ec.PriorStatements = 0
	}

	if after != nil {
		return after(ctx)
	}
	return nil
}

func (e *Executor) newExecutionContext(driver reconnect.Driver, statement string, guard *TransactionGuard) *ExecutionContext {
	ec := &ExecutionContext{
		ID:        uuid.New(),
		Statement: statement,
		Target:    driver.CurrentTarget(),
		State:     StateIdle,
	}
	if guard != nil && guard.Open() {
		ec.InTransaction = true
		ec.PriorStatements = guard.Executed()
	} else {
		ec.InTransaction = driver.InTransaction()
	}
	return ec
}

func (e *Executor) transition(ec *ExecutionContext, to State) {
	e.logger.Verbose("operation %s: %s -> %s", ec.ID, ec.State, to)
	ec.State = to
}

// details renders the parenthesised tail shared by all retry warnings.
func (e *Executor) details(ec *ExecutionContext, cause error) string {
	return fmt.Sprintf("(cause: %v, sql: %s, connection: %s)", cause, truncateStatement(ec.Statement), ec.Target)
}

func retryReason(a Attempt) string {
	if a.Phase == PhaseConnection {
		return "Reconnect failed."
	}
	switch a.Classification.Class {
	case reconnect.ClassConnectionLost:
		return "Database connection lost."
	case reconnect.ClassServerUnavailable:
		return "Database server unavailable."
	case reconnect.ClassReadOnlyFailover:
		return "Database server is read-only."
	default:
		return fmt.Sprintf("Retryable error %q.", a.Classification.Entry)
	}
}

func exhaustedError(attempts int, last Attempt) error {
	kind := reconnect.StatementLevel
	if last.Phase == PhaseConnection || last.Classification.Class.ConnectionLevel() {
		kind = reconnect.ConnectionLevel
	}
	return &reconnect.RetryExhaustedError{
		Kind:     kind,
		Attempts: attempts,
		Class:    last.Classification.Class,
		Cause:    last.Err,
	}
}

// formatSeconds renders d with one decimal, as in "1.5".
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64)
}

// truncateStatement collapses whitespace and limits the statement to
// MaxStatementPreviewLength characters.
func truncateStatement(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	runes := []rune(sql)
	if len(runes) <= reconnect.MaxStatementPreviewLength {
		return sql
	}
	return string(runes[:reconnect.MaxStatementPreviewLength]) + "..."
}

// sleepContext waits for d, returning early with ctx.Err() on cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
