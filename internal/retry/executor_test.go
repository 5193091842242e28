package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vvka-141/reconnect/internal/logging"
	mocks "github.com/vvka-141/reconnect/internal/mocks/driver"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

const employeesQuery = "SELECT * FROM employees"

var (
	errGoneAway      = errors.New("MySQL server has gone away")
	errLostDuringQry = errors.New("Lost connection to MySQL server during query")
	errRefused       = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
	errReadOnly      = errors.New("The MySQL server is running with the --read-only option so it cannot execute this statement")
	errUnexpected    = errors.New("unexpected error")
)

// fakeDriver records reconnects and fails them with the queued errors.
type fakeDriver struct {
	target        reconnect.Target
	inTx          bool
	reconnects    int
	reconnectErrs []error
}

func (d *fakeDriver) Reconnect(ctx context.Context) error {
	d.reconnects++
	if len(d.reconnectErrs) == 0 {
		return nil
	}
	err := d.reconnectErrs[0]
	if len(d.reconnectErrs) > 1 {
		d.reconnectErrs = d.reconnectErrs[1:]
	}
	return err
}

func (d *fakeDriver) CurrentTarget() reconnect.Target { return d.target }
func (d *fakeDriver) InTransaction() bool             { return d.inTx }

// scriptedOp fails with the queued errors, then succeeds with result.
type scriptedOp struct {
	errs   []error
	result int
	calls  int
}

func (o *scriptedOp) run(ctx context.Context) (int, error) {
	o.calls++
	if o.calls <= len(o.errs) {
		return 0, o.errs[o.calls-1]
	}
	return o.result, nil
}

func failing(n int, err error) *scriptedOp {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = err
	}
	return &scriptedOp{errs: errs, result: 1000}
}

type harness struct {
	executor *Executor
	policy   *Policy
	logger   *logging.RecordingLogger
	waits    []time.Duration
	driver   *fakeDriver
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		policy: newTestPolicy(t, mutate),
		logger: logging.NewRecordingLogger(),
		driver: &fakeDriver{target: employeesTarget},
	}
	h.executor = NewExecutor(h.policy, NewLinearBackoff(), h.logger)
	h.executor.sleep = func(ctx context.Context, d time.Duration) error {
		h.waits = append(h.waits, d)
		return ctx.Err()
	}
	return h
}

func (h *harness) call(op *scriptedOp) Call[int] {
	return Call[int]{
		Driver:    h.driver,
		Statement: employeesQuery,
		ReadOnly:  true,
		Run:       op.run,
	}
}

func seconds(values ...float64) []time.Duration {
	out := make([]time.Duration, len(values))
	for i, v := range values {
		out[i] = time.Duration(v * float64(time.Second))
	}
	return out
}

func TestExecute_SuccessOnFirstAttempt(t *testing.T) {
	h := newHarness(t, nil)
	op := failing(0, nil)

	got, err := Execute(context.Background(), h.executor, h.call(op))

	require.NoError(t, err)
	assert.Equal(t, 1000, got)
	assert.Equal(t, 1, op.calls)
	assert.Zero(t, h.driver.reconnects)
	assert.Empty(t, h.logger.Warnings())
}

func TestExecute_GoneAwayOnceThenSuccess(t *testing.T) {
	h := newHarness(t, nil)
	op := failing(1, errGoneAway)

	got, err := Execute(context.Background(), h.executor, h.call(op))

	require.NoError(t, err)
	assert.Equal(t, 1000, got)
	assert.Equal(t, 2, op.calls)
	assert.Equal(t, 1, h.driver.reconnects)
	assert.Equal(t, seconds(0.5), h.waits)
	assert.Equal(t, []string{
		"Database connection lost. Trying to reconnect in 0.5 seconds. " +
			"(cause: MySQL server has gone away, sql: SELECT * FROM employees, connection: host=127.0.0.1;database=employees;username=root)",
	}, h.logger.Warnings())
}

func TestExecute_SucceedsWithinBudget(t *testing.T) {
	h := newHarness(t, nil)
	op := failing(9, errGoneAway)

	got, err := Execute(context.Background(), h.executor, h.call(op))

	require.NoError(t, err)
	assert.Equal(t, 1000, got)
	assert.Equal(t, 10, op.calls)
	assert.Equal(t, seconds(0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0, 4.5), h.waits)
}

func TestExecute_UnexpectedErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, nil)
	op := failing(1, errUnexpected)

	_, err := Execute(context.Background(), h.executor, h.call(op))

	assert.Same(t, errUnexpected, err)
	assert.Equal(t, 1, op.calls)
	assert.Zero(t, h.driver.reconnects)
	assert.Empty(t, h.waits)
	assert.Empty(t, h.logger.Warnings())
}

func TestExecute_DisabledPropagatesFirstFailure(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Enabled = false })
	op := failing(1, errGoneAway)

	_, err := Execute(context.Background(), h.executor, h.call(op))

	assert.Same(t, errGoneAway, err)
	assert.Equal(t, 1, op.calls)
	assert.Zero(t, h.driver.reconnects)
}

func TestExecute_SuppressedScopeReturnsOriginalError(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 100 })
	op := failing(1, errGoneAway)

	err := RunWithoutRetry(context.Background(), func(ctx context.Context) error {
		_, err := Execute(ctx, h.executor, h.call(op))
		return err
	})

	assert.Same(t, errGoneAway, err)
	assert.Equal(t, 1, op.calls)
	assert.Empty(t, h.waits)
}

func TestExecute_ReadOnlyMode(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Mode = reconnect.ModeReadOnly })

	write := failing(1, errGoneAway)
	call := h.call(write)
	call.ReadOnly = false
	_, err := Execute(context.Background(), h.executor, call)
	assert.Same(t, errGoneAway, err)
	assert.Equal(t, 1, write.calls)

	read := failing(1, errGoneAway)
	got, err := Execute(context.Background(), h.executor, h.call(read))
	require.NoError(t, err)
	assert.Equal(t, 1000, got)
	assert.Equal(t, 2, read.calls)
}

func TestExecute_TargetPatterns(t *testing.T) {
	t.Run("non-matching pattern disables retry", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.TargetPatterns = []string{"thishost:thisdb"} })
		h.driver.target = reconnect.Target{Host: "otherhost", Database: "otherdb"}
		op := failing(1, errGoneAway)

		_, err := Execute(context.Background(), h.executor, h.call(op))

		assert.Same(t, errGoneAway, err)
		assert.Zero(t, h.driver.reconnects)
	})

	for _, pattern := range []string{"employees", "127.0.0.1:employees", "127.0.0._:e%"} {
		t.Run("matching "+pattern, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.TargetPatterns = []string{"employees2", pattern} })
			op := failing(1, errGoneAway)

			got, err := Execute(context.Background(), h.executor, h.call(op))

			require.NoError(t, err)
			assert.Equal(t, 1000, got)
			assert.Equal(t, 1, h.driver.reconnects)
		})
	}
}

func TestExecute_ForceOnlyErrorRetriesReads(t *testing.T) {
	h := newHarness(t, nil)
	op := failing(1, errLostDuringQry)

	got, err := Execute(context.Background(), h.executor, h.call(op))

	require.NoError(t, err)
	assert.Equal(t, 1000, got)
	assert.Equal(t, 2, op.calls)
	assert.Equal(t, 1, h.driver.reconnects)
	assert.Equal(t, seconds(0.5), h.waits)
}

func TestExecute_ForceOnlyErrorNeedsForceModeForWrites(t *testing.T) {
	h := newHarness(t, nil)
	op := failing(1, errLostDuringQry)
	call := h.call(op)
	call.ReadOnly = false

	_, err := Execute(context.Background(), h.executor, call)
	assert.Same(t, errLostDuringQry, err)
	assert.Equal(t, 1, op.calls)
	assert.Zero(t, h.driver.reconnects)

	require.NoError(t, h.policy.SetMode(reconnect.ModeForce))
	op = failing(1, errLostDuringQry)
	call = h.call(op)
	call.ReadOnly = false
	got, err := Execute(context.Background(), h.executor, call)
	require.NoError(t, err)
	assert.Equal(t, 1000, got)
}

func TestExecute_ReadExhaustedWhileServerDown(t *testing.T) {
	h := newHarness(t, nil)
	h.driver.reconnectErrs = []error{errRefused}
	op := failing(1, errLostDuringQry)

	_, err := Execute(context.Background(), h.executor, h.call(op))

	var exhausted *reconnect.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, reconnect.ConnectionLevel, exhausted.Kind)
	assert.True(t, errors.Is(err, reconnect.ErrDatabaseConnection))
	assert.Equal(t, 1, op.calls)
	assert.Equal(t, 9, h.driver.reconnects)

	warnings := h.logger.Warnings()
	require.Len(t, warnings, 10)
	assert.True(t, strings.HasPrefix(warnings[0], "Database connection lost. Trying to reconnect in 0.5 seconds. (cause: Lost connection to MySQL server during query"))
	for i, sec := range []string{"1.0", "1.5", "2.0", "2.5", "3.0", "3.5", "4.0", "4.5"} {
		assert.True(t, strings.HasPrefix(warnings[i+1], "Reconnect failed. Trying to reconnect in "+sec+" seconds."), warnings[i+1])
	}
	assert.True(t, strings.HasPrefix(warnings[9], "Query retry failed. (cause: dial tcp"))
}

func TestExecute_ExhaustedAfterReconnectFailures(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Mode = reconnect.ModeForce })
	h.driver.reconnectErrs = []error{errRefused}
	op := failing(1, errLostDuringQry)

	_, err := Execute(context.Background(), h.executor, h.call(op))

	var exhausted *reconnect.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, reconnect.ConnectionLevel, exhausted.Kind)
	assert.Equal(t, 10, exhausted.Attempts)
	assert.True(t, errors.Is(err, reconnect.ErrDatabaseConnection))
	assert.True(t, errors.Is(err, errRefused))

	assert.Equal(t, 1, op.calls, "operation is not re-run while reconnects fail")
	assert.Equal(t, 9, h.driver.reconnects)
	assert.Equal(t, seconds(0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0, 4.5), h.waits)

	warnings := h.logger.Warnings()
	require.Len(t, warnings, 10)
	assert.True(t, strings.HasPrefix(warnings[0], "Database connection lost. Trying to reconnect in 0.5 seconds. (cause: Lost connection"))
	for i, sec := range []string{"1.0", "1.5", "2.0", "2.5", "3.0", "3.5", "4.0", "4.5"} {
		assert.Equal(t, fmt.Sprintf("Reconnect failed. Trying to reconnect in %s seconds. (cause: %v, sql: %s, connection: %s)",
			sec, errRefused, employeesQuery, employeesTarget), warnings[i+1])
	}
	assert.True(t, strings.HasPrefix(warnings[9], "Query retry failed. (cause: dial tcp"))
}

func TestExecute_ExhaustedStatementLevel(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 3 })
	op := failing(5, errReadOnly)

	_, err := Execute(context.Background(), h.executor, h.call(op))

	var exhausted *reconnect.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, reconnect.StatementLevel, exhausted.Kind)
	assert.Equal(t, reconnect.ClassReadOnlyFailover, exhausted.Class)
	assert.True(t, errors.Is(err, reconnect.ErrStatementInvalid))
	assert.False(t, errors.Is(err, reconnect.ErrDatabaseConnection))
	assert.Contains(t, err.Error(), errReadOnly.Error())
	assert.Equal(t, 3, op.calls)
	assert.Equal(t, seconds(0.5, 1.0), h.waits)
}

func TestExecute_MaxAttemptsOneNeverRetries(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 1 })
	op := failing(1, errGoneAway)

	_, err := Execute(context.Background(), h.executor, h.call(op))

	assert.True(t, errors.Is(err, reconnect.ErrDatabaseConnection))
	assert.Equal(t, 1, op.calls)
	assert.Empty(t, h.waits)
	assert.Equal(t, []string{"Query retry failed. (cause: MySQL server has gone away, sql: SELECT * FROM employees, connection: host=127.0.0.1;database=employees;username=root)"}, h.logger.Warnings())
}

func TestExecute_TransactionGuard(t *testing.T) {
	t.Run("read-write rejects after prior statement", func(t *testing.T) {
		h := newHarness(t, nil)
		guard := &TransactionGuard{}
		guard.Begin()
		guard.Record()

		call := h.call(failing(1, errGoneAway))
		call.Guard = guard
		_, err := Execute(context.Background(), h.executor, call)

		var stmtErr *reconnect.StatementError
		require.ErrorAs(t, err, &stmtErr)
		assert.True(t, errors.Is(err, reconnect.ErrStatementInvalid))
		assert.True(t, errors.Is(err, errGoneAway))
		assert.Zero(t, h.driver.reconnects)
	})

	t.Run("read-write retries first statement", func(t *testing.T) {
		h := newHarness(t, nil)
		guard := &TransactionGuard{}
		guard.Begin()
		rebegun := 0

		call := h.call(failing(1, errGoneAway))
		call.Guard = guard
		call.AfterReconnect = func(ctx context.Context) error {
			rebegun++
			return nil
		}
		_, err := Execute(context.Background(), h.executor, call)

		require.NoError(t, err)
		assert.Equal(t, 1, rebegun)
		assert.Len(t, h.logger.Warnings(), 1)
	})

	t.Run("force retries and drops prior statements", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.Mode = reconnect.ModeForce })
		guard := &TransactionGuard{}
		guard.Begin()
		guard.Record()
		guard.Record()

		call := h.call(failing(1, errGoneAway))
		call.Guard = guard
		got, err := Execute(context.Background(), h.executor, call)

		require.NoError(t, err)
		assert.Equal(t, 1000, got)
		assert.True(t, guard.Open())
		assert.Equal(t, 0, guard.Executed())
		assert.True(t, h.logger.Contains(logging.LevelWarn, "2 uncommitted statement(s) were discarded"))
	})
}

func TestExecute_AfterReconnectFailureIsConnectionPhase(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 2 })
	restoreErr := errors.New("begin failed")

	call := h.call(failing(1, errGoneAway))
	call.AfterReconnect = func(ctx context.Context) error { return restoreErr }
	_, err := Execute(context.Background(), h.executor, call)

	assert.True(t, errors.Is(err, reconnect.ErrDatabaseConnection))
	assert.True(t, errors.Is(err, restoreErr))
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.executor.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}
	op := failing(3, errGoneAway)

	_, err := Execute(ctx, h.executor, h.call(op))

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errGoneAway)
	assert.Equal(t, 1, op.calls)
	assert.Zero(t, h.driver.reconnects)

	warnings := h.logger.Warnings()
	require.Len(t, warnings, 2)
	assert.True(t, strings.HasPrefix(warnings[1], "Query retry cancelled. (cause: MySQL server has gone away"))
}

func TestExecute_UsesOneSnapshotPerOperation(t *testing.T) {
	h := newHarness(t, nil)
	op := &scriptedOp{result: 7}
	op.errs = []error{errGoneAway, errGoneAway}

	run := op.run
	call := h.call(op)
	call.Run = func(ctx context.Context) (int, error) {
		if op.calls == 0 {
			require.NoError(t, h.policy.SetEnabled(false))
		}
		return run(ctx)
	}

	got, err := Execute(context.Background(), h.executor, call)

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.False(t, h.policy.Snapshot().Enabled())
}

func TestExecute_CustomClassification(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.policy.AddClassification("zapzapzap", Substring("ZapZapZap")))
	op := failing(1, errors.New("ZapZapZap"))

	_, err := Execute(context.Background(), h.executor, h.call(op))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h.logger.Warnings()[0], `Retryable error "zapzapzap". Trying to reconnect in 0.5 seconds.`))
}

func TestExecute_WithOnRetry(t *testing.T) {
	h := newHarness(t, nil)
	var seen []Attempt
	executor := h.executor.WithOnRetry(func(ec *ExecutionContext, a Attempt) {
		assert.Equal(t, employeesQuery, ec.Statement)
		seen = append(seen, a)
	})
	assert.Nil(t, h.executor.onRetry, "receiver must be unchanged")

	_, err := Execute(context.Background(), executor, h.call(failing(2, errGoneAway)))

	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].Index)
	assert.Equal(t, 500*time.Millisecond, seen[0].Wait)
	assert.Equal(t, 2, seen[1].Index)
	assert.Equal(t, PhaseStatement, seen[1].Phase)
	assert.Equal(t, reconnect.ClassConnectionLost, seen[1].Classification.Class)
}

func TestExecute_WithMockDriver(t *testing.T) {
	ctrl := gomock.NewController(t)
	driver := mocks.NewMockDriver(ctrl)

	driver.EXPECT().CurrentTarget().Return(employeesTarget).AnyTimes()
	driver.EXPECT().InTransaction().Return(false).AnyTimes()
	gomock.InOrder(
		driver.EXPECT().Reconnect(gomock.Any()).Return(errRefused),
		driver.EXPECT().Reconnect(gomock.Any()).Return(nil),
	)

	h := newHarness(t, nil)
	op := failing(1, errGoneAway)
	got, err := Execute(context.Background(), h.executor, Call[int]{
		Driver:    driver,
		Statement: employeesQuery,
		Run:       op.run,
	})

	require.NoError(t, err)
	assert.Equal(t, 1000, got)
	assert.Equal(t, seconds(0.5, 1.0), h.waits)
}

func TestNewExecutor_PanicsOnNil(t *testing.T) {
	p := newTestPolicy(t, nil)
	logger := logging.NewNullLogger()

	assert.Panics(t, func() { NewExecutor(nil, NewLinearBackoff(), logger) })
	assert.Panics(t, func() { NewExecutor(p, nil, logger) })
	assert.Panics(t, func() { NewExecutor(p, NewLinearBackoff(), nil) })
}

func TestTruncateStatement(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM dual", truncateStatement("SELECT 1\n\tFROM   dual"))

	long := "SELECT " + strings.Repeat("x", 300)
	got := truncateStatement(long)
	assert.Len(t, got, reconnect.MaxStatementPreviewLength+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0.5", formatSeconds(500*time.Millisecond))
	assert.Equal(t, "1.0", formatSeconds(time.Second))
	assert.Equal(t, "4.5", formatSeconds(4500*time.Millisecond))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "WaitingBackoff", StateWaitingBackoff.String())
	assert.Equal(t, "connection", PhaseConnection.String())
}
