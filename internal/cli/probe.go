package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vvka-141/reconnect/internal/db"
	"github.com/vvka-141/reconnect/internal/retry"
	"github.com/vvka-141/reconnect/internal/tui"
	"github.com/vvka-141/reconnect/pkg/reconnect"
)

type probeFlags struct {
	workers  int
	rate     float64
	duration time.Duration
	query    string
}

var probeOpts probeFlags

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run a query continuously on concurrent sessions",
	Long: `Opens one session per worker and runs the probe query on each of them until
interrupted or until --duration elapses, then prints per-worker counts of
successful statements, failed statements and retries.

Run it while restarting or failing over the database to see how the retry
policy behaves. Sending SIGHUP reloads the retry section of the configuration
file; running statements keep the policy they started with.

Examples:
  reconnect probe --workers 8 --rate 50 --duration 2m
  reconnect probe --mode force --query "UPDATE counters SET n = n + 1"`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().IntVar(&probeOpts.workers, "workers", 4, "Number of concurrent sessions")
	probeCmd.Flags().Float64Var(&probeOpts.rate, "rate", 10, "Statements per second across all workers (0 = unlimited)")
	probeCmd.Flags().DurationVar(&probeOpts.duration, "duration", 0, "Stop after this long (0 = until interrupted)")
	probeCmd.Flags().StringVar(&probeOpts.query, "query", "SELECT 1", "Statement each worker runs")
	rootCmd.AddCommand(probeCmd)
}

// workerStats is updated by one worker and read by the dashboard.
type workerStats struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	retries   atomic.Int64

	mu      sync.Mutex
	target  string
	lastErr string
}

func (s *workerStats) recordError(err error) {
	s.failed.Add(1)
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *workerStats) row(worker int) tui.WorkerRow {
	s.mu.Lock()
	target, lastErr := s.target, s.lastErr
	s.mu.Unlock()
	return tui.WorkerRow{
		Worker:    worker,
		Target:    target,
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Retries:   s.retries.Load(),
		LastError: lastErr,
	}
}

func collectRows(stats []*workerStats) []tui.WorkerRow {
	rows := make([]tui.WorkerRow, len(stats))
	for i, s := range stats {
		rows[i] = s.row(i + 1)
	}
	return rows
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeOpts.workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d: %w", probeOpts.workers, reconnect.ErrInvalidConfig)
	}
	if probeOpts.rate < 0 {
		return fmt.Errorf("--rate must not be negative: %w", reconnect.ErrInvalidConfig)
	}

	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if probeOpts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeOpts.duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go reloadOnHangup(ctx, env)

	limit := rate.Inf
	if probeOpts.rate > 0 {
		limit = rate.Limit(probeOpts.rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	stats := make([]*workerStats, probeOpts.workers)
	for i := range stats {
		stats[i] = &workerStats{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range stats {
		s := stats[i]
		g.Go(func() error {
			return runProbeWorker(gctx, env, limiter, probeOpts.query, s)
		})
	}

	if tui.IsInteractive() && !rootFlags.noColor {
		g.Go(func() error {
			return tui.RunProbeDashboard(gctx, cmd.ErrOrStderr(), func() []tui.WorkerRow {
				return collectRows(stats)
			}, cancel)
		})
	}

	err = g.Wait()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tui.RenderTable(tui.ProbeHeaders, tui.ProbeRows(collectRows(stats)), tui.IsStyled(out) && !rootFlags.noColor))
	return err
}

// runProbeWorker runs query on its own session until ctx is done.
// Statement failures are counted; only a failed initial connection ends the probe.
func runProbeWorker(ctx context.Context, env *runtimeEnv, limiter *rate.Limiter, query string, stats *workerStats) error {
	session, err := env.open(ctx, db.WithOnRetry(func(*retry.ExecutionContext, retry.Attempt) {
		stats.retries.Add(1)
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer session.Close()
	stats.mu.Lock()
	stats.target = session.Target().Address()
	stats.mu.Unlock()

	read := retry.IsReadStatement(query)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		if read {
			_, err = session.Query(ctx, query)
		} else {
			_, err = session.Exec(ctx, query)
		}

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			stats.recordError(err)
			env.logger.Verbose("probe statement failed: %v", err)
			continue
		}
		stats.succeeded.Add(1)
	}
}

// reloadOnHangup reloads the retry configuration on SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, env *runtimeEnv) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := env.reload(); err != nil {
				env.logger.Error("Reload failed, keeping the current retry configuration: %v", err)
			}
		}
	}
}
