package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// Options configures a ConsoleLogger.
type Options struct {
	// Verbose enables Verbose() output (debug level).
	Verbose bool

	// Output receives the human-readable stream. Defaults to os.Stderr.
	Output io.Writer

	// NoColor disables ANSI colours in Output.
	NoColor bool

	// LogFile, when set, additionally receives every record as JSON.
	LogFile string
}

// ConsoleLogger writes log messages to stderr through slog.
// Safe for concurrent use by multiple goroutines.
type ConsoleLogger struct {
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewConsoleLogger creates a ConsoleLogger writing to stderr.
// If verbose is true, Verbose() calls will produce output.
// If verbose is false, Verbose() calls are no-ops.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	l, _ := New(Options{Verbose: verbose})
	return l
}

// New creates a ConsoleLogger from opts. It fails only when LogFile cannot be opened.
func New(opts Options) (*ConsoleLogger, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler = tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	})

	l := &ConsoleLogger{}
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.LogFile, err)
		}
		l.file = f
		handler = slogmulti.Fanout(
			handler,
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	l.logger = slog.New(handler)
	return l, nil
}

// Slog exposes the underlying structured logger.
func (l *ConsoleLogger) Slog() *slog.Logger {
	return l.logger
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	l.logger.Debug(sprintf(format, args...))
}

// Info logs informational messages about normal operations.
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.logger.Info(sprintf(format, args...))
}

// Warn logs retry attempts and recoverable failures.
func (l *ConsoleLogger) Warn(format string, args ...interface{}) {
	l.logger.Warn(sprintf(format, args...))
}

// Error logs error messages.
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.logger.Error(sprintf(format, args...))
}

// Close releases the log file, if any.
func (l *ConsoleLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
