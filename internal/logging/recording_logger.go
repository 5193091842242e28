package logging

import (
	"strings"
	"sync"
)

// Level identifies which Logger method produced a record.
type Level string

const (
	LevelVerbose Level = "verbose"
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Record is one captured log line.
type Record struct {
	Level   Level
	Message string
}

// RecordingLogger keeps every message in memory.
type RecordingLogger struct {
	mu      sync.Mutex
	records []Record
}

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) Verbose(format string, args ...interface{}) {
	l.add(LevelVerbose, format, args...)
}

func (l *RecordingLogger) Info(format string, args ...interface{}) {
	l.add(LevelInfo, format, args...)
}

func (l *RecordingLogger) Warn(format string, args ...interface{}) {
	l.add(LevelWarn, format, args...)
}

func (l *RecordingLogger) Error(format string, args ...interface{}) {
	l.add(LevelError, format, args...)
}

func (l *RecordingLogger) add(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, Record{Level: level, Message: sprintf(format, args...)})
}

// Records returns a copy of everything logged so far.
func (l *RecordingLogger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// Messages returns the messages logged at level, in order.
func (l *RecordingLogger) Messages(level Level) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, r := range l.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

// Warnings is shorthand for Messages(LevelWarn).
func (l *RecordingLogger) Warnings() []string {
	return l.Messages(LevelWarn)
}

// Contains reports whether any message at level contains substr.
func (l *RecordingLogger) Contains(level Level, substr string) bool {
	for _, m := range l.Messages(level) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// Reset discards the captured records.
func (l *RecordingLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
