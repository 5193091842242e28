// Package logging provides concrete implementations of the reconnect.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: slog with a tint handler on stderr, optionally fanned out to a JSON log file
//   - NullLogger: Discards all messages
//   - RecordingLogger: Keeps messages in memory for assertions in tests
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
