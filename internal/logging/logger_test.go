package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/reconnect/pkg/reconnect"
)

var (
	_ reconnect.Logger = (*ConsoleLogger)(nil)
	_ reconnect.Logger = (*NullLogger)(nil)
	_ reconnect.Logger = (*RecordingLogger)(nil)
)

func newBufferedLogger(t *testing.T, verbose bool) (*ConsoleLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Options{Verbose: verbose, Output: &buf, NoColor: true})
	require.NoError(t, err)
	return l, &buf
}

func TestConsoleLogger_Verbose_WhenEnabled(t *testing.T) {
	logger, buf := newBufferedLogger(t, true)
	logger.Verbose("test message: %s", "value")

	assert.Contains(t, buf.String(), "DBG test message: value")
}

func TestConsoleLogger_Verbose_WhenDisabled(t *testing.T) {
	logger, buf := newBufferedLogger(t, false)
	logger.Verbose("test message: %s", "value")

	assert.Empty(t, buf.String())
}

func TestConsoleLogger_Levels(t *testing.T) {
	logger, buf := newBufferedLogger(t, false)

	logger.Info("connected to %s", "db")
	logger.Warn("Trying to reconnect in %s seconds.", "0.5")
	logger.Error("failed")

	out := buf.String()
	assert.Contains(t, out, "INF connected to db")
	assert.Contains(t, out, "WRN Trying to reconnect in 0.5 seconds.")
	assert.Contains(t, out, "ERR failed")
}

func TestConsoleLogger_NoArgsKeepsPercent(t *testing.T) {
	logger, buf := newBufferedLogger(t, false)
	logger.Info("100% done")

	assert.Contains(t, buf.String(), "100% done")
}

func TestConsoleLogger_LogFileReceivesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconnect.log")
	var console bytes.Buffer

	logger, err := New(Options{Output: &console, NoColor: true, LogFile: path})
	require.NoError(t, err)

	logger.Verbose("only in file")
	logger.Warn("retrying %d", 1)
	require.NoError(t, logger.Close())

	assert.NotContains(t, console.String(), "only in file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "retrying 1", rec["msg"])
}

func TestConsoleLogger_LogFileError(t *testing.T) {
	_, err := New(Options{LogFile: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestConsoleLogger_ConcurrentSafety(t *testing.T) {
	logger, buf := newBufferedLogger(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Info("goroutine %d message %d", id, j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, strings.Count(buf.String(), "\n"))
}

func TestNullLogger_DiscardsAllMessages(t *testing.T) {
	logger := NewNullLogger()
	logger.Verbose("v")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")
}

func TestRecordingLogger(t *testing.T) {
	logger := NewRecordingLogger()
	logger.Verbose("state %s", "Attempting")
	logger.Warn("first")
	logger.Info("info")
	logger.Warn("second %d", 2)

	assert.Equal(t, []string{"first", "second 2"}, logger.Warnings())
	assert.True(t, logger.Contains(LevelVerbose, "Attempting"))
	assert.False(t, logger.Contains(LevelError, "first"))
	assert.Len(t, logger.Records(), 4)

	logger.Reset()
	assert.Empty(t, logger.Records())
}

func BenchmarkConsoleLogger_VerboseDisabled(b *testing.B) {
	var buf bytes.Buffer
	logger, _ := New(Options{Output: &buf, NoColor: true})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Verbose("message %d", i)
	}
}

func ExampleRecordingLogger() {
	logger := NewRecordingLogger()
	logger.Warn("Query retry failed.")
	fmt.Println(logger.Warnings()[0])
	// Output: Query retry failed.
}
