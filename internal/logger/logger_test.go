package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and restores it on cleanup.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput, originalColor := output, useColor
	output, useColor = buf, false
	mu.Unlock()
	reconfigure()

	t.Cleanup(func() {
		mu.Lock()
		output, useColor = originalOutput, originalColor
		mu.Unlock()
		currentLevel.Store(int32(LevelInfo))
		currentFormat.Store("text")
		reconfigure()
	})
	return buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry), buf.String())
	return entry
}

// ============================================================================
// Level Filtering Tests
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	cases := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"DEBUG", []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{"INFO", []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{"WARN", []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{"ERROR", []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tc.level)

			Debug("debug msg")
			Info("info msg")
			Warn("warn msg")
			Error("error msg")

			out := buf.String()
			for _, s := range tc.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tc.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Run("CaseInsensitive", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("debug")
		Debug("lower")
		assert.Contains(t, buf.String(), "lower")
		assert.Equal(t, LevelDebug, GetLevel())
	})

	t.Run("InvalidIgnored", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetLevel("LOUD")
		Debug("hidden")
		Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, l)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)

	assert.Equal(t, "UNKNOWN", Level(99).String())
}

// ============================================================================
// Text Handler Tests
// ============================================================================

func TestTextFormat(t *testing.T) {
	t.Run("TimestampLevelAndFields", func(t *testing.T) {
		buf := captureOutput(t)
		Info("tick processed", KeyTick, 42, KeySource, "expert")

		out := buf.String()
		assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[INFO\] tick processed`, out)
		assert.Contains(t, out, "tick=42")
		assert.Contains(t, out, "source=expert")
	})

	t.Run("QuotesValuesWithSpaces", func(t *testing.T) {
		buf := captureOutput(t)
		Warn("predict failed", KeyError, "model not trained")
		assert.Contains(t, buf.String(), `error="model not trained"`)
	})

	t.Run("GroupsArePrefixed", func(t *testing.T) {
		buf := captureOutput(t)
		With("session_id", "s1").WithGroup("fit").Info("done", "samples", 10)

		out := buf.String()
		assert.Contains(t, out, "session_id=s1")
		assert.Contains(t, out, "fit.samples=10")
	})

	t.Run("FloatsUseThreeDecimals", func(t *testing.T) {
		buf := captureOutput(t)
		Info("mixer", KeyProbability, 0.60653)
		assert.Contains(t, buf.String(), "probability=0.607")
	})

	t.Run("ColorWrapsLevel", func(t *testing.T) {
		var buf bytes.Buffer
		l := slog.New(NewColorTextHandler(&buf, nil, true))
		l.Error("boom")
		assert.Contains(t, buf.String(), colorRed+"ERROR"+colorReset)
	})
}

// ============================================================================
// JSON Format Tests
// ============================================================================

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("json")

	Info("retrain finished", KeyIteration, 3, KeyModel, "linear")

	entry := decodeLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "retrain finished", entry["msg"])
	assert.Equal(t, float64(3), entry[KeyIteration])
	assert.Equal(t, "linear", entry[KeyModel])
	assert.Contains(t, entry, "time")
}

func TestInvalidFormatIgnored(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("xml")
	Info("still text")
	assert.Contains(t, buf.String(), "[INFO]")
}

// ============================================================================
// Context Logging Tests
// ============================================================================

func TestContextLogging(t *testing.T) {
	t.Run("LogContextInjectsFields", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("json")

		lc := NewLogContext("sess-1", "dagger").WithTick(200, 1).WithTrace("abc", "def")
		InfoCtx(WithContext(context.Background(), lc), "retrain", "extra", "v")

		entry := decodeLine(t, buf)
		assert.Equal(t, "sess-1", entry[KeySessionID])
		assert.Equal(t, "dagger", entry[KeyMode])
		assert.Equal(t, float64(200), entry[KeyTick])
		assert.Equal(t, float64(1), entry[KeyIteration])
		assert.Equal(t, "abc", entry[KeyTraceID])
		assert.Equal(t, "def", entry[KeySpanID])
		assert.Equal(t, "v", entry["extra"])
	})

	t.Run("TickOmittedUntilStamped", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("json")

		InfoCtx(WithContext(context.Background(), NewLogContext("sess-2", "plain")), "handshake")

		entry := decodeLine(t, buf)
		assert.NotContains(t, entry, KeyTick)
		assert.Equal(t, "plain", entry[KeyMode])
	})

	t.Run("NilContextHandled", func(t *testing.T) {
		buf := captureOutput(t)
		require.NotPanics(t, func() {
			//nolint:staticcheck // exercising nil ctx on purpose
			WarnCtx(nil, "no ctx")
		})
		assert.Contains(t, buf.String(), "no ctx")
	})

	t.Run("WithTickDoesNotMutateParent", func(t *testing.T) {
		parent := NewLogContext("sess-3", "dagger")
		child := parent.WithTick(5, 0)
		assert.False(t, parent.HasTick)
		assert.True(t, child.HasTick)
		assert.Nil(t, (*LogContext)(nil).WithTick(1, 1))
	})
}

func TestErrAttr(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Err(nil))
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
}

// ============================================================================
// Init Tests
// ============================================================================

func TestInitWritesToFile(t *testing.T) {
	captureOutput(t)
	path := filepath.Join(t.TempDir(), "pilot.log")

	require.NoError(t, Init(Config{Level: "DEBUG", Format: "text", Output: path}))
	Debug("to file")
	t.Cleanup(func() {
		mu.Lock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
		mu.Unlock()
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	captureOutput(t)
	assert.Error(t, Init(Config{Level: "chatty"}))
}

func TestConcurrentLogging(t *testing.T) {
	InitWithWriter(io.Discard, "DEBUG", "text", false)
	t.Cleanup(func() {
		InitWithWriter(os.Stdout, "INFO", "text", false)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if j%2 == 0 {
					SetLevel("DEBUG")
				} else {
					SetLevel("ERROR")
				}
			}
		}()
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Debug("d", "id", id)
				Info("i", "id", id)
				Error("e", "id", id)
			}
		}(i)
	}
	require.NotPanics(t, wg.Wait)
}
