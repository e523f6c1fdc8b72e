package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		expectLog bool
	}{
		{
			name:      "logs when NETWATCH_DEBUG is set",
			envValue:  "1",
			expectLog: true,
		},
		{
			name:      "does not log when NETWATCH_DEBUG is empty",
			envValue:  "",
			expectLog: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log.SetOutput(&buf)
			defer log.SetOutput(os.Stderr)

			t.Setenv(DebugEnv, tt.envValue)

			l := NewEnvLogger("[test]")
			l.Debug("test message %s", "arg")

			if tt.expectLog {
				assert.Contains(t, buf.String(), "[test] test message arg")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestEnvLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	l := NewEnvLogger("[sync]")
	l.Info("info %d", 1)
	l.Warn("warn %d", 2)
	l.Error("error %d", 3)

	out := buf.String()
	assert.Contains(t, out, "[sync] info 1")
	assert.Contains(t, out, "[sync] WARN: warn 2")
	assert.Contains(t, out, "[sync] ERROR: error 3")
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("[push]", &buf)
	l.Info("connected to %s", "ws://localhost:5000/ws")

	assert.Contains(t, buf.String(), "[push] connected to ws://localhost:5000/ws")
}

func TestWithPrefix(t *testing.T) {
	buf := NewBufferLogger()
	l := WithPrefix(buf, "[api]")

	l.Warn("slow response %dms", 1200)

	msgs := buf.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "warn", msgs[0].Level)
	assert.Equal(t, "[api] slow response 1200ms", msgs[0].Message)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "netwatch.log")

	f, err := OpenFile(path)
	require.NoError(t, err)
	l := NewWriterLogger("", f)
	l.Info("hello")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNoop(t *testing.T) {
	l := Noop()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("debug %s", "msg")
	l.Error("boom")

	assert.True(t, l.HasLevel("debug"))
	assert.True(t, l.HasLevel("error"))
	assert.False(t, l.HasLevel("info"))
	assert.Equal(t, "debug msg", l.Messages()[0].Message)

	l.Clear()
	assert.Empty(t, l.Messages())
}

func TestDefaultLogger(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("through default")

	assert.True(t, buf.HasLevel("info"))
}
