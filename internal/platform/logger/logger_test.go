package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/kaushalacts/research-ai-platform/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	tests := []struct {
		name        string
		level       string
		debugLogged bool
		infoLogged  bool
	}{
		{name: "debug", level: "debug", debugLogged: true, infoLogged: true},
		{name: "info", level: "info", debugLogged: false, infoLogged: true},
		{name: "uppercase warn", level: "WARN", debugLogged: false, infoLogged: false},
		{name: "unknown falls back to info", level: "verbose", debugLogged: false, infoLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := SetupWithWriter(config.ServerConfig{LogLevel: tt.level}, &buf)
			require.NoError(t, err)
			require.NotNil(t, l)

			l.Debug("debug message")
			assert.Equal(t, tt.debugLogged, bytes.Contains(buf.Bytes(), []byte("debug message")))

			buf.Reset()
			l.Info("info message")
			assert.Equal(t, tt.infoLogged, bytes.Contains(buf.Bytes(), []byte("info message")))
		})
	}
}

func TestSetupEmitsJSON(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var buf bytes.Buffer
	_, err := SetupWithWriter(config.ServerConfig{LogLevel: "info"}, &buf)
	require.NoError(t, err)

	slog.Info("via default", "task_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "via default", entry["msg"])
	assert.Equal(t, "abc", entry["task_id"])
}

func TestContextLogger(t *testing.T) {
	l, buf := NewBufferLogger()
	ctx := WithContext(context.Background(), l.With("trace_id", "t-1"))

	FromContext(ctx).Info("scoped")
	entries := buf.Find("scoped")
	require.Len(t, entries, 1)
	assert.Equal(t, "t-1", entries[0]["trace_id"])

	fallback, _ := NewBufferLogger()
	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
