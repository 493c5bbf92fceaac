// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/stocksense/stocksense/pkg/errutil"
)

func setup(t *testing.T, opts Options) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := Setup(opts, &buf)
	require.NoError(t, err)
	return logger, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	logger, buf := setup(t, Options{Service: "stocksense", Version: "1.0.0", Format: "json"})

	logger.Info("test message")

	entry := decode(t, buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "stocksense", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	logger, buf := setup(t, Options{Service: "stocksense", Format: "text"})

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=stocksense")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	logger, buf := setup(t, Options{})
	logger.Info("test message")
	decode(t, buf)
}

func TestSetup_Level(t *testing.T) {
	logger, buf := setup(t, Options{Level: "warn"})

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Equal(t, "shown", decode(t, buf)["msg"])
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, err := Setup(Options{Level: "chatty"}, nil)
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetup_RedactsSecrets(t *testing.T) {
	logger, buf := setup(t, Options{})

	logger.Info("attempt", "password", "hunter22", "Token", "abc123", "company_id", "acme-1")

	entry := decode(t, buf)
	assert.Equal(t, redacted, entry["password"])
	assert.Equal(t, redacted, entry["Token"])
	assert.Equal(t, "acme-1", entry["company_id"])
	assert.NotContains(t, buf.String(), "hunter22")
}

func TestHandler_TraceContext(t *testing.T) {
	logger, buf := setup(t, Options{Service: "stocksense"})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	logger, buf := setup(t, Options{})

	logger.Info("no trace message")

	entry := decode(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	logger, buf := setup(t, Options{Service: "stocksense"})

	logger.With("component", "janitor").WithGroup("sweep").Info("done", "count", 3)

	entry := decode(t, buf)
	assert.Equal(t, "janitor", entry["component"])
	assert.Equal(t, map[string]any{"count": float64(3), "service": "stocksense", "version": ""}, entry["sweep"])
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	logger, err := SetDefault(Options{Service: "stocksense", Version: "2.0.0"}, &buf)
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())

	slog.Info("installed")
	assert.Contains(t, buf.String(), `"msg":"installed"`)
}

func TestSetDefault_InvalidLevelKeepsDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	_, err := SetDefault(Options{Level: "loud"}, io.Discard)
	require.Error(t, err)
	assert.Same(t, original, slog.Default())
}
