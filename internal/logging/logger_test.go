package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/troubleshootd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syncBuffer is a goroutine-safe zapcore.WriteSyncer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func newBufferedLogger(t *testing.T, mutate func(*Config)) (*Logger, *syncBuffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	buf := &syncBuffer{}
	logger, err := NewLogger(cfg, nil, WithStdout(buf))
	require.NoError(t, err)
	return logger, buf
}

func TestNewLogger(t *testing.T) {
	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Format = "xml"
		_, err := NewLogger(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("otel only without provider has no output", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Output = OutputConfig{OTEL: true}
		_, err := NewLogger(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("writes json with constant fields", func(t *testing.T) {
		logger, buf := newBufferedLogger(t, nil)
		logger.Info(context.Background(), "started", zap.Int("port", 9191))

		lines := buf.lines(t)
		require.Len(t, lines, 1)
		assert.Equal(t, "started", lines[0]["msg"])
		assert.Equal(t, "troubleshootd", lines[0]["service"])
		assert.EqualValues(t, 9191, lines[0]["port"])
		assert.Contains(t, lines[0]["caller"], "logger_test.go")
	})

	t.Run("respects level", func(t *testing.T) {
		logger, buf := newBufferedLogger(t, func(c *Config) { c.Level = zapcore.WarnLevel })
		logger.Info(context.Background(), "hidden")
		logger.Warn(context.Background(), "shown")

		lines := buf.lines(t)
		require.Len(t, lines, 1)
		assert.Equal(t, "shown", lines[0]["msg"])
	})

	t.Run("trace level is named", func(t *testing.T) {
		logger, buf := newBufferedLogger(t, func(c *Config) { c.Level = TraceLevel })
		logger.Trace(context.Background(), "deep")

		lines := buf.lines(t)
		require.Len(t, lines, 1)
		assert.Equal(t, "trace", lines[0]["level"])
	})
}

func TestLogger_Redaction(t *testing.T) {
	logger, buf := newBufferedLogger(t, nil)
	ctx := context.Background()

	logger.Info(ctx, "captured error",
		zap.String("message", "401 from jira: Authorization: Bearer abc.def.ghi rejected"),
		zap.String("token", "plain-value"),
		zap.Error(errors.New("postman call failed api_key=PMAK-123456")),
	)
	logger.With(zap.String("query", "password=hunter2&user=bob")).Info(ctx, "with fields")
	logger.Info(ctx, "raw token=abcdef in message")

	lines := buf.lines(t)
	require.Len(t, lines, 3)

	first := lines[0]
	assert.NotContains(t, first["message"], "abc.def.ghi")
	assert.Contains(t, first["message"], "401 from jira")
	assert.Equal(t, "[REDACTED]", first["token"])
	assert.NotContains(t, first["error"], "PMAK-123456")
	assert.Contains(t, first["error"], "postman call failed")

	assert.NotContains(t, lines[1]["query"], "hunter2")
	assert.NotContains(t, lines[2]["msg"], "abcdef")
}

func TestRedactionDisabled(t *testing.T) {
	logger, buf := newBufferedLogger(t, func(c *Config) { c.Redaction.Enabled = false })
	logger.Info(context.Background(), "raw", zap.String("token", "visible"))

	lines := buf.lines(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["token"])
}

func TestSecretFields(t *testing.T) {
	f := Secret("otlp_token", config.Secret("abcd1234"))
	assert.Equal(t, "[REDACTED:8]", f.String)

	f = RedactedString("api_key", "xyz")
	assert.Equal(t, "[REDACTED:3]", f.String)
}

func TestSampling_NeverDropsErrors(t *testing.T) {
	logger, buf := newBufferedLogger(t, func(c *Config) {
		c.Sampling.Enabled = true
		c.Sampling.Initial = 1
		c.Sampling.Thereafter = 0
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		logger.Info(ctx, "repeated info")
		logger.Error(ctx, "repeated error")
	}

	var infos, errs int
	for _, l := range buf.lines(t) {
		switch l["msg"] {
		case "repeated info":
			infos++
		case "repeated error":
			errs++
		}
	}
	assert.Equal(t, 1, infos)
	assert.Equal(t, 5, errs)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithErrorID(ctx, "err_42")
	ctx = WithActorID(ctx, "qa@example.com")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range ContextFields(ctx) {
		f.AddTo(enc)
	}
	assert.Equal(t, "req-1", enc.Fields["request.id"])
	assert.Equal(t, "err_42", enc.Fields["error.id"])
	assert.Equal(t, "qa@example.com", enc.Fields["actor.id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", enc.Fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", enc.Fields["span_id"])
}

func TestContextIDs_DropInvalid(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "")))
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "bad id\nwith newline")))
	assert.Empty(t, ErrorIDFromContext(WithErrorID(ctx, strings.Repeat("a", maxIDLen+1))))
	assert.Equal(t, "ok_1", ActorIDFromContext(WithActorID(ctx, "ok_1")))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Info(WithErrorID(ctx, "err_7"), "diagnosing")

	tl.AssertLogged(t, zapcore.InfoLevel, "diagnosing")
	tl.AssertField(t, "diagnosing", "error.id", "err_7")
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"trace":  TraceLevel,
		"DEBUG":  zapcore.DebugLevel,
		" info ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := LevelFromString("loud")
	assert.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "debug", Format: "console", Sampling: true})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Sampling.Enabled)

	_, err = FromSettings(config.LoggingConfig{Level: "shouty"})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Redaction.Patterns = []string{"(unclosed"}
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Fields = map[string]string{"service": ""}
	assert.Error(t, cfg.Validate())
}
