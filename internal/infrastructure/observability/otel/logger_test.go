package otel

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func newCapturingLogger(buf *bytes.Buffer) *Logger {
	l := NewLogger(noop.NewTracerProvider().Tracer("test"), WithOutput(buf), WithServiceName("unlock-server"))
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		log       func(l *Logger, ctx context.Context)
		wantLevel string
	}{
		{
			name:      "Debugレベルのログ",
			log:       func(l *Logger, ctx context.Context) { l.Debug(ctx, "msg", nil) },
			wantLevel: "DEBUG",
		},
		{
			name:      "Infoレベルのログ",
			log:       func(l *Logger, ctx context.Context) { l.Info(ctx, "msg", nil) },
			wantLevel: "INFO",
		},
		{
			name:      "Warnレベルのログ",
			log:       func(l *Logger, ctx context.Context) { l.Warn(ctx, "msg", nil) },
			wantLevel: "WARN",
		},
		{
			name:      "Errorレベルのログ",
			log:       func(l *Logger, ctx context.Context) { l.Error(ctx, "msg", nil, nil) },
			wantLevel: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(newCapturingLogger(&buf), context.Background())

			entry := decodeEntry(t, &buf)
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, "msg", entry.Message)
			assert.Equal(t, "unlock-server", entry.Service)
			assert.Equal(t, "2026-01-02T03:04:05Z", entry.Timestamp)
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturingLogger(&buf)

	logger.Info(context.Background(), "code redeemed", map[string]interface{}{
		"code_id": "code-1",
		"count":   3,
	})

	out := buf.String()
	assert.Contains(t, out, `"code_id":"code-1"`)
	assert.Contains(t, out, `"count":3`)
	assert.Empty(t, decodeEntry(t, &buf).TraceID)
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		fields    map[string]interface{}
		wantError bool
	}{
		{
			name:      "正常系: エラーあり、フィールドなし",
			err:       assert.AnError,
			fields:    nil,
			wantError: true,
		},
		{
			name:      "正常系: エラーあり、フィールドあり",
			err:       assert.AnError,
			fields:    map[string]interface{}{"key": "value"},
			wantError: true,
		},
		{
			name:      "正常系: エラーなし",
			err:       nil,
			fields:    map[string]interface{}{"key": "value"},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newCapturingLogger(&buf).Error(context.Background(), "failed", tt.err, tt.fields)

			entry := decodeEntry(t, &buf)
			_, ok := entry.Fields["error"]
			assert.Equal(t, tt.wantError, ok)
		})
	}
}

func TestLogger_TraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	logger := NewLogger(tp.Tracer("test"), WithOutput(&buf))

	ctx, span := tp.Tracer("test").Start(context.Background(), "test-span")
	logger.Info(ctx, "inside span", nil)
	span.End()

	entry := decodeEntry(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry.TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), entry.SpanID)
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotNil(t, logger)
	// 出力先がないためパニックしないことだけを確認
	logger.Info(context.Background(), "discarded", nil)
}

func TestLogger_OneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturingLogger(&buf)

	logger.Info(context.Background(), "first", nil)
	logger.Warn(context.Background(), "second", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}
