package otel

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Logger 構造化ロガー
type Logger struct {
	tracer  trace.Tracer
	service string
	out     *log.Logger
	now     func() time.Time
}

// LoggerOption Loggerのオプション
type LoggerOption func(*Logger)

// WithServiceName 出力に含めるサービス名を設定
func WithServiceName(name string) LoggerOption {
	return func(l *Logger) {
		l.service = name
	}
}

// WithOutput 出力先を設定
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.out = log.New(w, "", 0)
	}
}

// NewLogger 新しいLoggerを作成
func NewLogger(tracer trace.Tracer, opts ...LoggerOption) *Logger {
	l := &Logger{
		tracer: tracer,
		out:    log.New(os.Stdout, "", 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewNopLogger 何も出力しないLoggerを作成（テスト用）
func NewNopLogger() *Logger {
	return NewLogger(nil, WithOutput(io.Discard))
}

// LogLevel ログレベル
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry ログエントリ
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Service   string                 `json:"service,omitempty"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Log ログを出力
func (l *Logger) Log(ctx context.Context, level LogLevel, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Level:     string(level),
		Service:   l.service,
		Message:   message,
		Fields:    fields,
	}

	// トレースIDとSpanIDを取得
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		entry.TraceID = span.SpanContext().TraceID().String()
		entry.SpanID = span.SpanContext().SpanID().String()
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		l.out.Printf("failed to marshal log entry: %v", err)
		return
	}

	l.out.Println(string(jsonData))
}

// Debug Debugレベルのログを出力
func (l *Logger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.Log(ctx, LogLevelDebug, message, fields)
}

// Info Infoレベルのログを出力
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.Log(ctx, LogLevelInfo, message, fields)
}

// Warn Warnレベルのログを出力
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.Log(ctx, LogLevelWarn, message, fields)
}

// Error Errorレベルのログを出力
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Log(ctx, LogLevelError, message, fields)
}
