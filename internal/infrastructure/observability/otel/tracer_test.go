package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unlock-server/internal/infrastructure/config"
)

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.OpenTelemetryConfig
		wantError bool
	}{
		{
			name:      "正常系: 無効",
			cfg:       config.OpenTelemetryConfig{Enabled: false},
			wantError: false,
		},
		{
			name: "正常系: エクスポートなし",
			cfg: config.OpenTelemetryConfig{
				Enabled:        true,
				TraceExporter:  "none",
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
			wantError: false,
		},
		{
			name: "正常系: OTLP（エクスポーターの作成は接続を伴わない）",
			cfg: config.OpenTelemetryConfig{
				Enabled:        true,
				TraceExporter:  "otlp",
				OTLPEndpoint:   "http://localhost:4318",
				OTLPInsecure:   true,
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
			wantError: false,
		},
		{
			name: "異常系: 未対応のエクスポーター",
			cfg: config.OpenTelemetryConfig{
				Enabled:       true,
				TraceExporter: "unsupported",
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := InitTracer(&tt.cfg)
			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, shutdown)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, shutdown)
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = shutdown(ctx)
		})
	}
}

func TestTracer_StartSpan(t *testing.T) {
	tracer := Tracer("test-tracer")
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test-operation")
	assert.NotNil(t, span)
	span.End()
}
