package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// 引き換え結果（result=success/失敗理由）
	RedemptionCount metric.Int64Counter

	// 生成されたコード数
	CodesGenerated metric.Int64Counter

	// 不正検知シグナル数
	FraudSignalCount metric.Int64Counter

	// レート制限により拒否された件数
	RateLimitedCount metric.Int64Counter

	// グループパック参加結果
	PackJoinCount metric.Int64Counter

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter 指定したメーターからMetricsを作成
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	redemptionCount, err := meter.Int64Counter(
		"redemptions_total",
		metric.WithDescription("Total number of code redemption attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	codesGenerated, err := meter.Int64Counter(
		"codes_generated_total",
		metric.WithDescription("Total number of unlock codes generated"),
	)
	if err != nil {
		return nil, err
	}

	fraudSignalCount, err := meter.Int64Counter(
		"fraud_signals_total",
		metric.WithDescription("Total number of fraud signals raised"),
	)
	if err != nil {
		return nil, err
	}

	rateLimitedCount, err := meter.Int64Counter(
		"rate_limited_total",
		metric.WithDescription("Total number of requests denied by rate limiting"),
	)
	if err != nil {
		return nil, err
	}

	packJoinCount, err := meter.Int64Counter(
		"pack_joins_total",
		metric.WithDescription("Total number of group pack join attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, err
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RedemptionCount:  redemptionCount,
		CodesGenerated:   codesGenerated,
		FraudSignalCount: fraudSignalCount,
		RateLimitedCount: rateLimitedCount,
		PackJoinCount:    packJoinCount,
		RequestCount:     requestCount,
		ResponseTime:     responseTime,
		ErrorCount:       errorCount,
	}, nil
}

// RecordRedemption 引き換え結果を記録
func (m *Metrics) RecordRedemption(ctx context.Context, result string) {
	m.RedemptionCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordCodesGenerated 生成コード数を記録
func (m *Metrics) RecordCodesGenerated(ctx context.Context, releaseID string, n int) {
	m.CodesGenerated.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("release_id", releaseID)),
	)
}

// RecordFraudSignal 不正検知シグナルを記録
func (m *Metrics) RecordFraudSignal(ctx context.Context, reason string) {
	m.FraudSignalCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordRateLimited レート制限による拒否を記録
func (m *Metrics) RecordRateLimited(ctx context.Context, action string) {
	m.RateLimitedCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", action)),
	)
}

// RecordPackJoin パック参加結果を記録
func (m *Metrics) RecordPackJoin(ctx context.Context, result string) {
	m.PackJoinCount.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
