// Package audit は引き換え試行と不正シグナルの追記専用ログを扱う
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

// Attempt 試行ログに記録するリクエスト情報
type Attempt struct {
	CodeID            string
	SubmittedCode     string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// Logger 監査ログ
// 記録の失敗はリクエストの結果を変えず、ERRORログとして残す
type Logger struct {
	attempts security.AttemptLogRepository
	signals  security.FraudSignalRepository
	logger   *otelinfra.Logger
	metrics  *otelinfra.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewLogger 新しいLoggerを作成
func NewLogger(
	attempts security.AttemptLogRepository,
	signals security.FraudSignalRepository,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *Logger {
	return &Logger{
		attempts: attempts,
		signals:  signals,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("audit-logger"),
		now:      time.Now,
	}
}

// WithClock 時刻の取得元を差し替える
func (a *Logger) WithClock(now func() time.Time) *Logger {
	a.now = now
	return a
}

// RecordSuccess 成功した試行を記録
func (a *Logger) RecordSuccess(ctx context.Context, at Attempt) {
	a.record(ctx, at, true, "")
	a.metrics.RecordRedemption(ctx, "success")
}

// RecordFailure 失敗した試行を記録
func (a *Logger) RecordFailure(ctx context.Context, at Attempt, cause error) {
	reason := FailureReason(cause)
	a.record(ctx, at, false, reason)
	a.metrics.RecordRedemption(ctx, reason)
	if errors.Is(cause, security.ErrRateLimited) {
		a.metrics.RecordRateLimited(ctx, "redeem")
	}
}

func (a *Logger) record(ctx context.Context, at Attempt, success bool, reason string) {
	// リクエストのタイムアウト後も記録は残す
	ctx = context.WithoutCancel(ctx)
	ctx, span := a.tracer.Start(ctx, "AuditLogger.RecordAttempt")
	defer span.End()

	span.SetAttributes(
		attribute.String("code_id", at.CodeID),
		attribute.String("user_id", at.UserID),
		attribute.Bool("success", success),
	)

	attempt := &security.RedemptionAttempt{
		ID:                uuid.NewString(),
		CodeID:            at.CodeID,
		SubmittedCode:     at.SubmittedCode,
		UserID:            at.UserID,
		IPAddress:         at.IPAddress,
		UserAgent:         at.UserAgent,
		DeviceFingerprint: at.DeviceFingerprint,
		Success:           success,
		FailureReason:     reason,
		AttemptedAt:       a.now(),
	}
	fields := map[string]interface{}{
		"code_id":        at.CodeID,
		"user_id":        at.UserID,
		"ip_address":     at.IPAddress,
		"success":        success,
		"failure_reason": reason,
	}
	if err := a.attempts.Save(ctx, attempt); err != nil {
		span.RecordError(err)
		a.logger.Error(ctx, "Failed to save redemption attempt", err, fields)
		return
	}
	if success {
		a.logger.Info(ctx, "Redemption attempt recorded", fields)
	} else {
		a.logger.Warn(ctx, "Redemption attempt rejected", fields)
	}
}

// RecordSignals 審査で検出された不正シグナルを保存
func (a *Logger) RecordSignals(ctx context.Context, signals []*security.FraudSignal) {
	if len(signals) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	ctx, span := a.tracer.Start(ctx, "AuditLogger.RecordSignals")
	defer span.End()

	span.SetAttributes(attribute.Int("signals", len(signals)))

	for _, sig := range signals {
		fields := map[string]interface{}{
			"signal_id":  sig.ID(),
			"reason":     sig.Reason().String(),
			"code_id":    sig.CodeID(),
			"user_id":    sig.UserID(),
			"ip_address": sig.IPAddress(),
			"score":      sig.Score(),
		}
		if err := a.signals.Save(ctx, sig); err != nil {
			span.RecordError(err)
			a.logger.Error(ctx, "Failed to save fraud signal", err, fields)
			continue
		}
		a.metrics.RecordFraudSignal(ctx, sig.Reason().String())
		a.logger.Warn(ctx, "Fraud signal flagged", fields)
	}
}

// FailureReason エラーを試行ログの失敗理由に変換する
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, unlock_code.ErrMalformedCode):
		return "malformed_code"
	case errors.Is(err, unlock_code.ErrCodeNotFound):
		return "code_not_found"
	case errors.Is(err, unlock_code.ErrCodeAlreadyRedeemed):
		return "code_already_redeemed"
	case errors.Is(err, unlock_code.ErrCodeRevoked):
		return "code_revoked"
	case errors.Is(err, unlock_code.ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, security.ErrDeviceMismatch):
		return "device_mismatch"
	case errors.Is(err, security.ErrIPMismatch):
		return "ip_mismatch"
	case errors.Is(err, security.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, security.ErrFraudBlocked):
		return "fraud_blocked"
	case errors.Is(err, group_pack.ErrPackNotYetComplete):
		return "pack_not_complete"
	case errors.Is(err, group_pack.ErrPackInactiveOrExpired):
		return "pack_inactive_or_expired"
	case errors.Is(err, group_pack.ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal_error"
	}
}
