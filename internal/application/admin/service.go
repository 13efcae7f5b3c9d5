package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/transaction"
	"unlock-server/internal/domain/unlock_code"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

const (
	defaultLimit = 50
	maxLimit     = 200
	// MaxBulkCodes 一括操作で指定できるコード数の上限
	MaxBulkCodes = 1000
)

var (
	// ErrNoCodeIDs 一括操作の対象が指定されていないエラー
	ErrNoCodeIDs = errors.New("no code ids given")
	// ErrTooManyCodeIDs 一括操作の対象が多すぎるエラー
	ErrTooManyCodeIDs = errors.New("too many code ids")
	// ErrInvalidIPAddress IPアドレスの形式が不正なエラー
	ErrInvalidIPAddress = errors.New("invalid ip address")
	// ErrInvalidFilter 一覧の絞り込み条件が不正なエラー
	ErrInvalidFilter = errors.New("invalid filter")
)

// AdminApplicationService 管理者向けアプリケーションサービス
type AdminApplicationService struct {
	codeRepo   unlock_code.UnlockCodeRepository
	configRepo security.ConfigurationRepository
	provider   security.ConfigurationProvider
	signals    security.FraudSignalRepository
	attempts   security.AttemptLogRepository
	blockList  security.BlockList
	txManager  transaction.TransactionManager
	logger     *otelinfra.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewAdminApplicationService 新しいAdminApplicationServiceを作成
func NewAdminApplicationService(
	codeRepo unlock_code.UnlockCodeRepository,
	configRepo security.ConfigurationRepository,
	provider security.ConfigurationProvider,
	signals security.FraudSignalRepository,
	attempts security.AttemptLogRepository,
	blockList security.BlockList,
	txManager transaction.TransactionManager,
	logger *otelinfra.Logger,
) *AdminApplicationService {
	return &AdminApplicationService{
		codeRepo:   codeRepo,
		configRepo: configRepo,
		provider:   provider,
		signals:    signals,
		attempts:   attempts,
		blockList:  blockList,
		txManager:  txManager,
		logger:     logger,
		tracer:     otel.Tracer("admin-service"),
		now:        time.Now,
	}
}

// WithClock 時刻の取得元を差し替える
func (s *AdminApplicationService) WithClock(now func() time.Time) *AdminApplicationService {
	s.now = now
	return s
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// BulkUpdateStatus コードのステータスを一括で変更する
// 遷移できないコードは数えずに読み飛ばす
func (s *AdminApplicationService) BulkUpdateStatus(ctx context.Context, req *BulkUpdateRequest) (*BulkUpdateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.BulkUpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("action", req.Action),
		attribute.Int("code_count", len(req.CodeIDs)),
		attribute.Bool("include_redeemed", req.IncludeRedeemed),
		attribute.String("admin_id", req.AdminID),
	)

	action, err := unlock_code.NewBulkAction(req.Action)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	if len(req.CodeIDs) == 0 {
		fail(span, ErrNoCodeIDs)
		return nil, ErrNoCodeIDs
	}
	if len(req.CodeIDs) > MaxBulkCodes {
		err := fmt.Errorf("%w: at most %d", ErrTooManyCodeIDs, MaxBulkCodes)
		fail(span, err)
		return nil, err
	}

	var updated int64
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.codeRepo.BulkUpdateStatus(ctx, req.CodeIDs, action, req.IncludeRedeemed)
		if err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to update code status", err, map[string]interface{}{
			"action":   req.Action,
			"admin_id": req.AdminID,
		})
		err = fmt.Errorf("failed to update code status: %w", err)
		fail(span, err)
		return nil, err
	}

	s.logger.Info(ctx, "Code status updated", map[string]interface{}{
		"action":           req.Action,
		"requested":        len(req.CodeIDs),
		"updated":          updated,
		"include_redeemed": req.IncludeRedeemed,
		"admin_id":         req.AdminID,
	})

	span.SetStatus(otelcodes.Ok, "status updated")
	return &BulkUpdateResponse{Action: req.Action, Requested: len(req.CodeIDs), Updated: updated}, nil
}

// GetSecurityConfig 保存済みのセキュリティ設定を返す（未保存なら既定値）
func (s *AdminApplicationService) GetSecurityConfig(ctx context.Context) (*security.Configuration, error) {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.GetSecurityConfig")
	defer span.End()

	cfg, err := s.configRepo.Find(ctx)
	if errors.Is(err, security.ErrConfigurationNotFound) {
		def := security.DefaultConfiguration()
		span.SetStatus(otelcodes.Ok, "default configuration")
		return &def, nil
	}
	if err != nil {
		err = fmt.Errorf("failed to find security configuration: %w", err)
		fail(span, err)
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "configuration loaded")
	return cfg, nil
}

// UpdateSecurityConfig セキュリティ設定を保存し、キャッシュを破棄して即時反映する
func (s *AdminApplicationService) UpdateSecurityConfig(ctx context.Context, cfg security.Configuration, adminID string) (*security.Configuration, error) {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.UpdateSecurityConfig")
	defer span.End()

	span.SetAttributes(attribute.String("admin_id", adminID))

	if err := cfg.Validate(); err != nil {
		fail(span, err)
		return nil, err
	}
	cfg.UpdatedBy = adminID
	cfg.UpdatedAt = s.now().UTC()

	if err := s.configRepo.Save(ctx, cfg); err != nil {
		err = fmt.Errorf("failed to save security configuration: %w", err)
		s.logger.Error(ctx, "Failed to save security configuration", err, map[string]interface{}{
			"admin_id": adminID,
		})
		fail(span, err)
		return nil, err
	}
	s.provider.Invalidate()

	s.logger.Info(ctx, "Security configuration updated", map[string]interface{}{
		"admin_id":                adminID,
		"device_locking_enabled":  cfg.DeviceLockingEnabled,
		"ip_locking_enabled":      cfg.IPLockingEnabled,
		"rate_limiting_enabled":   cfg.RateLimitingEnabled,
		"fraud_detection_enabled": cfg.FraudDetectionEnabled,
		"block_suspicious_ips":    cfg.BlockSuspiciousIPs,
	})

	span.SetStatus(otelcodes.Ok, "configuration updated")
	return &cfg, nil
}

// ListFraudSignals 不正シグナルを新しい順に返す
func (s *AdminApplicationService) ListFraudSignals(ctx context.Context, req *ListSignalsRequest) (*ListSignalsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.ListFraudSignals")
	defer span.End()

	filter := security.SignalFilter{
		Resolved: req.Resolved,
		UserID:   req.UserID,
		Limit:    pageLimit(req.Limit),
		Offset:   req.Offset,
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if req.Reason != "" {
		reason, err := security.NewReason(req.Reason)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidFilter, err)
			fail(span, err)
			return nil, err
		}
		filter.Reason = reason
	}

	signals, total, err := s.signals.List(ctx, filter)
	if err != nil {
		err = fmt.Errorf("failed to list fraud signals: %w", err)
		fail(span, err)
		return nil, err
	}

	infos := make([]FraudSignalInfo, len(signals))
	for i, sig := range signals {
		infos[i] = signalInfo(sig)
	}

	span.SetAttributes(attribute.Int("total", total))
	span.SetStatus(otelcodes.Ok, "signals listed")
	return &ListSignalsResponse{Signals: infos, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ResolveFraudSignal 不正シグナルを解決済みにする
func (s *AdminApplicationService) ResolveFraudSignal(ctx context.Context, id, adminID string) (*FraudSignalInfo, error) {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.ResolveFraudSignal")
	defer span.End()

	span.SetAttributes(
		attribute.String("signal_id", id),
		attribute.String("admin_id", adminID),
	)

	if err := s.signals.Resolve(ctx, id, adminID, s.now()); err != nil {
		fail(span, err)
		return nil, err
	}
	sig, err := s.signals.FindByID(ctx, id)
	if err != nil {
		err = fmt.Errorf("failed to reload fraud signal: %w", err)
		fail(span, err)
		return nil, err
	}

	s.logger.Info(ctx, "Fraud signal resolved", map[string]interface{}{
		"signal_id": id,
		"reason":    sig.Reason().String(),
		"admin_id":  adminID,
	})

	span.SetStatus(otelcodes.Ok, "signal resolved")
	info := signalInfo(sig)
	return &info, nil
}

// UnblockIP 自動ブロックされたIPアドレスを解除する
func (s *AdminApplicationService) UnblockIP(ctx context.Context, ip, adminID string) error {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.UnblockIP")
	defer span.End()

	span.SetAttributes(
		attribute.String("ip_address", ip),
		attribute.String("admin_id", adminID),
	)

	if net.ParseIP(ip) == nil {
		err := fmt.Errorf("%w: %q", ErrInvalidIPAddress, ip)
		fail(span, err)
		return err
	}
	if err := s.blockList.Unblock(ctx, ip); err != nil {
		err = fmt.Errorf("failed to unblock ip: %w", err)
		fail(span, err)
		return err
	}

	s.logger.Info(ctx, "IP address unblocked", map[string]interface{}{
		"ip_address": ip,
		"admin_id":   adminID,
	})

	span.SetStatus(otelcodes.Ok, "ip unblocked")
	return nil
}

// AttemptLogs 提出されたコードの試行ログを新しい順に返す
func (s *AdminApplicationService) AttemptLogs(ctx context.Context, code string, limit int) ([]AttemptInfo, error) {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.AttemptLogs")
	defer span.End()

	normalized := unlock_code.Normalize(code)
	if normalized == "" {
		fail(span, unlock_code.ErrMalformedCode)
		return nil, unlock_code.ErrMalformedCode
	}

	attempts, err := s.attempts.FindBySubmittedCode(ctx, normalized, pageLimit(limit))
	if err != nil {
		err = fmt.Errorf("failed to find attempts: %w", err)
		fail(span, err)
		return nil, err
	}

	infos := make([]AttemptInfo, len(attempts))
	for i, a := range attempts {
		infos[i] = AttemptInfo{
			ID:                a.ID,
			CodeID:            a.CodeID,
			SubmittedCode:     a.SubmittedCode,
			UserID:            a.UserID,
			IPAddress:         a.IPAddress,
			UserAgent:         a.UserAgent,
			DeviceFingerprint: a.DeviceFingerprint,
			Success:           a.Success,
			FailureReason:     a.FailureReason,
			AttemptedAt:       a.AttemptedAt,
		}
	}

	span.SetAttributes(attribute.Int("count", len(infos)))
	span.SetStatus(otelcodes.Ok, "attempts listed")
	return infos, nil
}

// BatchCodes バッチと所属コードを返す
func (s *AdminApplicationService) BatchCodes(ctx context.Context, batchID string, limit, offset int) (*BatchCodesResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AdminApplicationService.BatchCodes")
	defer span.End()

	span.SetAttributes(attribute.String("batch_id", batchID))

	batch, err := s.codeRepo.FindBatch(ctx, batchID)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	limit = pageLimit(limit)
	if offset < 0 {
		offset = 0
	}
	codes, total, err := s.codeRepo.FindByBatchID(ctx, batchID, limit, offset)
	if err != nil {
		err = fmt.Errorf("failed to find batch codes: %w", err)
		fail(span, err)
		return nil, err
	}

	infos := make([]CodeInfo, len(codes))
	for i, c := range codes {
		infos[i] = CodeInfo{
			ID:             c.ID(),
			Code:           unlock_code.FormatCode(c.Code()),
			Status:         c.Status().String(),
			RedeemedBy:     c.RedeemedBy(),
			RedeemedAt:     c.RedeemedAt(),
			DeviceLockedTo: c.DeviceLockedTo(),
			IPLockedTo:     c.IPLockedTo(),
			RevokedReason:  c.RevokedReason(),
			GroupPackID:    c.GroupPackID(),
			ExpiresAt:      c.ExpiresAt(),
		}
	}

	pricing := batch.Pricing()
	span.SetStatus(otelcodes.Ok, "batch listed")
	return &BatchCodesResponse{
		Batch: BatchInfo{
			ID:               batch.ID(),
			ReleaseID:        batch.ReleaseID(),
			CreatorID:        batch.CreatorID(),
			Quantity:         batch.Quantity(),
			PricePerCode:     pricing.PricePerCode,
			TotalCost:        pricing.TotalCost,
			Currency:         pricing.Currency,
			PaymentReference: batch.PaymentReference(),
			ExpiresAt:        batch.ExpiresAt(),
			CreatedAt:        batch.CreatedAt(),
		},
		Codes:  infos,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

func signalInfo(sig *security.FraudSignal) FraudSignalInfo {
	return FraudSignalInfo{
		ID:         sig.ID(),
		CodeID:     sig.CodeID(),
		UserID:     sig.UserID(),
		IPAddress:  sig.IPAddress(),
		Reason:     sig.Reason().String(),
		Score:      sig.Score(),
		Details:    sig.Details(),
		Resolved:   sig.Resolved(),
		ResolvedBy: sig.ResolvedBy(),
		ResolvedAt: sig.ResolvedAt(),
		FlaggedAt:  sig.FlaggedAt(),
	}
}
