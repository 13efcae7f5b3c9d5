package code_redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/application/audit"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/service"
	"unlock-server/internal/domain/transaction"
	"unlock-server/internal/domain/unlock_code"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

// ErrInvalidOrUsedCode 存在しないコード、または他のユーザーが引き換え済みのコード
// どちらに該当するかは呼び出し元に明かさない
var ErrInvalidOrUsedCode = errors.New("invalid or used code")

// CodeRedemptionApplicationService コード検証・引き換えアプリケーションサービス
type CodeRedemptionApplicationService struct {
	codeRepo  unlock_code.UnlockCodeRepository
	releases  release.ReleaseRepository
	access    release.AccessRepository
	guard     *service.SecurityGuard
	packs     *service.GroupPackCoordinator
	audit     *audit.Logger
	txManager transaction.TransactionManager
	logger    *otelinfra.Logger
	metrics   *otelinfra.Metrics
	tracer    trace.Tracer
	timeout   time.Duration
	now       func() time.Time
}

// NewCodeRedemptionApplicationService 新しいCodeRedemptionApplicationServiceを作成
func NewCodeRedemptionApplicationService(
	codeRepo unlock_code.UnlockCodeRepository,
	releases release.ReleaseRepository,
	access release.AccessRepository,
	guard *service.SecurityGuard,
	packs *service.GroupPackCoordinator,
	auditLog *audit.Logger,
	txManager transaction.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	timeout time.Duration,
) *CodeRedemptionApplicationService {
	return &CodeRedemptionApplicationService{
		codeRepo:  codeRepo,
		releases:  releases,
		access:    access,
		guard:     guard,
		packs:     packs,
		audit:     auditLog,
		txManager: txManager,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("code-redemption-service"),
		timeout:   timeout,
		now:       time.Now,
	}
}

// WithClock 時刻の取得元を差し替える
func (s *CodeRedemptionApplicationService) WithClock(now func() time.Time) *CodeRedemptionApplicationService {
	s.now = now
	return s
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

// Validate コードが引き換え可能かを確認する（状態は変更しない）
func (s *CodeRedemptionApplicationService) Validate(ctx context.Context, req *ValidateCodeRequest) (*ValidateCodeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "CodeRedemptionApplicationService.Validate")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("ip_address", req.IPAddress),
	)

	normalized, err := unlock_code.ParseCode(req.Code)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	// 総当たりによる推測を防ぐため検証にもレート制限を適用する
	decision, err := s.guard.Admit(ctx, service.AdmitRequest{
		Action:    service.ActionValidate,
		UserID:    req.UserID,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		fail(span, err)
		s.logger.Error(ctx, "Failed to admit validation", err, map[string]interface{}{
			"ip_address": req.IPAddress,
		})
		return nil, fmt.Errorf("failed to admit validation: %w", err)
	}
	s.audit.RecordSignals(ctx, decision.Signals)
	if !decision.Allowed {
		fail(span, decision.Err)
		if errors.Is(decision.Err, security.ErrRateLimited) {
			s.metrics.RecordRateLimited(ctx, service.ActionValidate)
		}
		return nil, decision.Err
	}

	code, err := s.codeRepo.FindByCode(ctx, normalized)
	if err != nil {
		fail(span, err)
		if errors.Is(err, unlock_code.ErrCodeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find code: %w", err)
	}

	resp := &ValidateCodeResponse{
		Valid:     true,
		Code:      unlock_code.FormatCode(code.Code()),
		Status:    code.Status().String(),
		ExpiresAt: code.ExpiresAt(),
		IsPack:    code.IsPackCode(),
	}
	if err := code.CheckRedeemable(s.now()); err != nil {
		resp.Valid = false
		resp.Reason = audit.FailureReason(err)
	}

	info, err := s.releaseInfo(ctx, code.ReleaseID())
	if err != nil {
		fail(span, err)
		return nil, err
	}
	resp.Release = info

	span.SetStatus(otelcodes.Ok, "code validated")
	return resp, nil
}

// Redeem コードを引き換え、リリースへのアクセス権を付与する
// 同じコードへの同時リクエストのうち成功するのは1件のみ
func (s *CodeRedemptionApplicationService) Redeem(ctx context.Context, req *RedeemCodeRequest) (*RedeemCodeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "CodeRedemptionApplicationService.Redeem")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("ip_address", req.IPAddress),
	)

	at := audit.Attempt{
		SubmittedCode:     unlock_code.Normalize(req.Code),
		UserID:            req.UserID,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: req.DeviceFingerprint,
	}

	normalized, err := unlock_code.ParseCode(req.Code)
	if err != nil {
		fail(span, err)
		s.metrics.RecordRedemption(ctx, audit.FailureReason(err))
		s.logger.Warn(ctx, "Malformed code submitted", map[string]interface{}{
			"user_id":    req.UserID,
			"ip_address": req.IPAddress,
		})
		return nil, err
	}

	code, err := s.codeRepo.FindByCode(ctx, normalized)
	if err != nil {
		if !errors.Is(err, unlock_code.ErrCodeNotFound) {
			fail(span, err)
			s.audit.RecordFailure(ctx, at, err)
			s.logger.Error(ctx, "Failed to find code", err, map[string]interface{}{
				"user_id": req.UserID,
			})
			return nil, fmt.Errorf("failed to find code: %w", err)
		}
		// 存在しないコードの提出もレート制限と不正スコアの対象にする
		if _, denyErr := s.admit(ctx, nil, req, at); denyErr != nil {
			fail(span, denyErr)
			return nil, denyErr
		}
		fail(span, err)
		s.audit.RecordFailure(ctx, at, err)
		return nil, ErrInvalidOrUsedCode
	}

	at.CodeID = code.ID()
	span.SetAttributes(attribute.String("code_id", code.ID()))

	if err := s.checkRedeemable(ctx, code, req.UserID); err != nil {
		fail(span, err)
		s.audit.RecordFailure(ctx, at, err)
		return nil, err
	}

	// 引き換え済みコードも審査を通し、共有されたコードの利用をシグナルとして残す
	deviceChanged, denyErr := s.admit(ctx, code, req, at)
	if denyErr != nil {
		fail(span, denyErr)
		if !errors.Is(denyErr, security.ErrRateLimited) {
			denyErr = s.publicError(code.RedeemedBy(), req.UserID, denyErr)
		}
		return nil, denyErr
	}

	redeemedAt := s.now()
	source := release.AccessSourceUnlockCode
	if code.IsPackCode() {
		source = release.AccessSourceGroupPack
	}
	access := release.Access{
		UserID:    req.UserID,
		ReleaseID: code.ReleaseID(),
		Source:    source,
		CodeID:    code.ID(),
		GrantedAt: redeemedAt,
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.codeRepo.MarkRedeemed(ctx, code.ID(), unlock_code.Redemption{
			UserID:            req.UserID,
			RedeemedAt:        redeemedAt,
			DeviceFingerprint: req.DeviceFingerprint,
			IPAddress:         req.IPAddress,
		}); err != nil {
			return err
		}
		if code.IsPackCode() {
			if err := s.packs.OnMemberRedeemed(ctx, code.GroupPackID(), code.GroupMemberID(), code.ID()); err != nil {
				return err
			}
		}
		if err := s.access.Grant(ctx, access); err != nil {
			return fmt.Errorf("failed to grant access: %w", err)
		}
		return nil
	})
	if err != nil {
		fail(span, err)
		s.audit.RecordFailure(ctx, at, err)
		if errors.Is(err, unlock_code.ErrCodeAlreadyRedeemed) {
			return nil, s.lostRace(ctx, code.ID(), req.UserID)
		}
		s.logger.Error(ctx, "Failed to redeem code", err, map[string]interface{}{
			"code_id": code.ID(),
			"user_id": req.UserID,
		})
		s.metrics.RecordError(ctx, "code_redemption_failed")
		return nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	s.audit.RecordSuccess(ctx, at)

	resp := &RedeemCodeResponse{
		Success:       true,
		CodeID:        code.ID(),
		Code:          unlock_code.FormatCode(code.Code()),
		RedeemedAt:    redeemedAt,
		DeviceChanged: deviceChanged,
		Access: AccessInfo{
			UserID:    access.UserID,
			ReleaseID: access.ReleaseID,
			Source:    string(access.Source),
			GrantedAt: access.GrantedAt,
		},
	}
	resp.Release = ReleaseInfo{ID: code.ReleaseID(), CreatorID: code.CreatorID()}
	if info, err := s.releaseInfo(ctx, code.ReleaseID()); err != nil {
		s.logger.Warn(ctx, "Failed to load release metadata", map[string]interface{}{
			"release_id": code.ReleaseID(),
			"error":      err.Error(),
		})
	} else if info != nil {
		resp.Release = *info
	}

	s.logger.Info(ctx, "Code redeemed successfully", map[string]interface{}{
		"code_id":    code.ID(),
		"user_id":    req.UserID,
		"release_id": code.ReleaseID(),
		"pack_code":  code.IsPackCode(),
	})

	span.SetStatus(otelcodes.Ok, "code redeemed")
	return resp, nil
}

// admit SecurityGuard の審査を行い、検出されたシグナルと拒否を監査ログに残す
// 拒否または審査失敗の場合はエラーを返す
func (s *CodeRedemptionApplicationService) admit(ctx context.Context, code *unlock_code.UnlockCode, req *RedeemCodeRequest, at audit.Attempt) (bool, error) {
	decision, err := s.guard.Admit(ctx, service.AdmitRequest{
		Action:            service.ActionRedeem,
		Code:              code,
		UserID:            req.UserID,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		s.audit.RecordFailure(ctx, at, err)
		s.logger.Error(ctx, "Failed to admit redemption", err, map[string]interface{}{
			"code_id": at.CodeID,
			"user_id": req.UserID,
		})
		return false, fmt.Errorf("failed to admit redemption: %w", err)
	}

	s.audit.RecordSignals(ctx, decision.Signals)
	if !decision.Allowed {
		s.audit.RecordFailure(ctx, at, decision.Err)
		return false, decision.Err
	}
	return decision.DeviceChanged, nil
}

// checkRedeemable 失効・期限切れと、パックコードの場合はパックの完成とスロットの持ち主を確認する
// 引き換え済みかどうかは条件付き更新で判定する
func (s *CodeRedemptionApplicationService) checkRedeemable(ctx context.Context, code *unlock_code.UnlockCode, userID string) error {
	if err := code.CheckRedeemable(s.now()); err != nil && !errors.Is(err, unlock_code.ErrCodeAlreadyRedeemed) {
		return err
	}
	if code.IsPackCode() {
		return s.packs.CheckRedeemable(ctx, code, userID)
	}
	return nil
}

// publicError 他のユーザーが引き換え済みのコードは存在しないコードと区別しない
func (s *CodeRedemptionApplicationService) publicError(redeemedBy, userID string, err error) error {
	if redeemedBy != "" && redeemedBy != userID {
		return ErrInvalidOrUsedCode
	}
	return err
}

// lostRace 条件付き更新で競合に負けた場合、勝者に応じたエラーを返す
func (s *CodeRedemptionApplicationService) lostRace(ctx context.Context, codeID, userID string) error {
	current, err := s.codeRepo.FindByID(context.WithoutCancel(ctx), codeID)
	if err != nil {
		return ErrInvalidOrUsedCode
	}
	return s.publicError(current.RedeemedBy(), userID, unlock_code.ErrCodeAlreadyRedeemed)
}

func (s *CodeRedemptionApplicationService) releaseInfo(ctx context.Context, releaseID string) (*ReleaseInfo, error) {
	rel, err := s.releases.FindByID(ctx, releaseID)
	if err != nil {
		if errors.Is(err, release.ErrReleaseNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find release: %w", err)
	}
	return &ReleaseInfo{
		ID:         rel.ID(),
		CreatorID:  rel.CreatorID(),
		Title:      rel.Title(),
		ArtistName: rel.ArtistName(),
		CoverURL:   rel.CoverURL(),
	}, nil
}
