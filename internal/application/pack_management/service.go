package pack_management

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unlock-server/internal/application/code_generation"
	"unlock-server/internal/application/code_redemption"
	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/service"
	"unlock-server/internal/domain/unlock_code"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

// PackApplicationService グループパックのアプリケーションサービス
type PackApplicationService struct {
	packRepo    group_pack.GroupPackRepository
	codeRepo    unlock_code.UnlockCodeRepository
	coordinator *service.GroupPackCoordinator
	generator   *service.CodeGenerator
	codeGen     *code_generation.CodeGenerationApplicationService
	redemption  *code_redemption.CodeRedemptionApplicationService
	logger      *otelinfra.Logger
	metrics     *otelinfra.Metrics
	tracer      trace.Tracer
	maxMembers  int
	now         func() time.Time
}

// NewPackApplicationService 新しいPackApplicationServiceを作成
func NewPackApplicationService(
	packRepo group_pack.GroupPackRepository,
	codeRepo unlock_code.UnlockCodeRepository,
	coordinator *service.GroupPackCoordinator,
	generator *service.CodeGenerator,
	codeGen *code_generation.CodeGenerationApplicationService,
	redemption *code_redemption.CodeRedemptionApplicationService,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	maxMembers int,
) *PackApplicationService {
	return &PackApplicationService{
		packRepo:    packRepo,
		codeRepo:    codeRepo,
		coordinator: coordinator,
		generator:   generator,
		codeGen:     codeGen,
		redemption:  redemption,
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer("pack-service"),
		maxMembers:  maxMembers,
		now:         time.Now,
	}
}

// WithClock 時刻の取得元を差し替える
func (s *PackApplicationService) WithClock(now func() time.Time) *PackApplicationService {
	s.now = now
	return s
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

// CreatePack パックを購入する
// メンバー数分のコードを発行し、先頭を所有者、残りを招待コード付きの空きスロットに割り当てる
func (s *PackApplicationService) CreatePack(ctx context.Context, req *CreatePackRequest) (*CreatePackResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PackApplicationService.CreatePack")
	defer span.End()

	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = req.CreatorID
	}
	span.SetAttributes(
		attribute.String("release_id", req.ReleaseID),
		attribute.String("creator_id", req.CreatorID),
		attribute.String("owner_id", ownerID),
		attribute.Int("max_members", req.MaxMembers),
	)

	if req.MaxMembers < group_pack.MinMembers || req.MaxMembers > s.maxMembers {
		err := fmt.Errorf("%w: must be between %d and %d", group_pack.ErrInvalidPackSize, group_pack.MinMembers, s.maxMembers)
		fail(span, err)
		return nil, err
	}
	method, err := payment.NewMethod(req.PaymentMethod)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	if err := s.codeGen.CheckOwnership(ctx, req.ReleaseID, req.CreatorID); err != nil {
		fail(span, err)
		return nil, err
	}
	quote, err := s.codeGen.Price(req.MaxMembers, req.MaxMembers, req.PackType)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	var (
		pack    *group_pack.GroupCodePack
		invites []string
	)
	assign := func(ctx context.Context, batch *unlock_code.CodeBatch, codes []*unlock_code.UnlockCode) error {
		now := s.now()
		packID := uuid.NewString()
		members := make([]*group_pack.PackMember, len(codes))
		invites = make([]string, 0, len(codes)-1)
		for i, code := range codes {
			invite, err := s.generator.NewInviteCode()
			if err != nil {
				return err
			}
			memberID := uuid.NewString()
			if i == 0 {
				members[i], err = group_pack.NewOwnerSlot(memberID, packID, ownerID, invite, code.ID(), now)
			} else {
				members[i], err = group_pack.NewOpenSlot(memberID, packID, invite, code.ID())
				invites = append(invites, invite)
			}
			if err != nil {
				return err
			}
			code.AssignToPack(packID, memberID)
		}

		var err error
		pack, err = group_pack.NewGroupCodePack(packID, req.ReleaseID, req.CreatorID, ownerID, req.PackType, batch.ID(),
			req.MaxMembers, s.maxMembers, group_pack.PackPricing{
				OriginalPrice:   quote.Subtotal,
				DiscountedPrice: quote.TotalCost,
				DiscountPercent: quote.DiscountPercent,
			}, batch.ExpiresAt(), now)
		if err != nil {
			return err
		}
		return s.packRepo.Create(ctx, pack, members)
	}

	issued, err := s.codeGen.Issue(ctx, code_generation.Order{
		ReleaseID:        req.ReleaseID,
		CreatorID:        req.CreatorID,
		Quantity:         req.MaxMembers,
		PaymentMethod:    method,
		PaymentReference: req.PaymentReference,
		Quote:            quote,
		ExpiresAt:        req.ExpiresAt,
	}, assign)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	s.logger.Info(ctx, "Group pack created", map[string]interface{}{
		"pack_id":     pack.ID(),
		"release_id":  pack.ReleaseID(),
		"owner_id":    pack.OwnerID(),
		"max_members": pack.MaxMembers(),
		"total_cost":  quote.TotalCost.StringFixed(2),
	})

	span.SetAttributes(attribute.String("pack_id", pack.ID()))
	span.SetStatus(otelcodes.Ok, "pack created")
	return &CreatePackResponse{
		PackID:           pack.ID(),
		BatchID:          issued.Batch.ID(),
		ReleaseID:        pack.ReleaseID(),
		OwnerID:          pack.OwnerID(),
		PackType:         pack.PackType(),
		MaxMembers:       pack.MaxMembers(),
		CurrentMembers:   pack.CurrentMembers(),
		InviteCodes:      invites,
		Quote:            *s.codeGen.QuoteResponse(quote),
		PaymentMethod:    issued.Receipt.Method.String(),
		PaymentReference: issued.Receipt.Reference,
		WalletBalance:    issued.Receipt.WalletBalance,
		ExpiresAt:        pack.ExpiresAt(),
		CreatedAt:        pack.CreatedAt(),
	}, nil
}

// JoinPack 招待コードでパックに参加する
func (s *PackApplicationService) JoinPack(ctx context.Context, req *JoinPackRequest) (*JoinPackResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PackApplicationService.JoinPack")
	defer span.End()

	span.SetAttributes(
		attribute.String("pack_id", req.PackID),
		attribute.String("user_id", req.UserID),
	)

	pack, member, err := s.coordinator.JoinPack(ctx, req.PackID, req.InviteCode, req.UserID)
	if err != nil {
		fail(span, err)
		result := joinResult(err)
		s.metrics.RecordPackJoin(ctx, result)
		if result == "error" {
			s.logger.Error(ctx, "Failed to join pack", err, map[string]interface{}{
				"pack_id": req.PackID,
				"user_id": req.UserID,
			})
			return nil, fmt.Errorf("failed to join pack: %w", err)
		}
		s.logger.Warn(ctx, "Pack join rejected", map[string]interface{}{
			"pack_id": req.PackID,
			"user_id": req.UserID,
			"reason":  result,
		})
		return nil, err
	}

	s.metrics.RecordPackJoin(ctx, "joined")
	s.logger.Info(ctx, "Member joined pack", map[string]interface{}{
		"pack_id":         pack.ID(),
		"user_id":         req.UserID,
		"current_members": pack.CurrentMembers(),
		"max_members":     pack.MaxMembers(),
	})

	span.SetStatus(otelcodes.Ok, "joined")
	resp := &JoinPackResponse{
		PackID:         pack.ID(),
		MemberID:       member.ID(),
		CurrentMembers: pack.CurrentMembers(),
		MaxMembers:     pack.MaxMembers(),
		IsComplete:     pack.IsComplete(s.now()),
	}
	if member.JoinedAt() != nil {
		resp.JoinedAt = *member.JoinedAt()
	}
	return resp, nil
}

// RedeemMember 呼び出し元に割り当てられたパックコードを引き換える
func (s *PackApplicationService) RedeemMember(ctx context.Context, req *RedeemMemberRequest) (*code_redemption.RedeemCodeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PackApplicationService.RedeemMember")
	defer span.End()

	span.SetAttributes(
		attribute.String("pack_id", req.PackID),
		attribute.String("user_id", req.UserID),
	)

	if _, err := s.packRepo.FindByID(ctx, req.PackID); err != nil {
		fail(span, err)
		return nil, err
	}
	member, err := s.packRepo.FindMemberByUser(ctx, req.PackID, req.UserID)
	if err != nil {
		if errors.Is(err, group_pack.ErrMemberNotFound) {
			err = group_pack.ErrNotAMember
		}
		fail(span, err)
		return nil, err
	}
	code, err := s.codeRepo.FindByID(ctx, member.UnlockCodeID())
	if err != nil {
		err = fmt.Errorf("failed to find reserved code: %w", err)
		fail(span, err)
		return nil, err
	}

	resp, err := s.redemption.Redeem(ctx, &code_redemption.RedeemCodeRequest{
		Code:              code.Code(),
		UserID:            req.UserID,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "member redeemed")
	return resp, nil
}

// Status パックの状態と閲覧者向けの通知を返す
// 閲覧できるのはメンバーとパックのクリエイターのみ
func (s *PackApplicationService) Status(ctx context.Context, packID, viewerID string) (*PackStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PackApplicationService.Status")
	defer span.End()

	span.SetAttributes(
		attribute.String("pack_id", packID),
		attribute.String("viewer_id", viewerID),
	)

	pack, err := s.packRepo.FindByID(ctx, packID)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	members, err := s.packRepo.FindMembers(ctx, packID)
	if err != nil {
		err = fmt.Errorf("failed to find members: %w", err)
		fail(span, err)
		return nil, err
	}

	privileged := viewerID == pack.OwnerID() || viewerID == pack.CreatorID()
	visible := privileged
	for _, m := range members {
		if m.UserID() == viewerID {
			visible = true
		}
	}
	if !visible {
		fail(span, group_pack.ErrNotAMember)
		return nil, group_pack.ErrNotAMember
	}

	now := s.now()
	infos := make([]MemberInfo, len(members))
	for i, m := range members {
		infos[i] = MemberInfo{
			ID:          m.ID(),
			UserID:      m.UserID(),
			Role:        m.Role().String(),
			HasRedeemed: m.HasRedeemed(),
			JoinedAt:    m.JoinedAt(),
			RedeemedAt:  m.RedeemedAt(),
		}
		if privileged {
			infos[i].InviteCode = m.InviteCode()
		}
	}

	notifications := group_pack.BuildNotifications(pack, members, viewerID, now)
	notes := make([]NotificationInfo, len(notifications))
	for i, n := range notifications {
		notes[i] = NotificationInfo{Type: string(n.Type), Message: n.Message}
	}

	pricing := pack.Pricing()
	span.SetStatus(otelcodes.Ok, "status loaded")
	return &PackStatusResponse{
		PackID:          pack.ID(),
		ReleaseID:       pack.ReleaseID(),
		OwnerID:         pack.OwnerID(),
		PackType:        pack.PackType(),
		MaxMembers:      pack.MaxMembers(),
		CurrentMembers:  pack.CurrentMembers(),
		RemainingSlots:  pack.RemainingSlots(),
		IsComplete:      pack.IsComplete(now),
		IsActive:        pack.IsActive(),
		OriginalPrice:   pricing.OriginalPrice,
		DiscountedPrice: pricing.DiscountedPrice,
		DiscountPercent: pricing.DiscountPercent,
		ExpiresAt:       pack.ExpiresAt(),
		Members:         infos,
		Notifications:   notes,
	}, nil
}

func joinResult(err error) string {
	switch {
	case errors.Is(err, group_pack.ErrPackFull):
		return "pack_full"
	case errors.Is(err, group_pack.ErrPackInactiveOrExpired):
		return "pack_inactive_or_expired"
	case errors.Is(err, group_pack.ErrAlreadyAMember):
		return "already_member"
	case errors.Is(err, group_pack.ErrInviteCodeClaimed):
		return "invite_claimed"
	case errors.Is(err, group_pack.ErrInviteCodeNotFound), errors.Is(err, group_pack.ErrPackNotFound):
		return "not_found"
	default:
		return "error"
	}
}
