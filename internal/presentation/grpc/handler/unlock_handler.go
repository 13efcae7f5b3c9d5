package handler

import (
	"context"
	"time"

	redemptionapp "unlock-server/internal/application/code_redemption"
	packapp "unlock-server/internal/application/pack_management"
	"unlock-server/internal/presentation/grpc/interceptor"
	"unlock-server/internal/presentation/grpc/pb"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// UnlockHandler gRPC UnlockServiceハンドラー
type UnlockHandler struct {
	redemptionService *redemptionapp.CodeRedemptionApplicationService
	packService       *packapp.PackApplicationService
	now               func() time.Time
}

var _ pb.UnlockServiceServer = (*UnlockHandler)(nil)

// NewUnlockHandler 新しいUnlockHandlerを作成
func NewUnlockHandler(
	redemptionService *redemptionapp.CodeRedemptionApplicationService,
	packService *packapp.PackApplicationService,
) *UnlockHandler {
	return &UnlockHandler{
		redemptionService: redemptionService,
		packService:       packService,
		now:               time.Now,
	}
}

// ValidateCode コード検証（匿名可）
func (h *UnlockHandler) ValidateCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	code := stringField(req, "code")
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	resp, err := h.redemptionService.Validate(ctx, &redemptionapp.ValidateCodeRequest{
		Code:      code,
		UserID:    interceptor.UserID(ctx),
		IPAddress: interceptor.ClientIP(ctx),
	})
	if err != nil {
		return nil, toStatus(err, h.now())
	}

	out := map[string]interface{}{
		"valid":   resp.Valid,
		"code":    resp.Code,
		"status":  resp.Status,
		"is_pack": resp.IsPack,
	}
	if resp.Reason != "" {
		out["reason"] = resp.Reason
	}
	if resp.ExpiresAt != nil {
		out["expires_at"] = formatTime(*resp.ExpiresAt)
	}
	if resp.Release != nil {
		out["release"] = releaseFields(*resp.Release)
	}
	return newStruct(out)
}

// RedeemCode コード引き換え
func (h *UnlockHandler) RedeemCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	code := stringField(req, "code")
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	resp, err := h.redemptionService.Redeem(ctx, &redemptionapp.RedeemCodeRequest{
		Code:              code,
		UserID:            interceptor.UserID(ctx),
		IPAddress:         interceptor.ClientIP(ctx),
		UserAgent:         interceptor.UserAgent(ctx),
		DeviceFingerprint: stringField(req, "device_fingerprint"),
	})
	if err != nil {
		return nil, toStatus(err, h.now())
	}

	return newStruct(map[string]interface{}{
		"success":        resp.Success,
		"code_id":        resp.CodeID,
		"code":           resp.Code,
		"redeemed_at":    formatTime(resp.RedeemedAt),
		"device_changed": resp.DeviceChanged,
		"release":        releaseFields(resp.Release),
		"access": map[string]interface{}{
			"user_id":    resp.Access.UserID,
			"release_id": resp.Access.ReleaseID,
			"source":     resp.Access.Source,
			"granted_at": formatTime(resp.Access.GrantedAt),
		},
	})
}

// JoinPack パック参加
func (h *UnlockHandler) JoinPack(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	packID := stringField(req, "pack_id")
	if packID == "" {
		return nil, status.Error(codes.InvalidArgument, "pack_id is required")
	}
	inviteCode := stringField(req, "invite_code")
	if inviteCode == "" {
		return nil, status.Error(codes.InvalidArgument, "invite_code is required")
	}

	resp, err := h.packService.JoinPack(ctx, &packapp.JoinPackRequest{
		PackID:     packID,
		InviteCode: inviteCode,
		UserID:     interceptor.UserID(ctx),
	})
	if err != nil {
		return nil, toStatus(err, h.now())
	}

	return newStruct(map[string]interface{}{
		"pack_id":         resp.PackID,
		"member_id":       resp.MemberID,
		"current_members": resp.CurrentMembers,
		"max_members":     resp.MaxMembers,
		"is_complete":     resp.IsComplete,
		"joined_at":       formatTime(resp.JoinedAt),
	})
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func releaseFields(r redemptionapp.ReleaseInfo) map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID,
		"creator_id":  r.CreatorID,
		"title":       r.Title,
		"artist_name": r.ArtistName,
		"cover_url":   r.CoverURL,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return s, nil
}
