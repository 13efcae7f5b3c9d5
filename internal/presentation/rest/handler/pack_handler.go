package handler

import (
	"net/http"

	packapp "unlock-server/internal/application/pack_management"
	"unlock-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
)

// PackHandler グループパック関連ハンドラー
type PackHandler struct {
	packService *packapp.PackApplicationService
}

// NewPackHandler 新しいPackHandlerを作成
func NewPackHandler(packService *packapp.PackApplicationService) *PackHandler {
	return &PackHandler{
		packService: packService,
	}
}

// JoinPack パック参加ハンドラー
// @Summary グループパックに参加
// @Description 招待コードのスロットを取得してパックに参加します
// @Tags packs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pack_id path string true "パックID"
// @Param request body JoinPackRequest true "パック参加リクエスト"
// @Success 200 {object} JoinPackResponse "参加成功"
// @Failure 404 {object} ErrorResponse "パックまたは招待コードが存在しない"
// @Failure 409 {object} ErrorResponse "満員・参加済み・招待コード使用済み"
// @Failure 410 {object} ErrorResponse "パックが無効または期限切れ"
// @Router /packs/{pack_id}/join [post]
func (h *PackHandler) JoinPack(c echo.Context) error {
	var reqBody JoinPackRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.packService.JoinPack(c.Request().Context(), &packapp.JoinPackRequest{
		PackID:     c.Param("pack_id"),
		InviteCode: reqBody.InviteCode,
		UserID:     middleware.UserID(c),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, JoinPackResponse{
		PackID:         resp.PackID,
		MemberID:       resp.MemberID,
		CurrentMembers: resp.CurrentMembers,
		MaxMembers:     resp.MaxMembers,
		IsComplete:     resp.IsComplete,
		JoinedAt:       formatTime(resp.JoinedAt),
	})
}

// RedeemPack パックメンバー引き換えハンドラー
// @Summary パックの自分のコードを引き換え
// @Description パックが完成している場合にメンバーに割り当てられたコードを引き換えます
// @Tags packs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pack_id path string true "パックID"
// @Param request body RedeemPackRequest false "パックメンバー引き換えリクエスト"
// @Success 200 {object} RedeemCodeResponse "引き換え成功"
// @Failure 403 {object} ErrorResponse "メンバーではない"
// @Failure 409 {object} ErrorResponse "パック未完成または引き換え済み"
// @Router /packs/{pack_id}/redeem [post]
func (h *PackHandler) RedeemPack(c echo.Context) error {
	var reqBody RedeemPackRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.packService.RedeemMember(c.Request().Context(), &packapp.RedeemMemberRequest{
		PackID:            c.Param("pack_id"),
		UserID:            middleware.UserID(c),
		IPAddress:         c.RealIP(),
		UserAgent:         c.Request().UserAgent(),
		DeviceFingerprint: reqBody.DeviceFingerprint,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, redeemResponse(resp))
}

// GetPackStatus パック状態ハンドラー
// @Summary グループパックの状態を取得
// @Description メンバー・所有者・クリエイターのみ参照できます
// @Tags packs
// @Produce json
// @Security BearerAuth
// @Param pack_id path string true "パックID"
// @Success 200 {object} PackStatusResponse "パック状態"
// @Failure 403 {object} ErrorResponse "参照権限がない"
// @Failure 404 {object} ErrorResponse "パックが存在しない"
// @Router /packs/{pack_id} [get]
func (h *PackHandler) GetPackStatus(c echo.Context) error {
	resp, err := h.packService.Status(c.Request().Context(), c.Param("pack_id"), middleware.UserID(c))
	if err != nil {
		return err
	}

	members := make([]PackMemberView, 0, len(resp.Members))
	for _, m := range resp.Members {
		members = append(members, PackMemberView{
			ID:          m.ID,
			UserID:      m.UserID,
			Role:        m.Role,
			InviteCode:  m.InviteCode,
			HasRedeemed: m.HasRedeemed,
			JoinedAt:    formatTimePtr(m.JoinedAt),
			RedeemedAt:  formatTimePtr(m.RedeemedAt),
		})
	}
	notifications := make([]NotificationView, 0, len(resp.Notifications))
	for _, n := range resp.Notifications {
		notifications = append(notifications, NotificationView{Type: n.Type, Message: n.Message})
	}

	return c.JSON(http.StatusOK, PackStatusResponse{
		PackID:          resp.PackID,
		ReleaseID:       resp.ReleaseID,
		OwnerID:         resp.OwnerID,
		PackType:        resp.PackType,
		MaxMembers:      resp.MaxMembers,
		CurrentMembers:  resp.CurrentMembers,
		RemainingSlots:  resp.RemainingSlots,
		IsComplete:      resp.IsComplete,
		IsActive:        resp.IsActive,
		OriginalPrice:   resp.OriginalPrice.String(),
		DiscountedPrice: resp.DiscountedPrice.String(),
		DiscountPercent: resp.DiscountPercent.String(),
		ExpiresAt:       formatTimePtr(resp.ExpiresAt),
		Members:         members,
		Notifications:   notifications,
	})
}
