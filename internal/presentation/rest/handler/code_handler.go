package handler

import (
	"net/http"

	redemptionapp "unlock-server/internal/application/code_redemption"
	"unlock-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
)

// CodeHandler コード検証・引き換えハンドラー
type CodeHandler struct {
	redemptionService *redemptionapp.CodeRedemptionApplicationService
}

// NewCodeHandler 新しいCodeHandlerを作成
func NewCodeHandler(redemptionService *redemptionapp.CodeRedemptionApplicationService) *CodeHandler {
	return &CodeHandler{
		redemptionService: redemptionService,
	}
}

// ValidateCode コード検証ハンドラー
// @Summary コードを検証
// @Description コードの状態とリリース情報を返します。状態は変更しません
// @Tags codes
// @Accept json
// @Produce json
// @Param request body ValidateCodeRequest true "コード検証リクエスト"
// @Success 200 {object} ValidateCodeResponse "検証結果"
// @Failure 400 {object} ErrorResponse "形式不正"
// @Failure 404 {object} ErrorResponse "コードが存在しない"
// @Failure 429 {object} ErrorResponse "レート制限"
// @Router /codes/validate [post]
func (h *CodeHandler) ValidateCode(c echo.Context) error {
	var reqBody ValidateCodeRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.redemptionService.Validate(c.Request().Context(), &redemptionapp.ValidateCodeRequest{
		Code:      reqBody.Code,
		UserID:    middleware.UserID(c),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return err
	}

	out := ValidateCodeResponse{
		Valid:     resp.Valid,
		Code:      resp.Code,
		Status:    resp.Status,
		Reason:    resp.Reason,
		ExpiresAt: formatTimePtr(resp.ExpiresAt),
		IsPack:    resp.IsPack,
	}
	if resp.Release != nil {
		r := releaseView(*resp.Release)
		out.Release = &r
	}
	return c.JSON(http.StatusOK, out)
}

// RedeemCode コード引き換えハンドラー
// @Summary コードを引き換え
// @Description コードを引き換えてリリースへのアクセス権を付与します
// @Tags codes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RedeemCodeRequest true "コード引き換えリクエスト"
// @Success 200 {object} RedeemCodeResponse "引き換え成功"
// @Failure 400 {object} ErrorResponse "形式不正"
// @Failure 403 {object} ErrorResponse "デバイス・IP不一致または不正検知"
// @Failure 404 {object} ErrorResponse "無効または使用済み"
// @Failure 409 {object} ErrorResponse "引き換え済み"
// @Failure 410 {object} ErrorResponse "失効または期限切れ"
// @Failure 429 {object} ErrorResponse "レート制限"
// @Router /codes/redeem [post]
func (h *CodeHandler) RedeemCode(c echo.Context) error {
	var reqBody RedeemCodeRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.redemptionService.Redeem(c.Request().Context(), &redemptionapp.RedeemCodeRequest{
		Code:              reqBody.Code,
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

func redeemResponse(resp *redemptionapp.RedeemCodeResponse) RedeemCodeResponse {
	return RedeemCodeResponse{
		Success:       resp.Success,
		CodeID:        resp.CodeID,
		Code:          resp.Code,
		RedeemedAt:    formatTime(resp.RedeemedAt),
		DeviceChanged: resp.DeviceChanged,
		Release:       releaseView(resp.Release),
		Access:        accessView(resp.Access),
	}
}
