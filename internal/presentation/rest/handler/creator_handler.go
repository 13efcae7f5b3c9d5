package handler

import (
	"net/http"

	generationapp "unlock-server/internal/application/code_generation"
	packapp "unlock-server/internal/application/pack_management"
	"unlock-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
)

// CreatorHandler クリエイター向けハンドラー（見積もり・コード生成・パック作成）
type CreatorHandler struct {
	generationService *generationapp.CodeGenerationApplicationService
	packService       *packapp.PackApplicationService
}

// NewCreatorHandler 新しいCreatorHandlerを作成
func NewCreatorHandler(generationService *generationapp.CodeGenerationApplicationService, packService *packapp.PackApplicationService) *CreatorHandler {
	return &CreatorHandler{
		generationService: generationService,
		packService:       packService,
	}
}

// Quote 価格見積もりハンドラー
// @Summary 価格を見積もる
// @Description 数量とパック構成から単価・割引・合計を計算します。課金はしません
// @Tags creator
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body QuoteRequest true "見積もりリクエスト"
// @Success 200 {object} QuoteView "見積もり"
// @Failure 400 {object} ErrorResponse "数量不正"
// @Failure 403 {object} ErrorResponse "リリースの所有者ではない"
// @Failure 404 {object} ErrorResponse "リリースが存在しない"
// @Router /creator/codes/quote [post]
func (h *CreatorHandler) Quote(c echo.Context) error {
	var reqBody QuoteRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.generationService.Quote(c.Request().Context(), &generationapp.QuoteRequest{
		ReleaseID:   reqBody.ReleaseID,
		CreatorID:   middleware.UserID(c),
		Quantity:    reqBody.Quantity,
		PackMembers: reqBody.PackMembers,
		PackType:    reqBody.PackType,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, quoteView(*resp))
}

// GenerateCodes コード生成ハンドラー
// @Summary コードを生成
// @Description 決済を確定したうえで指定数の一意なコードを発行します
// @Tags creator
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GenerateCodesRequest true "コード生成リクエスト"
// @Success 201 {object} GenerateCodesResponse "生成成功"
// @Failure 400 {object} ErrorResponse "数量・決済方法不正"
// @Failure 402 {object} ErrorResponse "残高不足または未確定の決済"
// @Failure 403 {object} ErrorResponse "リリースの所有者ではない"
// @Failure 409 {object} ErrorResponse "決済使用済み"
// @Failure 503 {object} ErrorResponse "コード生成に失敗"
// @Router /creator/codes/generate [post]
func (h *CreatorHandler) GenerateCodes(c echo.Context) error {
	var reqBody GenerateCodesRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	expiresAt, err := parseTimePtr(reqBody.ExpiresAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be RFC3339")
	}

	resp, err := h.generationService.Generate(c.Request().Context(), &generationapp.GenerateCodesRequest{
		ReleaseID:        reqBody.ReleaseID,
		CreatorID:        middleware.UserID(c),
		Quantity:         reqBody.Quantity,
		PaymentMethod:    reqBody.PaymentMethod,
		PaymentReference: reqBody.PaymentReference,
		ExpiresAt:        expiresAt,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, GenerateCodesResponse{
		BatchID:          resp.BatchID,
		ReleaseID:        resp.ReleaseID,
		Quantity:         resp.Quantity,
		Codes:            resp.Codes,
		Quote:            quoteView(resp.Quote),
		PaymentMethod:    resp.PaymentMethod,
		PaymentReference: resp.PaymentReference,
		WalletBalance:    decimalPtr(resp.WalletBalance),
		ExpiresAt:        formatTimePtr(resp.ExpiresAt),
		CreatedAt:        formatTime(resp.CreatedAt),
	})
}

// CreatePack パック作成ハンドラー
// @Summary グループパックを作成
// @Description メンバー数分のコードを予約し、招待コードを発行します
// @Tags creator
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePackRequest true "パック作成リクエスト"
// @Success 201 {object} CreatePackResponse "作成成功"
// @Failure 400 {object} ErrorResponse "パックサイズ・決済方法不正"
// @Failure 402 {object} ErrorResponse "残高不足"
// @Failure 403 {object} ErrorResponse "リリースの所有者ではない"
// @Router /creator/packs [post]
func (h *CreatorHandler) CreatePack(c echo.Context) error {
	var reqBody CreatePackRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	expiresAt, err := parseTimePtr(reqBody.ExpiresAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be RFC3339")
	}

	resp, err := h.packService.CreatePack(c.Request().Context(), &packapp.CreatePackRequest{
		ReleaseID:        reqBody.ReleaseID,
		CreatorID:        middleware.UserID(c),
		OwnerID:          reqBody.OwnerID,
		PackType:         reqBody.PackType,
		MaxMembers:       reqBody.MaxMembers,
		PaymentMethod:    reqBody.PaymentMethod,
		PaymentReference: reqBody.PaymentReference,
		ExpiresAt:        expiresAt,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreatePackResponse{
		PackID:           resp.PackID,
		BatchID:          resp.BatchID,
		ReleaseID:        resp.ReleaseID,
		OwnerID:          resp.OwnerID,
		PackType:         resp.PackType,
		MaxMembers:       resp.MaxMembers,
		CurrentMembers:   resp.CurrentMembers,
		InviteCodes:      resp.InviteCodes,
		Quote:            quoteView(resp.Quote),
		PaymentMethod:    resp.PaymentMethod,
		PaymentReference: resp.PaymentReference,
		WalletBalance:    decimalPtr(resp.WalletBalance),
		ExpiresAt:        formatTimePtr(resp.ExpiresAt),
		CreatedAt:        formatTime(resp.CreatedAt),
	})
}
