package handler

import (
	"net/http"
	"strconv"

	adminapp "unlock-server/internal/application/admin"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
)

// AdminHandler 管理者向けハンドラー
type AdminHandler struct {
	adminService *adminapp.AdminApplicationService
}

// NewAdminHandler 新しいAdminHandlerを作成
func NewAdminHandler(adminService *adminapp.AdminApplicationService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// BulkUpdateCodes コード一括操作ハンドラー
// @Summary コードを一括で失効・無効化・未使用化
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkUpdateRequest true "一括操作リクエスト"
// @Success 200 {object} BulkUpdateResponse "操作結果"
// @Failure 400 {object} ErrorResponse "操作・件数不正"
// @Failure 403 {object} ErrorResponse "管理者ではない"
// @Router /admin/codes/bulk [post]
func (h *AdminHandler) BulkUpdateCodes(c echo.Context) error {
	var reqBody BulkUpdateRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.adminService.BulkUpdateStatus(c.Request().Context(), &adminapp.BulkUpdateRequest{
		Action:          reqBody.Action,
		CodeIDs:         reqBody.CodeIDs,
		IncludeRedeemed: reqBody.IncludeRedeemed,
		AdminID:         middleware.UserID(c),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BulkUpdateResponse{
		Action:    resp.Action,
		Requested: resp.Requested,
		Updated:   resp.Updated,
	})
}

// GetSecurityConfig セキュリティ設定取得ハンドラー
// @Summary セキュリティ設定を取得
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SecurityConfigBody "現在の設定"
// @Router /admin/security/config [get]
func (h *AdminHandler) GetSecurityConfig(c echo.Context) error {
	cfg, err := h.adminService.GetSecurityConfig(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, securityConfigBody(cfg))
}

// UpdateSecurityConfig セキュリティ設定更新ハンドラー
// @Summary セキュリティ設定を更新
// @Description 設定全体を置き換えます。キャッシュは即時に無効化されます
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SecurityConfigBody true "新しい設定"
// @Success 200 {object} SecurityConfigBody "更新後の設定"
// @Failure 400 {object} ErrorResponse "設定値不正"
// @Router /admin/security/config [put]
func (h *AdminHandler) UpdateSecurityConfig(c echo.Context) error {
	var body SecurityConfigBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cfg, err := h.adminService.UpdateSecurityConfig(c.Request().Context(), security.Configuration{
		DeviceLockingEnabled:       body.DeviceLockingEnabled,
		IPLockingEnabled:           body.IPLockingEnabled,
		AllowDeviceChange:          body.AllowDeviceChange,
		DeviceChangeLimit:          body.DeviceChangeLimit,
		RateLimitingEnabled:        body.RateLimitingEnabled,
		MaxRedemptionAttempts:      body.MaxRedemptionAttempts,
		RateLimitWindowHours:       body.RateLimitWindowHours,
		FraudDetectionEnabled:      body.FraudDetectionEnabled,
		SuspiciousAttemptThreshold: body.SuspiciousAttemptThreshold,
		BlockSuspiciousIPs:         body.BlockSuspiciousIPs,
		AutoBlockDurationHours:     body.AutoBlockDurationHours,
	}, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, securityConfigBody(cfg))
}

// ListFraudSignals 不正シグナル一覧ハンドラー
// @Summary 不正シグナルを一覧
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param resolved query bool false "解決済みで絞り込み"
// @Param reason query string false "理由で絞り込み"
// @Param user_id query string false "ユーザーで絞り込み"
// @Param limit query int false "取得件数（最大200）"
// @Param offset query int false "オフセット"
// @Success 200 {object} ListFraudSignalsResponse "不正シグナル一覧"
// @Failure 400 {object} ErrorResponse "絞り込み条件不正"
// @Router /admin/fraud-signals [get]
func (h *AdminHandler) ListFraudSignals(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	req := &adminapp.ListSignalsRequest{
		Reason: c.QueryParam("reason"),
		UserID: c.QueryParam("user_id"),
		Limit:  limit,
		Offset: offset,
	}
	if s := c.QueryParam("resolved"); s != "" {
		resolved, err := strconv.ParseBool(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "resolved must be a boolean")
		}
		req.Resolved = &resolved
	}

	resp, err := h.adminService.ListFraudSignals(c.Request().Context(), req)
	if err != nil {
		return err
	}

	signals := make([]FraudSignalView, 0, len(resp.Signals))
	for _, s := range resp.Signals {
		signals = append(signals, fraudSignalView(s))
	}
	return c.JSON(http.StatusOK, ListFraudSignalsResponse{
		Signals: signals,
		Total:   resp.Total,
		Limit:   resp.Limit,
		Offset:  resp.Offset,
	})
}

// ResolveFraudSignal 不正シグナル解決ハンドラー
// @Summary 不正シグナルを解決済みにする
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param signal_id path string true "シグナルID"
// @Success 200 {object} FraudSignalView "解決後のシグナル"
// @Failure 404 {object} ErrorResponse "シグナルが存在しない"
// @Failure 409 {object} ErrorResponse "解決済み"
// @Router /admin/fraud-signals/{signal_id}/resolve [post]
func (h *AdminHandler) ResolveFraudSignal(c echo.Context) error {
	info, err := h.adminService.ResolveFraudSignal(c.Request().Context(), c.Param("signal_id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fraudSignalView(*info))
}

// UnblockIP IPブロック解除ハンドラー
// @Summary IPアドレスのブロックを解除
// @Tags admin
// @Accept json
// @Security BearerAuth
// @Param request body UnblockIPRequest true "IPブロック解除リクエスト"
// @Success 204 "解除成功"
// @Failure 400 {object} ErrorResponse "IPアドレス不正"
// @Router /admin/security/unblock-ip [post]
func (h *AdminHandler) UnblockIP(c echo.Context) error {
	var reqBody UnblockIPRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.adminService.UnblockIP(c.Request().Context(), reqBody.IPAddress, middleware.UserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListAttempts 引き換え試行ログハンドラー
// @Summary コードへの引き換え試行を新しい順に一覧
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param code path string true "コード（ハイフン可）"
// @Param limit query int false "取得件数（最大200）"
// @Success 200 {object} ListAttemptsResponse "試行ログ"
// @Failure 400 {object} ErrorResponse "コード形式不正"
// @Router /admin/codes/{code}/attempts [get]
func (h *AdminHandler) ListAttempts(c echo.Context) error {
	limit, _, err := pagination(c)
	if err != nil {
		return err
	}

	attempts, err := h.adminService.AttemptLogs(c.Request().Context(), c.Param("code"), limit)
	if err != nil {
		return err
	}

	views := make([]AttemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, AttemptView{
			ID:                a.ID,
			CodeID:            a.CodeID,
			SubmittedCode:     a.SubmittedCode,
			UserID:            a.UserID,
			IPAddress:         a.IPAddress,
			UserAgent:         a.UserAgent,
			DeviceFingerprint: a.DeviceFingerprint,
			Success:           a.Success,
			FailureReason:     a.FailureReason,
			AttemptedAt:       formatTime(a.AttemptedAt),
		})
	}
	return c.JSON(http.StatusOK, ListAttemptsResponse{Attempts: views})
}

// ListBatchCodes バッチ内コード一覧ハンドラー
// @Summary バッチのコードを一覧
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param batch_id path string true "バッチID"
// @Param limit query int false "取得件数（最大200）"
// @Param offset query int false "オフセット"
// @Success 200 {object} BatchCodesResponse "バッチとコード"
// @Failure 404 {object} ErrorResponse "バッチが存在しない"
// @Router /admin/batches/{batch_id}/codes [get]
func (h *AdminHandler) ListBatchCodes(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}

	resp, err := h.adminService.BatchCodes(c.Request().Context(), c.Param("batch_id"), limit, offset)
	if err != nil {
		return err
	}

	codes := make([]AdminCodeView, 0, len(resp.Codes))
	for _, code := range resp.Codes {
		codes = append(codes, AdminCodeView{
			ID:             code.ID,
			Code:           code.Code,
			Status:         code.Status,
			RedeemedBy:     code.RedeemedBy,
			RedeemedAt:     formatTimePtr(code.RedeemedAt),
			DeviceLockedTo: code.DeviceLockedTo,
			IPLockedTo:     code.IPLockedTo,
			RevokedReason:  code.RevokedReason,
			GroupPackID:    code.GroupPackID,
			ExpiresAt:      formatTimePtr(code.ExpiresAt),
		})
	}
	b := resp.Batch
	return c.JSON(http.StatusOK, BatchCodesResponse{
		Batch: BatchView{
			ID:               b.ID,
			ReleaseID:        b.ReleaseID,
			CreatorID:        b.CreatorID,
			Quantity:         b.Quantity,
			PricePerCode:     b.PricePerCode.String(),
			TotalCost:        b.TotalCost.String(),
			Currency:         b.Currency,
			PaymentReference: b.PaymentReference,
			ExpiresAt:        formatTimePtr(b.ExpiresAt),
			CreatedAt:        formatTime(b.CreatedAt),
		},
		Codes:  codes,
		Total:  resp.Total,
		Limit:  resp.Limit,
		Offset: resp.Offset,
	})
}

// pagination limit/offset クエリを読む（未指定は 0 のままサービス側の既定値に任せる）
func pagination(c echo.Context) (limit, offset int, err error) {
	if s := c.QueryParam("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}
	if s := c.QueryParam("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func securityConfigBody(cfg *security.Configuration) SecurityConfigBody {
	body := SecurityConfigBody{
		DeviceLockingEnabled:       cfg.DeviceLockingEnabled,
		IPLockingEnabled:           cfg.IPLockingEnabled,
		AllowDeviceChange:          cfg.AllowDeviceChange,
		DeviceChangeLimit:          cfg.DeviceChangeLimit,
		RateLimitingEnabled:        cfg.RateLimitingEnabled,
		MaxRedemptionAttempts:      cfg.MaxRedemptionAttempts,
		RateLimitWindowHours:       cfg.RateLimitWindowHours,
		FraudDetectionEnabled:      cfg.FraudDetectionEnabled,
		SuspiciousAttemptThreshold: cfg.SuspiciousAttemptThreshold,
		BlockSuspiciousIPs:         cfg.BlockSuspiciousIPs,
		AutoBlockDurationHours:     cfg.AutoBlockDurationHours,
		UpdatedBy:                  cfg.UpdatedBy,
	}
	if !cfg.UpdatedAt.IsZero() {
		body.UpdatedAt = formatTimePtr(&cfg.UpdatedAt)
	}
	return body
}

func fraudSignalView(s adminapp.FraudSignalInfo) FraudSignalView {
	return FraudSignalView{
		ID:         s.ID,
		CodeID:     s.CodeID,
		UserID:     s.UserID,
		IPAddress:  s.IPAddress,
		Reason:     s.Reason,
		Score:      s.Score,
		Details:    s.Details,
		Resolved:   s.Resolved,
		ResolvedBy: s.ResolvedBy,
		ResolvedAt: formatTimePtr(s.ResolvedAt),
		FlaggedAt:  formatTime(s.FlaggedAt),
	}
}
