package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	adminapp "unlock-server/internal/application/admin"
	authapp "unlock-server/internal/application/auth"
	generationapp "unlock-server/internal/application/code_generation"
	redemptionapp "unlock-server/internal/application/code_redemption"
	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"
	"unlock-server/internal/domain/wallet"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// errorMapping ドメインエラーとHTTPステータス・エラーコードの対応
type errorMapping struct {
	target error
	status int
	code   string
}

// 先に一致したものを使う
var errorMappings = []errorMapping{
	{redemptionapp.ErrInvalidOrUsedCode, http.StatusNotFound, "invalid_or_used_code"},
	{unlock_code.ErrMalformedCode, http.StatusBadRequest, "malformed_code"},
	{unlock_code.ErrCodeNotFound, http.StatusNotFound, "code_not_found"},
	{unlock_code.ErrCodeAlreadyRedeemed, http.StatusConflict, "code_already_redeemed"},
	{unlock_code.ErrCodeRevoked, http.StatusGone, "code_revoked"},
	{unlock_code.ErrCodeExpired, http.StatusGone, "code_expired"},
	{unlock_code.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{unlock_code.ErrGenerationFailed, http.StatusServiceUnavailable, "generation_failed"},
	{unlock_code.ErrBatchNotFound, http.StatusNotFound, "batch_not_found"},
	{unlock_code.ErrInvalidBulkAction, http.StatusBadRequest, "invalid_bulk_action"},
	{security.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{security.ErrDeviceMismatch, http.StatusForbidden, "device_mismatch"},
	{security.ErrIPMismatch, http.StatusForbidden, "ip_mismatch"},
	{security.ErrFraudBlocked, http.StatusForbidden, "fraud_blocked"},
	{security.ErrInvalidConfiguration, http.StatusBadRequest, "invalid_configuration"},
	{security.ErrFraudSignalNotFound, http.StatusNotFound, "fraud_signal_not_found"},
	{security.ErrFraudSignalResolved, http.StatusConflict, "fraud_signal_resolved"},
	{group_pack.ErrPackNotFound, http.StatusNotFound, "pack_not_found"},
	{group_pack.ErrPackFull, http.StatusConflict, "pack_full"},
	{group_pack.ErrPackInactiveOrExpired, http.StatusGone, "pack_inactive_or_expired"},
	{group_pack.ErrPackNotYetComplete, http.StatusConflict, "pack_not_complete"},
	{group_pack.ErrAlreadyAMember, http.StatusConflict, "already_a_member"},
	{group_pack.ErrNotAMember, http.StatusForbidden, "not_a_member"},
	{group_pack.ErrInviteCodeNotFound, http.StatusNotFound, "invite_code_not_found"},
	{group_pack.ErrInviteCodeClaimed, http.StatusConflict, "invite_code_claimed"},
	{group_pack.ErrInvalidPackSize, http.StatusBadRequest, "invalid_pack_size"},
	{payment.ErrPaymentNotFound, http.StatusNotFound, "payment_not_found"},
	{payment.ErrPaymentNotConfirmed, http.StatusPaymentRequired, "payment_not_confirmed"},
	{payment.ErrPaymentAlreadyConsumed, http.StatusConflict, "payment_already_consumed"},
	{payment.ErrPaymentAmountTooLow, http.StatusPaymentRequired, "payment_amount_too_low"},
	{payment.ErrUnsupportedPaymentMethod, http.StatusBadRequest, "unsupported_payment_method"},
	{wallet.ErrInsufficientWalletBalance, http.StatusPaymentRequired, "insufficient_wallet_balance"},
	{release.ErrReleaseNotFound, http.StatusNotFound, "release_not_found"},
	{release.ErrReleaseNotOwned, http.StatusForbidden, "release_not_owned"},
	{generationapp.ErrExpiryInPast, http.StatusBadRequest, "expiry_in_past"},
	{adminapp.ErrNoCodeIDs, http.StatusBadRequest, "no_code_ids"},
	{adminapp.ErrTooManyCodeIDs, http.StatusBadRequest, "too_many_code_ids"},
	{adminapp.ErrInvalidIPAddress, http.StatusBadRequest, "invalid_ip_address"},
	{adminapp.ErrInvalidFilter, http.StatusBadRequest, "invalid_filter"},
	{authapp.ErrUserIDRequired, http.StatusBadRequest, "user_id_required"},
	{authapp.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		logger.Warn(ctx, "Request rejected", map[string]interface{}{
			"code":  m.code,
			"error": err.Error(),
			"path":  c.Request().URL.Path,
		})
		var rateErr *security.RateLimitedError
		if errors.As(err, &rateErr) {
			seconds := int(rateErr.RetryAfter(time.Now()).Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		return c.JSON(m.status, ErrorResponse{
			Error:   statusSlug(m.status),
			Message: err.Error(),
			Code:    m.code,
		})
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message, ok := httpErr.Message.(string)
		if !ok {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   statusSlug(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}

// statusSlug "Too Many Requests" → "too_many_requests"
func statusSlug(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}
