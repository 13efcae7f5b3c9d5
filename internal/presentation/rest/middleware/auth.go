package middleware

import (
	"net/http"
	"strings"

	authapp "unlock-server/internal/application/auth"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

const (
	// ContextKeyUserID 認証済みユーザーIDのコンテキストキー
	ContextKeyUserID = "user_id"
	// ContextKeyRole 認証済みロールのコンテキストキー
	ContextKeyRole = "role"
)

// AuthMiddleware JWT認証ミドルウェア
func AuthMiddleware(authService *authapp.AuthApplicationService, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				logger.Warn(ctx, "Missing authorization header", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Missing authorization header",
					Code:    "missing_token",
				})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Warn(ctx, "Invalid authorization header format", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid authorization header format",
					Code:    "invalid_token",
				})
			}

			claims, err := authService.ParseToken(parts[1])
			if err != nil {
				logger.Warn(ctx, "Invalid token", map[string]interface{}{
					"error": err.Error(),
				})
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid or expired token",
					Code:    "invalid_token",
				})
			}

			c.Set(ContextKeyUserID, claims.UserID)
			c.Set(ContextKeyRole, claims.Role)
			return next(c)
		}
	}
}

// RequireRole 指定ロールのいずれかを持つ呼び出し元のみ通す
// AuthMiddleware の後に置く
func RequireRole(logger *otelinfra.Logger, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextKeyRole).(string)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			logger.Warn(c.Request().Context(), "Role not permitted", map[string]interface{}{
				"user_id": c.Get(ContextKeyUserID),
				"role":    role,
				"path":    c.Path(),
			})
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "forbidden",
				Message: "Insufficient role for this operation",
				Code:    "forbidden",
			})
		}
	}
}

// UserID 認証済みユーザーIDを返す
func UserID(c echo.Context) string {
	id, _ := c.Get(ContextKeyUserID).(string)
	return id
}

// Role 認証済みロールを返す
func Role(c echo.Context) string {
	role, _ := c.Get(ContextKeyRole).(string)
	return role
}
