package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	otelinfra "unlock-server/internal/infrastructure/observability/otel"
)

// LoggingMiddleware アクセスログミドルウェア
// 5xx は ERROR、4xx は WARN、それ以外は INFO で 1 リクエスト 1 行を出力する
func LoggingMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			fields := map[string]interface{}{
				"method":      req.Method,
				"path":        req.URL.Path,
				"route":       c.Path(),
				"status_code": c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   c.RealIP(),
				"user_agent":  req.UserAgent(),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields["request_id"] = id
			}
			if userID := UserID(c); userID != "" {
				fields["user_id"] = userID
			}

			status := c.Response().Status
			switch {
			case err != nil:
				logger.Error(req.Context(), "HTTP request failed", err, fields)
			case status >= 500:
				logger.Error(req.Context(), "HTTP request failed", nil, fields)
			case status >= 400:
				logger.Warn(req.Context(), "HTTP request rejected", fields)
			default:
				logger.Info(req.Context(), "HTTP request completed", fields)
			}

			return err
		}
	}
}
