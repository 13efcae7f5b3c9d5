package middleware

import (
	"time"

	otelinfra "unlock-server/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware メトリクス記録ミドルウェア
// ErrorHandlerMiddleware より外側に置くとエラーは既にレスポンスへ変換されているため
// エラー数はステータスコードから判定する
func MetricsMiddleware(metrics *otelinfra.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			method := c.Request().Method

			err := next(c)

			// ルート未登録のリクエストはパスの種類が無制限になるため丸める
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(ctx, method, route)
			metrics.RecordResponseTime(ctx, method, route, time.Since(start).Seconds())

			status := c.Response().Status
			if err != nil && status < 400 {
				status = 500
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			switch {
			case status >= 500:
				metrics.RecordError(ctx, "server_error")
			case status >= 400:
				metrics.RecordError(ctx, "client_error")
			}

			return err
		}
	}
}
