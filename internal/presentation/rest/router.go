package rest

import (
	"context"
	"net/http"

	adminapp "unlock-server/internal/application/admin"
	authapp "unlock-server/internal/application/auth"
	generationapp "unlock-server/internal/application/code_generation"
	redemptionapp "unlock-server/internal/application/code_redemption"
	packapp "unlock-server/internal/application/pack_management"
	"unlock-server/internal/infrastructure/config"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
	"unlock-server/internal/presentation/rest/handler"
	restmiddleware "unlock-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Services ルーターが公開するアプリケーションサービス
type Services struct {
	Auth       *authapp.AuthApplicationService
	Redemption *redemptionapp.CodeRedemptionApplicationService
	Generation *generationapp.CodeGenerationApplicationService
	Packs      *packapp.PackApplicationService
	Admin      *adminapp.AdminApplicationService

	// HealthCheck 依存先の疎通確認（nil の場合は常に正常）
	HealthCheck func(ctx context.Context) error
}

// Router REST APIルーター
type Router struct {
	echo *echo.Echo
}

// NewRouter 新しいRouterを作成
func NewRouter(cfg *config.Config, logger *otelinfra.Logger, metrics *otelinfra.Metrics, services Services) (*Router, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Echoのデフォルトエラーハンドラーを無効化（カスタムエラーハンドラーを使用）
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		// ルート未登録などミドルウェアより前で起きたエラーのみここに来る
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}
		_ = c.JSON(status, restmiddleware.ErrorResponse{
			Error:   http.StatusText(status),
			Message: err.Error(),
		})
	}

	setupMiddleware(e, logger, metrics)

	setupRoutes(e, cfg, logger, services)

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return &Router{echo: e}, nil
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{echo.GET, echo.POST, echo.PUT, echo.OPTIONS},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders: []string{echo.HeaderXRequestID, "Retry-After"},
	}))

	e.Use(middleware.RequestID())
	e.Use(restmiddleware.SecurityHeadersMiddleware())
	e.Use(restmiddleware.TracingMiddleware())
	e.Use(restmiddleware.MetricsMiddleware(metrics))
	e.Use(restmiddleware.LoggingMiddleware(logger))

	// ドメインエラーをレスポンスに変換する（ログ・メトリクスはステータスコードを見る）
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, services Services) {
	authHandler := handler.NewAuthHandler(services.Auth)
	codeHandler := handler.NewCodeHandler(services.Redemption)
	creatorHandler := handler.NewCreatorHandler(services.Generation, services.Packs)
	packHandler := handler.NewPackHandler(services.Packs)
	adminHandler := handler.NewAdminHandler(services.Admin)

	api := e.Group("/api/v1")

	// 開発環境のみトークン発行を公開する
	if cfg.Environment == "development" {
		api.POST("/auth/token", authHandler.GenerateToken)
	}

	// 検証は匿名でも可能（レート制限はIP単位）
	api.POST("/codes/validate", codeHandler.ValidateCode)

	authed := api.Group("", restmiddleware.AuthMiddleware(services.Auth, logger))

	authed.POST("/codes/redeem", codeHandler.RedeemCode)

	packs := authed.Group("/packs")
	packs.GET("/:pack_id", packHandler.GetPackStatus)
	packs.POST("/:pack_id/join", packHandler.JoinPack)
	packs.POST("/:pack_id/redeem", packHandler.RedeemPack)

	creator := authed.Group("/creator", restmiddleware.RequireRole(logger, authapp.RoleCreator, authapp.RoleAdmin))
	creator.POST("/codes/quote", creatorHandler.Quote)
	creator.POST("/codes/generate", creatorHandler.GenerateCodes)
	creator.POST("/packs", creatorHandler.CreatePack)

	admin := authed.Group("/admin", restmiddleware.RequireRole(logger, authapp.RoleAdmin))
	admin.POST("/codes/bulk", adminHandler.BulkUpdateCodes)
	admin.GET("/codes/:code/attempts", adminHandler.ListAttempts)
	admin.GET("/batches/:batch_id/codes", adminHandler.ListBatchCodes)
	admin.GET("/security/config", adminHandler.GetSecurityConfig)
	admin.PUT("/security/config", adminHandler.UpdateSecurityConfig)
	admin.POST("/security/unblock-ip", adminHandler.UnblockIP)
	admin.GET("/fraud-signals", adminHandler.ListFraudSignals)
	admin.POST("/fraud-signals/:signal_id/resolve", adminHandler.ResolveFraudSignal)

	// ヘルスチェックエンドポイント（認証不要）
	e.GET("/health", func(c echo.Context) error {
		if services.HealthCheck != nil {
			if err := services.HealthCheck(c.Request().Context()); err != nil {
				logger.Error(c.Request().Context(), "Health check failed", err, nil)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler テストや組み込み用にhttp.Handlerとして返す
func (r *Router) Handler() http.Handler {
	return r.echo
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	return r.echo.Start(address)
}

// Shutdown 処理中のリクエストを待ってサーバーを停止する
func (r *Router) Shutdown(ctx context.Context) error {
	return r.echo.Shutdown(ctx)
}
