package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	adminapp "unlock-server/internal/application/admin"
	"unlock-server/internal/application/audit"
	authapp "unlock-server/internal/application/auth"
	generationapp "unlock-server/internal/application/code_generation"
	redemptionapp "unlock-server/internal/application/code_redemption"
	packapp "unlock-server/internal/application/pack_management"
	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/service"
	"unlock-server/internal/domain/transaction"
	"unlock-server/internal/domain/unlock_code"
	"unlock-server/internal/domain/wallet"
	"unlock-server/internal/infrastructure/cache"
	"unlock-server/internal/infrastructure/config"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
	"unlock-server/internal/infrastructure/persistence/memory"
	"unlock-server/internal/infrastructure/persistence/mysql"
	grpcserver "unlock-server/internal/presentation/grpc"
	"unlock-server/internal/presentation/rest"
)

// repositories 永続化層の実装（mysql / memory）をまとめたもの
type repositories struct {
	codes      unlock_code.UnlockCodeRepository
	packs      group_pack.GroupPackRepository
	configs    security.ConfigurationRepository
	signals    security.FraudSignalRepository
	attempts   security.AttemptLogRepository
	payments   payment.PaymentRepository
	wallets    wallet.WalletRepository
	releases   release.ReleaseRepository
	access     release.AccessRepository
	txManager  transaction.TransactionManager
	close      func() error
	healthFunc func(ctx context.Context) error
}

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("unlock-server")
	logger := otelinfra.NewLogger(tracer, otelinfra.WithServiceName(cfg.OpenTelemetry.ServiceName))
	metrics, err := otelinfra.NewMetrics("unlock-server")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := repos.close(); err != nil {
			log.Printf("Failed to close storage: %v", err)
		}
	}()
	logger.Info(ctx, "Storage initialized", map[string]interface{}{
		"driver": cfg.Database.Driver,
	})

	// レート制限カウンタとIPブロックリスト（Redis が無効ならプロセス内）
	var (
		rateLimits security.RateLimitStore = cache.NewMemoryRateLimitStore()
		blockList  security.BlockList      = cache.NewMemoryBlockList()
	)
	if cfg.Redis.Enabled {
		client, err := cache.Connect(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		rateLimits = cache.NewRedisRateLimitStore(client, cfg.Redis.KeyPrefix)
		blockList = cache.NewRedisBlockList(client, cfg.Redis.KeyPrefix)
		logger.Info(ctx, "Redis rate limit store enabled", map[string]interface{}{
			"address": cfg.Redis.Address(),
		})
	}

	prices, err := config.LoadPricing(cfg.Pricing)
	if err != nil {
		log.Fatalf("Failed to load pricing: %v", err)
	}

	// ドメインサービスの初期化
	generator := service.NewCodeGenerator(repos.codes, nil)
	settler := service.NewPaymentSettler(repos.payments, repos.wallets)
	configProvider := security.NewCachedConfigurationProvider(repos.configs, cfg.Security.ConfigCacheTTL)
	guard := service.NewSecurityGuard(configProvider, rateLimits, blockList, repos.attempts, repos.signals, repos.codes)
	coordinator := service.NewGroupPackCoordinator(repos.packs, repos.txManager)
	auditLog := audit.NewLogger(repos.attempts, repos.signals, logger, metrics)

	// アプリケーションサービスの初期化
	authAppService := authapp.NewAuthApplicationService(&cfg.JWT, logger)

	generationAppService := generationapp.NewCodeGenerationApplicationService(
		repos.codes,
		repos.releases,
		generator,
		settler,
		prices,
		repos.txManager,
		logger,
		metrics,
		generationapp.Settings{
			MaxQuantity: cfg.Redemption.MaxBatchQuantity,
			Retries:     cfg.Redemption.GenerationRetries,
			CodeTTL:     cfg.Redemption.CodeTTL,
		},
	)

	redemptionAppService := redemptionapp.NewCodeRedemptionApplicationService(
		repos.codes,
		repos.releases,
		repos.access,
		guard,
		coordinator,
		auditLog,
		repos.txManager,
		logger,
		metrics,
		cfg.Redemption.Timeout,
	)

	packAppService := packapp.NewPackApplicationService(
		repos.packs,
		repos.codes,
		coordinator,
		generator,
		generationAppService,
		redemptionAppService,
		logger,
		metrics,
		cfg.Redemption.MaxPackMembers,
	)

	adminAppService := adminapp.NewAdminApplicationService(
		repos.codes,
		repos.configs,
		configProvider,
		repos.signals,
		repos.attempts,
		blockList,
		repos.txManager,
		logger,
	)

	// REST APIルーターの初期化
	router, err := rest.NewRouter(cfg, logger, metrics, rest.Services{
		Auth:        authAppService,
		Redemption:  redemptionAppService,
		Generation:  generationAppService,
		Packs:       packAppService,
		Admin:       adminAppService,
		HealthCheck: repos.healthFunc,
	})
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// gRPCサーバーの初期化
	grpcSrv, err := grpcserver.NewServer(
		cfg,
		logger,
		metrics,
		authAppService,
		redemptionAppService,
		packAppService,
	)
	if err != nil {
		log.Fatalf("Failed to create gRPC server: %v", err)
	}

	// サーバーアドレスの設定
	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// REST APIサーバーを別ゴルーチンで起動
	go func() {
		logger.Info(ctx, "REST API server starting", map[string]interface{}{
			"address":     address,
			"environment": cfg.Environment,
		})
		if err := router.Start(address); err != nil {
			logger.Error(ctx, "REST API server stopped", err, nil)
		}
	}()

	// gRPCサーバーを別ゴルーチンで起動
	go func() {
		if err := grpcSrv.Start(); err != nil {
			logger.Error(ctx, "gRPC server error", err, nil)
		}
	}()

	// シグナルを待機
	<-quit
	logger.Info(ctx, "Shutting down servers", nil)

	// グレースフルシャットダウン
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error shutting down REST API server", err, nil)
	}

	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "Error shutting down gRPC server", err, nil)
	}

	logger.Info(ctx, "Servers stopped", nil)
}

// seedDevelopment 開発用のリリースとクリエイターのウォレットを作成
func seedDevelopment(ctx context.Context, store *memory.Store, currency string) error {
	if err := store.Releases().Save(ctx, release.NewRelease("demo-release", "demo-creator", "Demo Release", "Demo Artist", "", time.Now())); err != nil {
		return err
	}
	w, err := wallet.NewWallet("demo-creator", currency, decimal.NewFromInt(1000), 0)
	if err != nil {
		return err
	}
	return store.Wallets().Create(ctx, w)
}

// openRepositories 設定されたドライバーでリポジトリを初期化
func openRepositories(ctx context.Context, appCfg *config.Config) (*repositories, error) {
	cfg := &appCfg.Database
	switch cfg.Driver {
	case "memory":
		store := memory.NewStore()
		// 開発環境ではデモデータを入れる
		if appCfg.Environment == "development" {
			if err := seedDevelopment(ctx, store, appCfg.Pricing.Currency); err != nil {
				return nil, fmt.Errorf("failed to seed development data: %w", err)
			}
		}
		return &repositories{
			codes:     store.UnlockCodes(),
			packs:     store.GroupPacks(),
			configs:   store.SecurityConfiguration(),
			signals:   store.FraudSignals(),
			attempts:  store.Attempts(),
			payments:  store.Payments(),
			wallets:   store.Wallets(),
			releases:  store.Releases(),
			access:    store.Access(),
			txManager: memory.NewTransactionManager(store),
			close:     func() error { return nil },
		}, nil
	case "mysql":
		db, err := mysql.NewDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.AutoMigrate {
			if err := mysql.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return &repositories{
			codes:      mysql.NewUnlockCodeRepository(db),
			packs:      mysql.NewGroupPackRepository(db),
			configs:    mysql.NewSecurityConfigurationRepository(db),
			signals:    mysql.NewFraudSignalRepository(db),
			attempts:   mysql.NewAttemptLogRepository(db),
			payments:   mysql.NewPaymentRepository(db),
			wallets:    mysql.NewWalletRepository(db),
			releases:   mysql.NewReleaseRepository(db),
			access:     mysql.NewAccessRepository(db),
			txManager:  mysql.NewTransactionManager(db),
			close:      db.Close,
			healthFunc: db.HealthCheck,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
