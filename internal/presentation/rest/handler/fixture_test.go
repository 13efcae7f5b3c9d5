package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	adminapp "unlock-server/internal/application/admin"
	"unlock-server/internal/application/audit"
	authapp "unlock-server/internal/application/auth"
	generationapp "unlock-server/internal/application/code_generation"
	redemptionapp "unlock-server/internal/application/code_redemption"
	packapp "unlock-server/internal/application/pack_management"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/service"
	"unlock-server/internal/domain/unlock_code"
	"unlock-server/internal/domain/wallet"
	"unlock-server/internal/infrastructure/cache"
	"unlock-server/internal/infrastructure/config"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
	"unlock-server/internal/infrastructure/persistence/memory"
	restmiddleware "unlock-server/internal/presentation/rest/middleware"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// testApp メモリストア上に組み立てた実サービスとハンドラー
type testApp struct {
	store   *memory.Store
	auth    *AuthHandler
	codes   *CodeHandler
	creator *CreatorHandler
	packs   *PackHandler
	admin   *AdminHandler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	store := memory.NewStore().WithClock(clock)
	require.NoError(t, store.Releases().Save(ctx, release.NewRelease("rel-1", "creator-1", "Night Drive", "The Tapes", "https://cdn.example.com/rel-1.jpg", testNow)))
	require.NoError(t, store.Wallets().Create(ctx, wallet.MustNewWallet("creator-1", "USD", decimal.NewFromInt(1000), 0)))

	logger := otelinfra.NewNopLogger()
	metrics, err := otelinfra.NewMetricsWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	tm := memory.NewTransactionManager(store)
	prices, err := config.LoadPricing(config.PricingConfig{})
	require.NoError(t, err)

	generator := service.NewCodeGenerator(store.UnlockCodes(), nil)
	generation := generationapp.NewCodeGenerationApplicationService(
		store.UnlockCodes(), store.Releases(), generator,
		service.NewPaymentSettler(store.Payments(), store.Wallets()),
		prices, tm, logger, metrics,
		generationapp.Settings{MaxQuantity: 10000, Retries: 3},
	).WithClock(clock)

	provider := security.NewCachedConfigurationProvider(store.SecurityConfiguration(), 0)
	blockList := cache.NewMemoryBlockList()
	guard := service.NewSecurityGuard(provider, cache.NewMemoryRateLimitStore(), blockList,
		store.Attempts(), store.FraudSignals(), store.UnlockCodes()).WithClock(clock)
	coordinator := service.NewGroupPackCoordinator(store.GroupPacks(), tm).WithClock(clock)
	auditLog := audit.NewLogger(store.Attempts(), store.FraudSignals(), logger, metrics).WithClock(clock)
	redemption := redemptionapp.NewCodeRedemptionApplicationService(
		store.UnlockCodes(), store.Releases(), store.Access(), guard, coordinator, auditLog, tm, logger, metrics, 5*time.Second,
	).WithClock(clock)
	packs := packapp.NewPackApplicationService(
		store.GroupPacks(), store.UnlockCodes(), coordinator, generator, generation, redemption, logger, metrics, 8,
	).WithClock(clock)
	admin := adminapp.NewAdminApplicationService(
		store.UnlockCodes(), store.SecurityConfiguration(), provider, store.FraudSignals(), store.Attempts(), blockList, tm, logger,
	).WithClock(clock)
	auth := authapp.NewAuthApplicationService(&config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "unlock-server"}, logger)

	return &testApp{
		store:   store,
		auth:    NewAuthHandler(auth),
		codes:   NewCodeHandler(redemption),
		creator: NewCreatorHandler(generation, packs),
		packs:   NewPackHandler(packs),
		admin:   NewAdminHandler(admin),
	}
}

// call ハンドラーをエラーハンドラー付きで呼び出す
// c.SetParamNames は params の偶数番目を名前、奇数番目を値として扱う
func call(t *testing.T, h echo.HandlerFunc, method, target string, body interface{}, userID string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	e := echo.New()
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if userID != "" {
		c.Set(restmiddleware.ContextKeyUserID, userID)
	}

	handler := restmiddleware.ErrorHandlerMiddleware(otelinfra.NewNopLogger())(h)
	require.NoError(t, handler(c))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// generate 指定数のコードをウォレット払いで生成する
func (a *testApp) generate(t *testing.T, quantity int) GenerateCodesResponse {
	t.Helper()
	rec := call(t, a.creator.GenerateCodes, http.MethodPost, "/api/v1/creator/codes/generate", GenerateCodesRequest{
		ReleaseID:     "rel-1",
		Quantity:      quantity,
		PaymentMethod: "wallet",
	}, "creator-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[GenerateCodesResponse](t, rec)
}

// unknownCode 形式としては正しいが発行されていないコード
func unknownCode(t *testing.T) string {
	t.Helper()
	body := "ZZZZZZZZZZZZ"
	sum, err := unlock_code.Checksum(body)
	require.NoError(t, err)
	return unlock_code.FormatCode(body + string(sum))
}
