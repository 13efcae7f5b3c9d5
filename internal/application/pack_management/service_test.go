package pack_management

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"unlock-server/internal/application/audit"
	"unlock-server/internal/application/code_generation"
	"unlock-server/internal/application/code_redemption"
	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/service"
	"unlock-server/internal/domain/unlock_code"
	"unlock-server/internal/domain/wallet"
	"unlock-server/internal/infrastructure/cache"
	"unlock-server/internal/infrastructure/config"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"
	"unlock-server/internal/infrastructure/persistence/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	svc   *PackApplicationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	store := memory.NewStore().WithClock(clock)
	require.NoError(t, store.Releases().Save(ctx, release.NewRelease("rel-1", "creator-1", "Night Drive", "The Tapes", "", testNow)))
	require.NoError(t, store.Releases().Save(ctx, release.NewRelease("rel-2", "creator-2", "Day Trip", "The Tapes", "", testNow)))
	require.NoError(t, store.Wallets().Create(ctx, wallet.MustNewWallet("creator-1", "USD", decimal.NewFromInt(1000), 0)))

	metrics, err := otelinfra.NewMetricsWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	logger := otelinfra.NewNopLogger()
	tm := memory.NewTransactionManager(store)
	prices, err := config.LoadPricing(config.PricingConfig{})
	require.NoError(t, err)

	generator := service.NewCodeGenerator(store.UnlockCodes(), nil)
	codeGen := code_generation.NewCodeGenerationApplicationService(
		store.UnlockCodes(), store.Releases(), generator,
		service.NewPaymentSettler(store.Payments(), store.Wallets()),
		prices, tm, logger, metrics,
		code_generation.Settings{MaxQuantity: 10000, Retries: 3},
	).WithClock(clock)

	provider := security.NewCachedConfigurationProvider(store.SecurityConfiguration(), 0)
	guard := service.NewSecurityGuard(provider, cache.NewMemoryRateLimitStore(), cache.NewMemoryBlockList(),
		store.Attempts(), store.FraudSignals(), store.UnlockCodes()).WithClock(clock)
	coordinator := service.NewGroupPackCoordinator(store.GroupPacks(), tm).WithClock(clock)
	auditLog := audit.NewLogger(store.Attempts(), store.FraudSignals(), logger, metrics).WithClock(clock)
	redemption := code_redemption.NewCodeRedemptionApplicationService(
		store.UnlockCodes(), store.Releases(), store.Access(), guard, coordinator, auditLog, tm, logger, metrics, 5*time.Second,
	).WithClock(clock)

	svc := NewPackApplicationService(
		store.GroupPacks(), store.UnlockCodes(), coordinator, generator, codeGen, redemption, logger, metrics, 8,
	).WithClock(clock)
	return &fixture{store: store, svc: svc}
}

func createReq(members int) *CreatePackRequest {
	return &CreatePackRequest{
		ReleaseID:     "rel-1",
		CreatorID:     "creator-1",
		OwnerID:       "owner-1",
		PackType:      "friends",
		MaxMembers:    members,
		PaymentMethod: "wallet",
	}
}

func memberRedeem(packID, userID string) *RedeemMemberRequest {
	return &RedeemMemberRequest{
		PackID:            packID,
		UserID:            userID,
		IPAddress:         "10.0.0.1",
		UserAgent:         "test-agent",
		DeviceFingerprint: "device-" + userID,
	}
}

func TestPackApplicationService_FourMemberPack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePack(ctx, createReq(4))
	require.NoError(t, err)
	assert.Equal(t, "owner-1", created.OwnerID)
	assert.Equal(t, 1, created.CurrentMembers)
	require.Len(t, created.InviteCodes, 3)
	assert.True(t, created.Quote.Subtotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, created.Quote.TotalCost.Equal(decimal.NewFromInt(180)))
	require.NotNil(t, created.WalletBalance)
	assert.True(t, created.WalletBalance.Equal(decimal.NewFromInt(820)))

	codes, total, err := f.store.UnlockCodes().FindByBatchID(ctx, created.BatchID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	for _, c := range codes {
		assert.Equal(t, created.PackID, c.GroupPackID())
		assert.NotEmpty(t, c.GroupMemberID())
	}

	status, err := f.svc.Status(ctx, created.PackID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 3, status.RemainingSlots)
	assert.False(t, status.IsComplete)
	require.NotEmpty(t, status.Notifications)
	assert.Equal(t, string(group_pack.NotificationWaitingForMembers), status.Notifications[0].Type)

	_, err = f.svc.RedeemMember(ctx, memberRedeem(created.PackID, "owner-1"))
	assert.ErrorIs(t, err, group_pack.ErrPackNotYetComplete)

	for i, invite := range created.InviteCodes {
		joined, err := f.svc.JoinPack(ctx, &JoinPackRequest{PackID: created.PackID, InviteCode: invite, UserID: fmt.Sprintf("member-%d", i+1)})
		require.NoError(t, err)
		assert.Equal(t, i+2, joined.CurrentMembers)
		assert.Equal(t, i == 2, joined.IsComplete)
		assert.True(t, joined.JoinedAt.Equal(testNow))
	}

	_, err = f.svc.JoinPack(ctx, &JoinPackRequest{PackID: created.PackID, InviteCode: created.InviteCodes[0], UserID: "late-user"})
	assert.ErrorIs(t, err, group_pack.ErrPackFull)

	_, err = f.svc.RedeemMember(ctx, memberRedeem(created.PackID, "outsider"))
	assert.ErrorIs(t, err, group_pack.ErrNotAMember)

	users := []string{"owner-1", "member-1", "member-2", "member-3"}
	for _, u := range users {
		resp, err := f.svc.RedeemMember(ctx, memberRedeem(created.PackID, u))
		require.NoError(t, err, u)
		assert.True(t, resp.Success)
		assert.Equal(t, string(release.AccessSourceGroupPack), resp.Access.Source)

		has, err := f.store.Access().HasAccess(ctx, u, "rel-1")
		require.NoError(t, err)
		assert.True(t, has)
	}

	_, err = f.svc.RedeemMember(ctx, memberRedeem(created.PackID, "owner-1"))
	assert.ErrorIs(t, err, unlock_code.ErrCodeAlreadyRedeemed)

	status, err = f.svc.Status(ctx, created.PackID, "member-1")
	require.NoError(t, err)
	assert.True(t, status.IsComplete)
	for _, m := range status.Members {
		assert.True(t, m.HasRedeemed)
		assert.Empty(t, m.InviteCode)
	}
	require.Len(t, status.Notifications, 1)
	assert.Equal(t, string(group_pack.NotificationAllRedeemed), status.Notifications[0].Type)
}

func TestPackApplicationService_CreatePackErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(r *CreatePackRequest)
		wantErr error
	}{
		{
			name:    "異常系: 人数が最小未満",
			modify:  func(r *CreatePackRequest) { r.MaxMembers = 1 },
			wantErr: group_pack.ErrInvalidPackSize,
		},
		{
			name:    "異常系: 人数が上限超過",
			modify:  func(r *CreatePackRequest) { r.MaxMembers = 9 },
			wantErr: group_pack.ErrInvalidPackSize,
		},
		{
			name:    "異常系: 他人のリリース",
			modify:  func(r *CreatePackRequest) { r.ReleaseID = "rel-2" },
			wantErr: release.ErrReleaseNotOwned,
		},
		{
			name:    "異常系: 未対応の支払い方法",
			modify:  func(r *CreatePackRequest) { r.PaymentMethod = "paypal" },
			wantErr: payment.ErrUnsupportedPaymentMethod,
		},
		{
			name: "異常系: ウォレット残高不足",
			modify: func(r *CreatePackRequest) {
				r.ReleaseID = "rel-2"
				r.CreatorID = "creator-2"
			},
			wantErr: wallet.ErrInsufficientWalletBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := createReq(4)
			tt.modify(req)

			resp, err := f.svc.CreatePack(context.Background(), req)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPackApplicationService_CreatePackDefaultsOwner(t *testing.T) {
	f := newFixture(t)
	req := createReq(2)
	req.OwnerID = ""

	created, err := f.svc.CreatePack(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "creator-1", created.OwnerID)
	assert.Len(t, created.InviteCodes, 1)
}

func TestPackApplicationService_JoinPackErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePack(ctx, createReq(3))
	require.NoError(t, err)
	other, err := f.svc.CreatePack(ctx, createReq(2))
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     *JoinPackRequest
		wantErr error
	}{
		{
			name:    "異常系: 存在しない招待コード",
			req:     &JoinPackRequest{PackID: created.PackID, InviteCode: "NOPE000000", UserID: "user-1"},
			wantErr: group_pack.ErrInviteCodeNotFound,
		},
		{
			name:    "異常系: 別パックの招待コード",
			req:     &JoinPackRequest{PackID: created.PackID, InviteCode: other.InviteCodes[0], UserID: "user-1"},
			wantErr: group_pack.ErrInviteCodeNotFound,
		},
		{
			name:    "異常系: 所有者が自分のパックに参加",
			req:     &JoinPackRequest{PackID: created.PackID, InviteCode: created.InviteCodes[0], UserID: "owner-1"},
			wantErr: group_pack.ErrAlreadyAMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.svc.JoinPack(ctx, tt.req)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = f.svc.JoinPack(ctx, &JoinPackRequest{PackID: created.PackID, InviteCode: created.InviteCodes[0], UserID: "user-1"})
	require.NoError(t, err)
	_, err = f.svc.JoinPack(ctx, &JoinPackRequest{PackID: created.PackID, InviteCode: created.InviteCodes[1], UserID: "user-1"})
	assert.ErrorIs(t, err, group_pack.ErrAlreadyAMember)
}

func TestPackApplicationService_StatusVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePack(ctx, createReq(2))
	require.NoError(t, err)
	_, err = f.svc.JoinPack(ctx, &JoinPackRequest{InviteCode: created.InviteCodes[0], UserID: "member-1"})
	require.NoError(t, err)

	tests := []struct {
		name        string
		viewer      string
		wantErr     error
		wantInvites bool
	}{
		{name: "正常系: 所有者は招待コードを見られる", viewer: "owner-1", wantInvites: true},
		{name: "正常系: クリエイターは招待コードを見られる", viewer: "creator-1", wantInvites: true},
		{name: "正常系: メンバーは招待コードを見られない", viewer: "member-1"},
		{name: "異常系: 部外者", viewer: "outsider", wantErr: group_pack.ErrNotAMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := f.svc.Status(ctx, created.PackID, tt.viewer)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, status.Members, 2)
			for _, m := range status.Members {
				assert.Equal(t, tt.wantInvites, m.InviteCode != "")
			}
		})
	}

	_, err = f.svc.Status(ctx, "missing-pack", "owner-1")
	assert.ErrorIs(t, err, group_pack.ErrPackNotFound)
}
