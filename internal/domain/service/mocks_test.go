package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"
	"unlock-server/internal/domain/wallet"
)

// MockUnlockCodeRepository モックアンロックコードリポジトリ
type MockUnlockCodeRepository struct {
	mock.Mock
}

func (m *MockUnlockCodeRepository) FindByCode(ctx context.Context, code string) (*unlock_code.UnlockCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*unlock_code.UnlockCode), args.Error(1)
}

func (m *MockUnlockCodeRepository) FindByID(ctx context.Context, id string) (*unlock_code.UnlockCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*unlock_code.UnlockCode), args.Error(1)
}

func (m *MockUnlockCodeRepository) FindByBatchID(ctx context.Context, batchID string, limit, offset int) ([]*unlock_code.UnlockCode, int, error) {
	args := m.Called(ctx, batchID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*unlock_code.UnlockCode), args.Int(1), args.Error(2)
}

func (m *MockUnlockCodeRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	args := m.Called(ctx, codes)
	if fn, ok := args.Get(0).(func([]string) map[string]struct{}); ok {
		return fn(codes), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockUnlockCodeRepository) CreateBatch(ctx context.Context, batch *unlock_code.CodeBatch, codes []*unlock_code.UnlockCode) error {
	args := m.Called(ctx, batch, codes)
	return args.Error(0)
}

func (m *MockUnlockCodeRepository) FindBatch(ctx context.Context, id string) (*unlock_code.CodeBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*unlock_code.CodeBatch), args.Error(1)
}

func (m *MockUnlockCodeRepository) MarkRedeemed(ctx context.Context, id string, r unlock_code.Redemption) error {
	args := m.Called(ctx, id, r)
	return args.Error(0)
}

func (m *MockUnlockCodeRepository) ChangeDevice(ctx context.Context, id, fingerprint string, limit int) error {
	args := m.Called(ctx, id, fingerprint, limit)
	return args.Error(0)
}

func (m *MockUnlockCodeRepository) BulkUpdateStatus(ctx context.Context, ids []string, action unlock_code.BulkAction, includeRedeemed bool) (int64, error) {
	args := m.Called(ctx, ids, action, includeRedeemed)
	return args.Get(0).(int64), args.Error(1)
}

// MockGroupPackRepository モックグループパックリポジトリ
type MockGroupPackRepository struct {
	mock.Mock
}

func (m *MockGroupPackRepository) Create(ctx context.Context, pack *group_pack.GroupCodePack, members []*group_pack.PackMember) error {
	args := m.Called(ctx, pack, members)
	return args.Error(0)
}

func (m *MockGroupPackRepository) FindByID(ctx context.Context, id string) (*group_pack.GroupCodePack, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group_pack.GroupCodePack), args.Error(1)
}

func (m *MockGroupPackRepository) FindMembers(ctx context.Context, packID string) ([]*group_pack.PackMember, error) {
	args := m.Called(ctx, packID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*group_pack.PackMember), args.Error(1)
}

func (m *MockGroupPackRepository) FindMember(ctx context.Context, memberID string) (*group_pack.PackMember, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group_pack.PackMember), args.Error(1)
}

func (m *MockGroupPackRepository) FindMemberByInviteCode(ctx context.Context, inviteCode string) (*group_pack.PackMember, error) {
	args := m.Called(ctx, inviteCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group_pack.PackMember), args.Error(1)
}

func (m *MockGroupPackRepository) FindMemberByUser(ctx context.Context, packID, userID string) (*group_pack.PackMember, error) {
	args := m.Called(ctx, packID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group_pack.PackMember), args.Error(1)
}

func (m *MockGroupPackRepository) ClaimSlot(ctx context.Context, memberID, userID string, joinedAt time.Time) error {
	args := m.Called(ctx, memberID, userID, joinedAt)
	return args.Error(0)
}

func (m *MockGroupPackRepository) IncrementMembers(ctx context.Context, packID string) error {
	args := m.Called(ctx, packID)
	return args.Error(0)
}

func (m *MockGroupPackRepository) MarkMemberRedeemed(ctx context.Context, memberID, unlockCodeID string, at time.Time) (bool, error) {
	args := m.Called(ctx, memberID, unlockCodeID, at)
	return args.Bool(0), args.Error(1)
}

// MockAttemptLogRepository モック試行ログリポジトリ
type MockAttemptLogRepository struct {
	mock.Mock
}

func (m *MockAttemptLogRepository) Save(ctx context.Context, attempt *security.RedemptionAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptLogRepository) CountFailed(ctx context.Context, userID, ipAddress string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, ipAddress, since)
	return args.Int(0), args.Error(1)
}

func (m *MockAttemptLogRepository) CountDistinctDevices(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockAttemptLogRepository) CountDistinctUsersForDevice(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	args := m.Called(ctx, fingerprint, since)
	return args.Int(0), args.Error(1)
}

func (m *MockAttemptLogRepository) FindBySubmittedCode(ctx context.Context, code string, limit int) ([]*security.RedemptionAttempt, error) {
	args := m.Called(ctx, code, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*security.RedemptionAttempt), args.Error(1)
}

// MockFraudSignalRepository モック不正シグナルリポジトリ
type MockFraudSignalRepository struct {
	mock.Mock
}

func (m *MockFraudSignalRepository) Save(ctx context.Context, signal *security.FraudSignal) error {
	args := m.Called(ctx, signal)
	return args.Error(0)
}

func (m *MockFraudSignalRepository) FindByID(ctx context.Context, id string) (*security.FraudSignal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*security.FraudSignal), args.Error(1)
}

func (m *MockFraudSignalRepository) List(ctx context.Context, filter security.SignalFilter) ([]*security.FraudSignal, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*security.FraudSignal), args.Int(1), args.Error(2)
}

func (m *MockFraudSignalRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error {
	args := m.Called(ctx, id, resolvedBy, at)
	return args.Error(0)
}

func (m *MockFraudSignalRepository) CountUnresolved(ctx context.Context, userID, ipAddress string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, ipAddress, since)
	return args.Int(0), args.Error(1)
}

// MockRateLimitStore モックレート制限ストア
type MockRateLimitStore struct {
	mock.Mock
}

func (m *MockRateLimitStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (security.RateLimitResult, error) {
	args := m.Called(ctx, key, now, window, limit)
	return args.Get(0).(security.RateLimitResult), args.Error(1)
}

// MockBlockList モックブロックリスト
type MockBlockList struct {
	mock.Mock
}

func (m *MockBlockList) Block(ctx context.Context, ip string, until time.Time) error {
	args := m.Called(ctx, ip, until)
	return args.Error(0)
}

func (m *MockBlockList) IsBlocked(ctx context.Context, ip string, now time.Time) (bool, error) {
	args := m.Called(ctx, ip, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockBlockList) Unblock(ctx context.Context, ip string) error {
	args := m.Called(ctx, ip)
	return args.Error(0)
}

// staticConfigProvider 固定の設定を返すプロバイダー
type staticConfigProvider struct {
	cfg security.Configuration
	err error
}

func (p *staticConfigProvider) Current(ctx context.Context) (security.Configuration, error) {
	return p.cfg, p.err
}

func (p *staticConfigProvider) Invalidate() {}

// MockPaymentRepository モック支払い記録リポジトリ
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Consume(ctx context.Context, reference, consumedBy string, at time.Time) error {
	args := m.Called(ctx, reference, consumedBy, at)
	return args.Error(0)
}

// MockWalletRepository モックウォレットリポジトリ
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) FindByOwner(ctx context.Context, ownerID, currency string) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

// MockTransactionManager モックトランザクションマネージャー
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}
