// Package memory プロセス内メモリにデータを保持するリポジトリ実装
// DB_DRIVER=memory のローカル開発やテストで使用し、再起動でデータは失われる
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"
)

type walletKey struct {
	ownerID  string
	currency string
}

type walletRow struct {
	balance decimal.Decimal
	version int
}

type accessKey struct {
	userID    string
	releaseID string
}

// Store 全リポジトリが共有するデータ
// 各操作は mu で排他し、条件付き更新は判定と書き込みを同じロック区間で行う
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	now  func() time.Time

	codes      map[string]unlock_code.Record
	codeByText map[string]string
	batches    map[string]*unlock_code.CodeBatch

	packs          map[string]group_pack.PackRecord
	members        map[string]group_pack.MemberRecord
	memberByInvite map[string]string

	config   *security.Configuration
	signals  map[string]security.SignalRecord
	attempts []security.RedemptionAttempt

	payments map[string]payment.Record
	wallets  map[walletKey]walletRow
	releases map[string]*release.Release
	access   map[accessKey]release.Access
}

// NewStore 新しい空のStoreを作成
func NewStore() *Store {
	return &Store{
		now:            time.Now,
		codes:          make(map[string]unlock_code.Record),
		codeByText:     make(map[string]string),
		batches:        make(map[string]*unlock_code.CodeBatch),
		packs:          make(map[string]group_pack.PackRecord),
		members:        make(map[string]group_pack.MemberRecord),
		memberByInvite: make(map[string]string),
		signals:        make(map[string]security.SignalRecord),
		payments:       make(map[string]payment.Record),
		wallets:        make(map[walletKey]walletRow),
		releases:       make(map[string]*release.Release),
		access:         make(map[accessKey]release.Access),
	}
}

// WithClock 時刻の取得元を差し替える
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

type txKey struct{}

// txState トランザクション内で行った変更の取り消し操作
type txState struct {
	undo []func()
}

// onRollback ctx がトランザクション内なら取り消し操作を登録する（mu を保持した状態で呼ぶ）
func (s *Store) onRollback(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		tx.undo = append(tx.undo, fn)
	}
}

func (s *Store) rollback(tx *txState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// UnlockCodes UnlockCodeRepositoryを返す
func (s *Store) UnlockCodes() *UnlockCodeRepository { return &UnlockCodeRepository{s: s} }

// GroupPacks GroupPackRepositoryを返す
func (s *Store) GroupPacks() *GroupPackRepository { return &GroupPackRepository{s: s} }

// SecurityConfiguration ConfigurationRepositoryを返す
func (s *Store) SecurityConfiguration() *SecurityConfigurationRepository {
	return &SecurityConfigurationRepository{s: s}
}

// FraudSignals FraudSignalRepositoryを返す
func (s *Store) FraudSignals() *FraudSignalRepository { return &FraudSignalRepository{s: s} }

// Attempts AttemptLogRepositoryを返す
func (s *Store) Attempts() *AttemptLogRepository { return &AttemptLogRepository{s: s} }

// Payments PaymentRepositoryを返す
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s: s} }

// Wallets WalletRepositoryを返す
func (s *Store) Wallets() *WalletRepository { return &WalletRepository{s: s} }

// Releases ReleaseRepositoryを返す
func (s *Store) Releases() *ReleaseRepository { return &ReleaseRepository{s: s} }

// Access AccessRepositoryを返す
func (s *Store) Access() *AccessRepository { return &AccessRepository{s: s} }
