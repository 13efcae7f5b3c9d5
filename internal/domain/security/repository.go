package security

import (
	"context"
	"time"
)

// ConfigurationRepository セキュリティ設定リポジトリインターフェース
type ConfigurationRepository interface {
	// Find 保存済みの設定を取得（未保存の場合は ErrConfigurationNotFound）
	Find(ctx context.Context) (*Configuration, error)

	// Save 設定を保存
	Save(ctx context.Context, cfg Configuration) error
}

// SignalFilter 不正シグナル一覧の絞り込み条件
type SignalFilter struct {
	Resolved *bool
	Reason   Reason
	UserID   string
	Limit    int
	Offset   int
}

// FraudSignalRepository 不正シグナルリポジトリインターフェース
type FraudSignalRepository interface {
	// Save シグナルを保存
	Save(ctx context.Context, signal *FraudSignal) error

	// FindByID シグナルを取得
	FindByID(ctx context.Context, id string) (*FraudSignal, error)

	// List 条件に一致するシグナルと総件数を取得
	List(ctx context.Context, filter SignalFilter) ([]*FraudSignal, int, error)

	// Resolve 未解決のシグナルのみ解決済みにする
	Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error

	// CountUnresolved ユーザーまたはIPに紐づく未解決シグナル数
	CountUnresolved(ctx context.Context, userID, ipAddress string, since time.Time) (int, error)
}

// AttemptLogRepository 引き換え試行ログリポジトリインターフェース
type AttemptLogRepository interface {
	// Save 試行ログを追記
	Save(ctx context.Context, attempt *RedemptionAttempt) error

	// CountFailed ユーザーまたはIPによる失敗試行数
	CountFailed(ctx context.Context, userID, ipAddress string, since time.Time) (int, error)

	// CountDistinctDevices ユーザーが使用したデバイス数
	CountDistinctDevices(ctx context.Context, userID string, since time.Time) (int, error)

	// CountDistinctUsersForDevice デバイスを使用したアカウント数
	CountDistinctUsersForDevice(ctx context.Context, fingerprint string, since time.Time) (int, error)

	// FindBySubmittedCode 提出されたコードの試行ログを新しい順に取得
	FindBySubmittedCode(ctx context.Context, code string, limit int) ([]*RedemptionAttempt, error)
}
