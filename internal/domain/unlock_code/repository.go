package unlock_code

import (
	"context"
	"time"
)

// Redemption 引き換え時に記録する内容
// DeviceFingerprint / IPAddress が空の場合はロックを設定しない
type Redemption struct {
	UserID            string
	RedeemedAt        time.Time
	DeviceFingerprint string
	IPAddress         string
}

// BulkAction 管理者による一括操作の種別
type BulkAction string

const (
	BulkActionRevoke      BulkAction = "revoke"       // 失効
	BulkActionMarkInvalid BulkAction = "mark_invalid" // 無効としてマーク（失効扱い）
	BulkActionMarkUnused  BulkAction = "mark_unused"  // 未使用へ復元
)

// NewBulkAction 新しいBulkActionを作成
func NewBulkAction(s string) (BulkAction, error) {
	switch BulkAction(s) {
	case BulkActionRevoke, BulkActionMarkInvalid, BulkActionMarkUnused:
		return BulkAction(s), nil
	default:
		return "", ErrInvalidBulkAction
	}
}

// RevokedReason 一括操作が記録する失効理由を返す
func (a BulkAction) RevokedReason() string {
	switch a {
	case BulkActionMarkInvalid:
		return "marked_invalid"
	case BulkActionRevoke:
		return "revoked_by_admin"
	default:
		return ""
	}
}

// UnlockCodeRepository アンロックコードリポジトリインターフェース
type UnlockCodeRepository interface {
	// FindByCode 正規化済みコード文字列で取得
	FindByCode(ctx context.Context, code string) (*UnlockCode, error)

	// FindByID IDで取得
	FindByID(ctx context.Context, id string) (*UnlockCode, error)

	// FindByBatchID バッチ内のコードを取得
	FindByBatchID(ctx context.Context, batchID string, limit, offset int) ([]*UnlockCode, int, error)

	// ExistingCodes 指定コードのうち既に保存済みのものを返す
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)

	// CreateBatch バッチとコードを保存（コード重複時は ErrDuplicateCode）
	CreateBatch(ctx context.Context, batch *CodeBatch, codes []*UnlockCode) error

	// FindBatch バッチを取得
	FindBatch(ctx context.Context, id string) (*CodeBatch, error)

	// MarkRedeemed status = UNUSED の場合のみ REDEEMED に遷移させる
	// 更新行がない場合は ErrCodeAlreadyRedeemed
	MarkRedeemed(ctx context.Context, id string, r Redemption) error

	// ChangeDevice 変更回数が上限未満の場合のみデバイスロック先を変更する
	// 上限に達している場合は ErrDeviceChangeLimitReached
	ChangeDevice(ctx context.Context, id, fingerprint string, limit int) error

	// BulkUpdateStatus 一括操作を適用し、更新件数を返す
	BulkUpdateStatus(ctx context.Context, ids []string, action BulkAction, includeRedeemed bool) (int64, error)
}
