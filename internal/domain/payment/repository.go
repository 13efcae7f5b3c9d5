package payment

import (
	"context"
	"time"
)

// PaymentRepository 支払い記録リポジトリインターフェース
type PaymentRepository interface {
	// Save 支払い記録を保存
	Save(ctx context.Context, payment *Payment) error

	// FindByReference 支払い参照で取得
	FindByReference(ctx context.Context, reference string) (*Payment, error)

	// Consume 確定済みかつ未充当の記録のみ充当済みにする
	// 更新行がない場合は ErrPaymentAlreadyConsumed
	Consume(ctx context.Context, reference, consumedBy string, at time.Time) error
}
