package wallet

import (
	"context"
)

// WalletRepository ウォレットリポジトリインターフェース
type WalletRepository interface {
	// FindByOwner 所有者と通貨でウォレットを取得
	FindByOwner(ctx context.Context, ownerID, currency string) (*Wallet, error)

	// Save ウォレットを保存（楽観的ロック対応、競合時は ErrConcurrentUpdate）
	Save(ctx context.Context, wallet *Wallet) error

	// Create 新しいウォレットを作成
	Create(ctx context.Context, wallet *Wallet) error
}
