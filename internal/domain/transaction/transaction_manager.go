package transaction

import (
	"context"
)

// TransactionManager トランザクション管理インターフェース
// fn に渡される ctx を使ったリポジトリ操作は同一トランザクションで実行される
type TransactionManager interface {
	// WithTransaction トランザクション内で関数を実行（エラー時はロールバック）
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
