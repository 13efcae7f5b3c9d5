package memory

import (
	"context"
)

// TransactionManager Store 上のトランザクションを管理する
// トランザクションは txMu で直列化し、エラーまたはパニック時は登録された取り消し操作を逆順に実行する
type TransactionManager struct {
	s *Store
}

// NewTransactionManager 新しいトランザクションマネージャーを作成
func NewTransactionManager(s *Store) *TransactionManager {
	return &TransactionManager{s: s}
}

// WithTransaction トランザクション内で関数を実行
// 既にトランザクション内の場合は外側のトランザクションに参加する
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	tm.s.txMu.Lock()
	defer tm.s.txMu.Unlock()

	tx := &txState{}
	defer func() {
		if p := recover(); p != nil {
			tm.s.rollback(tx)
			panic(p)
		} else if err != nil {
			tm.s.rollback(tx)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}
