package memory

import (
	"context"
	"time"

	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/wallet"
)

// PaymentRepository メモリ実装のPaymentRepository
type PaymentRepository struct {
	s *Store
}

// Save 支払い記録を保存（存在する場合はステータスのみ更新）
func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	prev, existed := r.s.payments[p.Reference()]
	next := prev
	if existed {
		next.Status = p.Status()
		next.UpdatedAt = now
	} else {
		next = payment.Record{
			Reference:  p.Reference(),
			PayerID:    p.PayerID(),
			Method:     p.Method(),
			Amount:     p.Amount(),
			Currency:   p.Currency(),
			Status:     p.Status(),
			ConsumedBy: p.ConsumedBy(),
			ConsumedAt: p.ConsumedAt(),
			CreatedAt:  p.CreatedAt(),
			UpdatedAt:  now,
		}
	}
	r.s.payments[p.Reference()] = next

	r.s.onRollback(ctx, func() {
		if existed {
			r.s.payments[p.Reference()] = prev
		} else {
			delete(r.s.payments, p.Reference())
		}
	})
	return nil
}

// FindByReference 支払い参照で取得
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.payments[reference]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return payment.Reconstruct(rec), nil
}

// Consume 確定済みかつ未充当の記録のみ充当済みにする
func (r *PaymentRepository) Consume(ctx context.Context, reference, consumedBy string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.payments[reference]
	if !ok || prev.Status != payment.StatusConfirmed || prev.ConsumedAt != nil {
		return payment.ErrPaymentAlreadyConsumed
	}

	next := prev
	next.ConsumedBy = consumedBy
	next.ConsumedAt = &at
	next.UpdatedAt = at
	r.s.payments[reference] = next
	r.s.onRollback(ctx, func() {
		r.s.payments[reference] = prev
	})
	return nil
}

// WalletRepository メモリ実装のWalletRepository
type WalletRepository struct {
	s *Store
}

// FindByOwner 所有者と通貨でウォレットを取得
func (r *WalletRepository) FindByOwner(ctx context.Context, ownerID, currency string) (*wallet.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.wallets[walletKey{ownerID, currency}]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	return wallet.NewWallet(ownerID, currency, row.balance, row.version)
}

// Save ウォレットを保存（変更前のバージョンと一致する場合のみ）
func (r *WalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := walletKey{w.OwnerID(), w.Currency()}
	prev, ok := r.s.wallets[key]
	if !ok || prev.version != w.Version()-1 {
		return wallet.ErrConcurrentUpdate
	}

	r.s.wallets[key] = walletRow{balance: w.Balance(), version: w.Version()}
	r.s.onRollback(ctx, func() {
		r.s.wallets[key] = prev
	})
	return nil
}

// Create 新しいウォレットを作成
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := walletKey{w.OwnerID(), w.Currency()}
	if _, ok := r.s.wallets[key]; ok {
		return wallet.ErrConcurrentUpdate
	}

	r.s.wallets[key] = walletRow{balance: w.Balance(), version: w.Version()}
	r.s.onRollback(ctx, func() {
		delete(r.s.wallets, key)
	})
	return nil
}
