package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"unlock-server/internal/domain/payment"
	"unlock-server/internal/domain/wallet"
)

// SettleRequest 支払い充当リクエスト
type SettleRequest struct {
	PayerID    string
	Method     payment.Method
	Reference  string
	Amount     decimal.Decimal
	Currency   string
	ConsumedBy string
}

// Receipt 充当結果
type Receipt struct {
	Method        payment.Method
	Reference     string
	Amount        decimal.Decimal
	WalletBalance *decimal.Decimal
}

// PaymentSettler 見積もり金額をウォレット残高または確定済み決済記録から充当するドメインサービス
// トランザクション内で呼び出し、失敗時のロールバックで充当も取り消される
type PaymentSettler struct {
	paymentRepo payment.PaymentRepository
	walletRepo  wallet.WalletRepository
	maxRetries  int
	now         func() time.Time
}

// NewPaymentSettler 新しいPaymentSettlerを作成
func NewPaymentSettler(paymentRepo payment.PaymentRepository, walletRepo wallet.WalletRepository) *PaymentSettler {
	return &PaymentSettler{
		paymentRepo: paymentRepo,
		walletRepo:  walletRepo,
		maxRetries:  3,
		now:         time.Now,
	}
}

// Settle 支払い方法に応じて充当する
func (s *PaymentSettler) Settle(ctx context.Context, req SettleRequest) (*Receipt, error) {
	if !req.Amount.IsPositive() {
		return &Receipt{Method: req.Method, Reference: req.Reference, Amount: decimal.Zero}, nil
	}
	if req.Method == payment.MethodWallet {
		return s.debitWallet(ctx, req)
	}
	return s.consumePayment(ctx, req)
}

func (s *PaymentSettler) consumePayment(ctx context.Context, req SettleRequest) (*Receipt, error) {
	if req.Reference == "" {
		return nil, payment.ErrPaymentNotFound
	}
	p, err := s.paymentRepo.FindByReference(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	if p.Method() != req.Method {
		return nil, payment.ErrPaymentNotFound
	}
	if err := p.CheckUsableFor(req.PayerID, req.Amount, req.Currency); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Consume(ctx, p.Reference(), req.ConsumedBy, s.now()); err != nil {
		return nil, err
	}
	return &Receipt{Method: req.Method, Reference: p.Reference(), Amount: req.Amount}, nil
}

// debitWallet 楽観的ロックの競合時は指数バックオフで再試行する
func (s *PaymentSettler) debitWallet(ctx context.Context, req SettleRequest) (*Receipt, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
			time.Sleep(backoff)
		}

		w, err := s.walletRepo.FindByOwner(ctx, req.PayerID, req.Currency)
		if err != nil {
			if errors.Is(err, wallet.ErrWalletNotFound) {
				return nil, wallet.ErrInsufficientWalletBalance
			}
			return nil, fmt.Errorf("failed to find wallet: %w", err)
		}
		if err := w.Debit(req.Amount); err != nil {
			return nil, err
		}
		if err := s.walletRepo.Save(ctx, w); err != nil {
			if errors.Is(err, wallet.ErrConcurrentUpdate) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to save wallet: %w", err)
		}

		balance := w.Balance()
		return &Receipt{
			Method:        payment.MethodWallet,
			Reference:     "wallet:" + req.ConsumedBy,
			Amount:        req.Amount,
			WalletBalance: &balance,
		}, nil
	}
	return nil, fmt.Errorf("failed to debit wallet after retries: %w", lastErr)
}
