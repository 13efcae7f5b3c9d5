package unlock_code

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CodeBatch コード生成バッチエンティティ（作成後は不変）
type CodeBatch struct {
	id               string
	releaseID        string
	creatorID        string
	quantity         int
	pricePerCode     decimal.Decimal
	subtotal         decimal.Decimal
	discountAmount   decimal.Decimal
	totalCost        decimal.Decimal
	currency         string
	paymentReference string
	expiresAt        *time.Time
	createdAt        time.Time
}

// BatchPricing バッチに記録する価格スナップショット
type BatchPricing struct {
	PricePerCode   decimal.Decimal
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalCost      decimal.Decimal
	Currency       string
}

// NewCodeBatch 新しいCodeBatchエンティティを作成
func NewCodeBatch(
	id string,
	releaseID string,
	creatorID string,
	quantity int,
	pricing BatchPricing,
	paymentReference string,
	expiresAt *time.Time,
	createdAt time.Time,
) (*CodeBatch, error) {
	if id == "" || releaseID == "" || creatorID == "" {
		return nil, errors.New("invalid batch attributes")
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &CodeBatch{
		id:               id,
		releaseID:        releaseID,
		creatorID:        creatorID,
		quantity:         quantity,
		pricePerCode:     pricing.PricePerCode,
		subtotal:         pricing.Subtotal,
		discountAmount:   pricing.DiscountAmount,
		totalCost:        pricing.TotalCost,
		currency:         pricing.Currency,
		paymentReference: paymentReference,
		expiresAt:        expiresAt,
		createdAt:        createdAt,
	}, nil
}

// ID バッチIDを返す
func (b *CodeBatch) ID() string { return b.id }

// ReleaseID リリースIDを返す
func (b *CodeBatch) ReleaseID() string { return b.releaseID }

// CreatorID クリエイターIDを返す
func (b *CodeBatch) CreatorID() string { return b.creatorID }

// Quantity 生成数量を返す
func (b *CodeBatch) Quantity() int { return b.quantity }

// Pricing 価格スナップショットを返す
func (b *CodeBatch) Pricing() BatchPricing {
	return BatchPricing{
		PricePerCode:   b.pricePerCode,
		Subtotal:       b.subtotal,
		DiscountAmount: b.discountAmount,
		TotalCost:      b.totalCost,
		Currency:       b.currency,
	}
}

// PaymentReference 支払い参照を返す
func (b *CodeBatch) PaymentReference() string { return b.paymentReference }

// ExpiresAt バッチ内コードの有効期限を返す
func (b *CodeBatch) ExpiresAt() *time.Time { return b.expiresAt }

// CreatedAt 作成日時を返す
func (b *CodeBatch) CreatedAt() time.Time { return b.createdAt }

// MustNewCodeBatch テスト用ヘルパー
func MustNewCodeBatch(id, releaseID, creatorID string, quantity int, pricing BatchPricing, paymentReference string) *CodeBatch {
	b, err := NewCodeBatch(id, releaseID, creatorID, quantity, pricing, paymentReference, nil, time.Now())
	if err != nil {
		panic(err)
	}
	return b
}
