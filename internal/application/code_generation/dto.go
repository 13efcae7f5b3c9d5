package code_generation

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRequest 価格見積もりリクエスト
// PackMembers が指定された場合はメンバー数を数量とし、グループ割引を適用する
type QuoteRequest struct {
	ReleaseID   string
	CreatorID   string
	Quantity    int
	PackMembers int
	PackType    string
}

// AppliedDiscount 適用された割引
type AppliedDiscount struct {
	ID     string
	Name   string
	Type   string
	Amount decimal.Decimal
}

// QuoteResponse 価格見積もりレスポンス
type QuoteResponse struct {
	Quantity         int
	PricePerCode     decimal.Decimal
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	TotalCost        decimal.Decimal
	Savings          decimal.Decimal
	DiscountPercent  decimal.Decimal
	Currency         string
	AppliedDiscounts []AppliedDiscount
}

// GenerateCodesRequest コード生成リクエスト
type GenerateCodesRequest struct {
	ReleaseID        string
	CreatorID        string
	Quantity         int
	PaymentMethod    string
	PaymentReference string
	ExpiresAt        *time.Time // optional: 未指定の場合は既定の有効期間
}

// GenerateCodesResponse コード生成レスポンス
type GenerateCodesResponse struct {
	BatchID          string
	ReleaseID        string
	Quantity         int
	Codes            []string
	Quote            QuoteResponse
	PaymentMethod    string
	PaymentReference string
	WalletBalance    *decimal.Decimal
	ExpiresAt        *time.Time
	CreatedAt        time.Time
}
