package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType 割引種別
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage" // 割合
	DiscountTypeFixed      DiscountType = "fixed"      // 固定額
)

// NewDiscountType 新しいDiscountTypeを作成
func NewDiscountType(s string) (DiscountType, error) {
	switch DiscountType(s) {
	case DiscountTypePercentage, DiscountTypeFixed:
		return DiscountType(s), nil
	default:
		return "", fmt.Errorf("%w: type %q", ErrInvalidDiscount, s)
	}
}

var hundred = decimal.NewFromInt(100)

// Discount 割引ルール
type Discount struct {
	ID         string
	Name       string
	Type       DiscountType
	Value      decimal.Decimal
	MinMembers int
	MaxMembers *int
	PackType   string
	Stackable  bool
	Active     bool
}

// DiscountContext 割引の適用条件を判定するための文脈
type DiscountContext struct {
	Members  int
	PackType string
}

// Applies 文脈に対して割引が適用可能かどうか
func (d Discount) Applies(dc DiscountContext) bool {
	if !d.Active {
		return false
	}
	if d.MinMembers > 0 && dc.Members < d.MinMembers {
		return false
	}
	if d.MaxMembers != nil && dc.Members > *d.MaxMembers {
		return false
	}
	if d.PackType != "" && d.PackType != dc.PackType {
		return false
	}
	return true
}

// Rate 割合割引の率を (0,1] に正規化して返す（1を超える値はパーセントとして扱う）
func (d Discount) Rate() decimal.Decimal {
	v := d.Value
	if v.GreaterThan(decimal.NewFromInt(1)) {
		v = v.Div(hundred)
	}
	if v.GreaterThan(decimal.NewFromInt(1)) {
		v = decimal.NewFromInt(1)
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// AmountFor 小計に対する割引額を返す（固定額は小計で頭打ち）
func (d Discount) AmountFor(subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case DiscountTypePercentage:
		amount = subtotal.Mul(d.Rate()).Round(2)
	case DiscountTypeFixed:
		amount = d.Value.Round(2)
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}
