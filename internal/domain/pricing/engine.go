package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultStackCap 積み上げ割引の上限（小計に対する割合）
var DefaultStackCap = decimal.NewFromFloat(0.5)

// AppliedDiscount 見積もりに適用された割引
type AppliedDiscount struct {
	ID     string
	Name   string
	Type   DiscountType
	Amount decimal.Decimal
}

// Quote 価格見積もり
type Quote struct {
	Quantity         int
	PricePerCode     decimal.Decimal
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	TotalCost        decimal.Decimal
	Savings          decimal.Decimal
	DiscountPercent  decimal.Decimal
	AppliedDiscounts []AppliedDiscount
}

// Engine 価格計算エンジン（副作用なし）
type Engine struct {
	stackCap decimal.Decimal
}

// NewEngine 新しいEngineを作成
func NewEngine(stackCap decimal.Decimal) *Engine {
	if stackCap.IsNegative() || stackCap.GreaterThan(decimal.NewFromInt(1)) {
		stackCap = DefaultStackCap
	}
	return &Engine{stackCap: stackCap}
}

type candidate struct {
	discount Discount
	amount   decimal.Decimal
}

// Calculate 数量・価格帯・割引ルールから見積もりを計算する
// totalCost == quantity*pricePerCode - discountAmount を常に満たす
func (e *Engine) Calculate(quantity int, tiers TierTable, discounts []Discount, dc DiscountContext) (*Quote, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	tier, err := tiers.Find(quantity)
	if err != nil {
		return nil, err
	}

	subtotal := tier.PricePerCode.Mul(decimal.NewFromInt(int64(quantity))).Round(2)

	var eligible []candidate
	for _, d := range discounts {
		if !d.Applies(dc) {
			continue
		}
		amount := d.AmountFor(subtotal)
		if !amount.IsPositive() {
			continue
		}
		eligible = append(eligible, candidate{discount: d, amount: amount})
	}
	sort.SliceStable(eligible, func(i, j int) bool { return better(eligible[i], eligible[j]) })

	applied := []AppliedDiscount{}
	discountAmount := decimal.Zero
	if len(eligible) > 0 {
		best := eligible[0]
		applied = []AppliedDiscount{toApplied(best.discount, best.amount)}
		discountAmount = best.amount

		if stacked, total := e.stack(eligible, subtotal); len(stacked) > 1 && total.GreaterThan(best.amount) {
			applied = stacked
			discountAmount = total
		}
	}
	if discountAmount.GreaterThan(subtotal) {
		discountAmount = subtotal
	}

	totalCost := subtotal.Sub(discountAmount)
	percent := decimal.Zero
	if subtotal.IsPositive() {
		percent = discountAmount.Div(subtotal).Mul(hundred).Round(2)
	}

	return &Quote{
		Quantity:         quantity,
		PricePerCode:     tier.PricePerCode,
		Subtotal:         subtotal,
		DiscountAmount:   discountAmount,
		TotalCost:        totalCost,
		Savings:          discountAmount,
		DiscountPercent:  percent,
		AppliedDiscounts: applied,
	}, nil
}

// stack 積み上げ可能な割引を上限まで加算する
// 上限で切り詰めた場合は割引額の大きい順に配分する
func (e *Engine) stack(sorted []candidate, subtotal decimal.Decimal) ([]AppliedDiscount, decimal.Decimal) {
	remaining := subtotal.Mul(e.stackCap).Round(2)
	var out []AppliedDiscount
	total := decimal.Zero
	for _, c := range sorted {
		if !c.discount.Stackable || !remaining.IsPositive() {
			continue
		}
		amount := decimal.Min(c.amount, remaining)
		out = append(out, toApplied(c.discount, amount))
		total = total.Add(amount)
		remaining = remaining.Sub(amount)
	}
	return out, total
}

// better 割引額の大きい方、同額なら割合割引、さらに同じならIDの小さい方を優先
func better(a, b candidate) bool {
	if !a.amount.Equal(b.amount) {
		return a.amount.GreaterThan(b.amount)
	}
	if a.discount.Type != b.discount.Type {
		return a.discount.Type == DiscountTypePercentage
	}
	return a.discount.ID < b.discount.ID
}

func toApplied(d Discount, amount decimal.Decimal) AppliedDiscount {
	return AppliedDiscount{ID: d.ID, Name: d.Name, Type: d.Type, Amount: amount}
}
