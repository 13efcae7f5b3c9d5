package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Tier 数量に応じた価格帯
// MaxQuantity が nil の場合は上限なし（最上位の価格帯）
type Tier struct {
	MinQuantity  int
	MaxQuantity  *int
	PricePerCode decimal.Decimal
}

// Contains 数量が価格帯に含まれるかどうか
func (t Tier) Contains(quantity int) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || quantity <= *t.MaxQuantity
}

// TierTable 価格帯テーブル
type TierTable []Tier

// DefaultTiers 既定の価格帯（1-999: 50.00, 1000-4999: 30.00, 5000以上: 20.00）
func DefaultTiers() TierTable {
	max1, max2 := 999, 4999
	return TierTable{
		{MinQuantity: 1, MaxQuantity: &max1, PricePerCode: decimal.NewFromInt(50)},
		{MinQuantity: 1000, MaxQuantity: &max2, PricePerCode: decimal.NewFromInt(30)},
		{MinQuantity: 5000, PricePerCode: decimal.NewFromInt(20)},
	}
}

// Sorted MinQuantity昇順に並べたコピーを返す
func (tt TierTable) Sorted() TierTable {
	out := make(TierTable, len(tt))
	copy(out, tt)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinQuantity < out[j].MinQuantity })
	return out
}

// Validate 価格帯が1から始まり、重複も隙間もなく連続していることを検証
func (tt TierTable) Validate() error {
	if len(tt) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidTierTable)
	}
	sorted := tt.Sorted()
	if sorted[0].MinQuantity != 1 {
		return fmt.Errorf("%w: first tier must start at 1", ErrInvalidTierTable)
	}
	for i, t := range sorted {
		if t.PricePerCode.IsNegative() || !t.PricePerCode.Equal(t.PricePerCode.Round(2)) {
			return fmt.Errorf("%w: tier %d has invalid price %s", ErrInvalidTierTable, i, t.PricePerCode)
		}
		last := i == len(sorted)-1
		if t.MaxQuantity == nil {
			if !last {
				return fmt.Errorf("%w: only the top tier may be open-ended", ErrInvalidTierTable)
			}
			continue
		}
		if *t.MaxQuantity < t.MinQuantity {
			return fmt.Errorf("%w: tier %d max below min", ErrInvalidTierTable, i)
		}
		if !last && sorted[i+1].MinQuantity != *t.MaxQuantity+1 {
			return fmt.Errorf("%w: tiers %d and %d are not contiguous", ErrInvalidTierTable, i, i+1)
		}
	}
	return nil
}

// Find 数量に該当する価格帯を返す
func (tt TierTable) Find(quantity int) (Tier, error) {
	for _, t := range tt {
		if t.Contains(quantity) {
			return t, nil
		}
	}
	return Tier{}, ErrNoMatchingTier
}
