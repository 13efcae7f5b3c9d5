package pricing

import "errors"

var (
	// ErrInvalidQuantity 数量が1未満のエラー
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrNoMatchingTier 数量に該当する価格帯がないエラー
	ErrNoMatchingTier = errors.New("no matching pricing tier")
	// ErrInvalidTierTable 価格帯テーブルが不正なエラー
	ErrInvalidTierTable = errors.New("invalid pricing tier table")
	// ErrInvalidDiscount 割引ルールが不正なエラー
	ErrInvalidDiscount = errors.New("invalid discount rule")
)
