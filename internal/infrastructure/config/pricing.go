package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"unlock-server/internal/domain/pricing"
)

//go:embed pricing_default.yaml
var defaultPricingYAML []byte

// PricingTable 価格表（価格帯と割引ルール）
type PricingTable struct {
	Currency       string
	StackCap       decimal.Decimal
	Tiers          pricing.TierTable
	GroupDiscounts []pricing.Discount
}

type pricingFile struct {
	Currency       string         `yaml:"currency"`
	StackCap       string         `yaml:"stack_cap"`
	Tiers          []tierFile     `yaml:"tiers"`
	GroupDiscounts []discountFile `yaml:"group_discounts"`
}

type tierFile struct {
	Min   int    `yaml:"min"`
	Max   *int   `yaml:"max"`
	Price string `yaml:"price"`
}

type discountFile struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Value      string `yaml:"value"`
	MinMembers int    `yaml:"min_members"`
	MaxMembers *int   `yaml:"max_members"`
	PackType   string `yaml:"pack_type"`
	Stackable  bool   `yaml:"stackable"`
	Disabled   bool   `yaml:"disabled"`
}

// LoadPricing 価格表を読み込む
// PRICING_FILE が未設定の場合は組み込みの価格表を使う
func LoadPricing(cfg PricingConfig) (*PricingTable, error) {
	data := defaultPricingYAML
	if cfg.File != "" {
		b, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read pricing file: %w", err)
		}
		data = b
	}

	table, err := ParsePricing(data)
	if err != nil {
		return nil, err
	}
	if table.Currency == "" {
		table.Currency = cfg.Currency
	}
	return table, nil
}

// ParsePricing YAMLから価格表を組み立てて検証する
func ParsePricing(data []byte) (*PricingTable, error) {
	var f pricingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}

	table := &PricingTable{
		Currency: f.Currency,
		StackCap: pricing.DefaultStackCap,
	}
	if f.StackCap != "" {
		stackCap, err := decimal.NewFromString(f.StackCap)
		if err != nil {
			return nil, fmt.Errorf("invalid stack_cap %q: %w", f.StackCap, err)
		}
		table.StackCap = stackCap
	}

	for i, t := range f.Tiers {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price in tier %d: %w", i, err)
		}
		table.Tiers = append(table.Tiers, pricing.Tier{
			MinQuantity:  t.Min,
			MaxQuantity:  t.Max,
			PricePerCode: price,
		})
	}
	if err := table.Tiers.Validate(); err != nil {
		return nil, err
	}

	for _, d := range f.GroupDiscounts {
		discountType, err := pricing.NewDiscountType(d.Type)
		if err != nil {
			return nil, fmt.Errorf("discount %s: %w", d.ID, err)
		}
		value, err := decimal.NewFromString(d.Value)
		if err != nil {
			return nil, fmt.Errorf("discount %s: invalid value: %w", d.ID, err)
		}
		table.GroupDiscounts = append(table.GroupDiscounts, pricing.Discount{
			ID:         d.ID,
			Name:       d.Name,
			Type:       discountType,
			Value:      value,
			MinMembers: d.MinMembers,
			MaxMembers: d.MaxMembers,
			PackType:   d.PackType,
			Stackable:  d.Stackable,
			Active:     !d.Disabled,
		})
	}

	return table, nil
}
