package handler

import (
	"time"

	"github.com/shopspring/decimal"

	generationapp "unlock-server/internal/application/code_generation"
	redemptionapp "unlock-server/internal/application/code_redemption"
)

// ReleaseView リリース概要
// @Description リリース概要
type ReleaseView struct {
	ID         string `json:"id" example:"rel-1"`
	CreatorID  string `json:"creator_id" example:"creator-1"`
	Title      string `json:"title" example:"Midnight Sessions"`
	ArtistName string `json:"artist_name" example:"The Quiet Hours"`
	CoverURL   string `json:"cover_url,omitempty" example:"https://cdn.example.com/covers/rel-1.jpg"`
}

// AccessView 付与されたアクセス権
// @Description 付与されたアクセス権
type AccessView struct {
	UserID    string `json:"user_id" example:"user-1"`
	ReleaseID string `json:"release_id" example:"rel-1"`
	Source    string `json:"source" example:"unlock_code" enums:"unlock_code,group_pack"`
	GrantedAt string `json:"granted_at" example:"2026-01-01T00:00:00Z"`
}

// DiscountView 適用された割引
// @Description 適用された割引
type DiscountView struct {
	ID     string `json:"id" example:"group-small"`
	Name   string `json:"name" example:"Small group"`
	Type   string `json:"type" example:"percentage" enums:"percentage,fixed"`
	Amount string `json:"amount" example:"20"`
}

// QuoteView 価格見積もり
// @Description 価格見積もり（金額は10進文字列）
type QuoteView struct {
	Quantity         int            `json:"quantity" example:"5"`
	PricePerCode     string         `json:"price_per_code" example:"50"`
	Subtotal         string         `json:"subtotal" example:"250"`
	DiscountAmount   string         `json:"discount_amount" example:"0"`
	TotalCost        string         `json:"total_cost" example:"250"`
	Savings          string         `json:"savings" example:"0"`
	DiscountPercent  string         `json:"discount_percent" example:"0"`
	Currency         string         `json:"currency" example:"USD"`
	AppliedDiscounts []DiscountView `json:"applied_discounts"`
}

func releaseView(r redemptionapp.ReleaseInfo) ReleaseView {
	return ReleaseView{
		ID:         r.ID,
		CreatorID:  r.CreatorID,
		Title:      r.Title,
		ArtistName: r.ArtistName,
		CoverURL:   r.CoverURL,
	}
}

func accessView(a redemptionapp.AccessInfo) AccessView {
	return AccessView{
		UserID:    a.UserID,
		ReleaseID: a.ReleaseID,
		Source:    a.Source,
		GrantedAt: formatTime(a.GrantedAt),
	}
}

func quoteView(q generationapp.QuoteResponse) QuoteView {
	discounts := make([]DiscountView, 0, len(q.AppliedDiscounts))
	for _, d := range q.AppliedDiscounts {
		discounts = append(discounts, DiscountView{
			ID:     d.ID,
			Name:   d.Name,
			Type:   d.Type,
			Amount: d.Amount.String(),
		})
	}
	return QuoteView{
		Quantity:         q.Quantity,
		PricePerCode:     q.PricePerCode.String(),
		Subtotal:         q.Subtotal.String(),
		DiscountAmount:   q.DiscountAmount.String(),
		TotalCost:        q.TotalCost.String(),
		Savings:          q.Savings.String(),
		DiscountPercent:  q.DiscountPercent.String(),
		Currency:         q.Currency,
		AppliedDiscounts: discounts,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func decimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// parseTimePtr 空文字は nil、それ以外は RFC3339 として解釈する
func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
