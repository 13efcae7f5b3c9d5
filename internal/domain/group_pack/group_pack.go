package group_pack

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MinMembers パックの最小人数
	MinMembers = 2
)

// GroupCodePack グループパックエンティティ
type GroupCodePack struct {
	id              string
	releaseID       string
	creatorID       string
	ownerID         string
	packType        string
	batchID         string
	maxMembers      int
	currentMembers  int
	originalPrice   decimal.Decimal
	discountedPrice decimal.Decimal
	discountPercent decimal.Decimal
	isActive        bool
	expiresAt       *time.Time
	createdAt       time.Time
}

// PackPricing パック作成時の価格スナップショット
type PackPricing struct {
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	DiscountPercent decimal.Decimal
}

// NewGroupCodePack 新しいGroupCodePackを作成（購入者が最初のメンバーとして参加済み）
func NewGroupCodePack(
	id, releaseID, creatorID, ownerID, packType, batchID string,
	maxMembers, maxAllowed int,
	pricing PackPricing,
	expiresAt *time.Time,
	createdAt time.Time,
) (*GroupCodePack, error) {
	if id == "" || releaseID == "" || creatorID == "" || ownerID == "" {
		return nil, errors.New("invalid pack attributes")
	}
	if maxMembers < MinMembers || maxMembers > maxAllowed {
		return nil, ErrInvalidPackSize
	}
	return &GroupCodePack{
		id:              id,
		releaseID:       releaseID,
		creatorID:       creatorID,
		ownerID:         ownerID,
		packType:        packType,
		batchID:         batchID,
		maxMembers:      maxMembers,
		currentMembers:  1,
		originalPrice:   pricing.OriginalPrice,
		discountedPrice: pricing.DiscountedPrice,
		discountPercent: pricing.DiscountPercent,
		isActive:        true,
		expiresAt:       expiresAt,
		createdAt:       createdAt,
	}, nil
}

// PackRecord 永続化層との受け渡しに使う全属性
type PackRecord struct {
	ID             string
	ReleaseID      string
	CreatorID      string
	OwnerID        string
	PackType       string
	BatchID        string
	MaxMembers     int
	CurrentMembers int
	Pricing        PackPricing
	IsActive       bool
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// ReconstructPack 永続化されたレコードからパックを復元
func ReconstructPack(r PackRecord) *GroupCodePack {
	return &GroupCodePack{
		id:              r.ID,
		releaseID:       r.ReleaseID,
		creatorID:       r.CreatorID,
		ownerID:         r.OwnerID,
		packType:        r.PackType,
		batchID:         r.BatchID,
		maxMembers:      r.MaxMembers,
		currentMembers:  r.CurrentMembers,
		originalPrice:   r.Pricing.OriginalPrice,
		discountedPrice: r.Pricing.DiscountedPrice,
		discountPercent: r.Pricing.DiscountPercent,
		isActive:        r.IsActive,
		expiresAt:       r.ExpiresAt,
		createdAt:       r.CreatedAt,
	}
}

// Record 現在の状態をPackRecordとして返す
func (p *GroupCodePack) Record() PackRecord {
	return PackRecord{
		ID:             p.id,
		ReleaseID:      p.releaseID,
		CreatorID:      p.creatorID,
		OwnerID:        p.ownerID,
		PackType:       p.packType,
		BatchID:        p.batchID,
		MaxMembers:     p.maxMembers,
		CurrentMembers: p.currentMembers,
		Pricing:        p.Pricing(),
		IsActive:       p.isActive,
		ExpiresAt:      p.expiresAt,
		CreatedAt:      p.createdAt,
	}
}

// ID パックIDを返す
func (p *GroupCodePack) ID() string {
	return p.id
}

// ReleaseID リリースIDを返す
func (p *GroupCodePack) ReleaseID() string {
	return p.releaseID
}

// CreatorID クリエイターIDを返す
func (p *GroupCodePack) CreatorID() string {
	return p.creatorID
}

// OwnerID 購入者のユーザーIDを返す
func (p *GroupCodePack) OwnerID() string {
	return p.ownerID
}

// PackType パック種別を返す
func (p *GroupCodePack) PackType() string {
	return p.packType
}

// BatchID 予約コードのバッチIDを返す
func (p *GroupCodePack) BatchID() string {
	return p.batchID
}

// MaxMembers 最大人数を返す
func (p *GroupCodePack) MaxMembers() int {
	return p.maxMembers
}

// CurrentMembers 現在の人数を返す
func (p *GroupCodePack) CurrentMembers() int {
	return p.currentMembers
}

// Pricing 価格スナップショットを返す
func (p *GroupCodePack) Pricing() PackPricing {
	return PackPricing{
		OriginalPrice:   p.originalPrice,
		DiscountedPrice: p.discountedPrice,
		DiscountPercent: p.discountPercent,
	}
}

// IsActive 有効かどうか
func (p *GroupCodePack) IsActive() bool {
	return p.isActive
}

// ExpiresAt 有効期限を返す
func (p *GroupCodePack) ExpiresAt() *time.Time {
	return p.expiresAt
}

// CreatedAt 作成日時を返す
func (p *GroupCodePack) CreatedAt() time.Time {
	return p.createdAt
}

// IsExpired 指定時刻時点で期限切れかどうか
func (p *GroupCodePack) IsExpired(now time.Time) bool {
	return p.expiresAt != nil && !now.Before(*p.expiresAt)
}

// IsFull 満員かどうか
func (p *GroupCodePack) IsFull() bool {
	return p.currentMembers >= p.maxMembers
}

// IsComplete 満員かつ有効期限内かどうか（引き換え可能な状態）
func (p *GroupCodePack) IsComplete(now time.Time) bool {
	return p.isActive && p.IsFull() && !p.IsExpired(now)
}

// RemainingSlots 残りの空きスロット数
func (p *GroupCodePack) RemainingSlots() int {
	if p.IsFull() {
		return 0
	}
	return p.maxMembers - p.currentMembers
}

// CheckJoinable 参加可能かをチェック
func (p *GroupCodePack) CheckJoinable(now time.Time) error {
	if !p.isActive || p.IsExpired(now) {
		return ErrPackInactiveOrExpired
	}
	if p.IsFull() {
		return ErrPackFull
	}
	return nil
}

// CheckRedeemable 引き換え可能かをチェック
func (p *GroupCodePack) CheckRedeemable(now time.Time) error {
	if !p.isActive || p.IsExpired(now) {
		return ErrPackInactiveOrExpired
	}
	if !p.IsFull() {
		return ErrPackNotYetComplete
	}
	return nil
}

// MustNewGroupCodePack テスト用ヘルパー
func MustNewGroupCodePack(id, releaseID, creatorID, ownerID string, maxMembers int, expiresAt *time.Time) *GroupCodePack {
	p, err := NewGroupCodePack(id, releaseID, creatorID, ownerID, "", "", maxMembers, maxMembers, PackPricing{}, expiresAt, time.Now())
	if err != nil {
		panic(err)
	}
	return p
}
