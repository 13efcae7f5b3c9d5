package pack_management

import (
	"time"

	"github.com/shopspring/decimal"

	"unlock-server/internal/application/code_generation"
)

// CreatePackRequest パック作成リクエスト
type CreatePackRequest struct {
	ReleaseID        string
	CreatorID        string
	OwnerID          string
	PackType         string
	MaxMembers       int
	PaymentMethod    string
	PaymentReference string
	ExpiresAt        *time.Time
}

// CreatePackResponse パック作成レスポンス
type CreatePackResponse struct {
	PackID           string
	BatchID          string
	ReleaseID        string
	OwnerID          string
	PackType         string
	MaxMembers       int
	CurrentMembers   int
	InviteCodes      []string
	Quote            code_generation.QuoteResponse
	PaymentMethod    string
	PaymentReference string
	WalletBalance    *decimal.Decimal
	ExpiresAt        *time.Time
	CreatedAt        time.Time
}

// JoinPackRequest パック参加リクエスト
type JoinPackRequest struct {
	PackID     string
	InviteCode string
	UserID     string
}

// JoinPackResponse パック参加レスポンス
type JoinPackResponse struct {
	PackID         string
	MemberID       string
	CurrentMembers int
	MaxMembers     int
	IsComplete     bool
	JoinedAt       time.Time
}

// RedeemMemberRequest メンバー引き換えリクエスト
type RedeemMemberRequest struct {
	PackID            string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// MemberInfo メンバー情報
// InviteCode はパックの所有者とクリエイターにのみ返す
type MemberInfo struct {
	ID          string
	UserID      string
	Role        string
	InviteCode  string
	HasRedeemed bool
	JoinedAt    *time.Time
	RedeemedAt  *time.Time
}

// NotificationInfo 通知情報
type NotificationInfo struct {
	Type    string
	Message string
}

// PackStatusResponse パック状態レスポンス
type PackStatusResponse struct {
	PackID          string
	ReleaseID       string
	OwnerID         string
	PackType        string
	MaxMembers      int
	CurrentMembers  int
	RemainingSlots  int
	IsComplete      bool
	IsActive        bool
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	DiscountPercent decimal.Decimal
	ExpiresAt       *time.Time
	Members         []MemberInfo
	Notifications   []NotificationInfo
}
