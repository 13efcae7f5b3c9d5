package handler

// JoinPackRequest パック参加リクエスト
// @Description パック参加リクエスト
type JoinPackRequest struct {
	InviteCode string `json:"invite_code" example:"K7Q2M9X4PA"`
}

// JoinPackResponse パック参加レスポンス
// @Description パック参加レスポンス
type JoinPackResponse struct {
	PackID         string `json:"pack_id" example:"c5a1be0e-3f7d-4d4e-8f7e-0b9d7f0f4a11"`
	MemberID       string `json:"member_id" example:"2a9d6c1e-8e43-4f7b-b3de-5c1a0d6a7f90"`
	CurrentMembers int    `json:"current_members" example:"2"`
	MaxMembers     int    `json:"max_members" example:"4"`
	IsComplete     bool   `json:"is_complete" example:"false"`
	JoinedAt       string `json:"joined_at" example:"2026-01-01T00:00:00Z"`
}

// RedeemPackRequest パックメンバー引き換えリクエスト
// @Description パックメンバー引き換えリクエスト
type RedeemPackRequest struct {
	DeviceFingerprint string `json:"device_fingerprint" example:"fp_3f9a2c"`
}

// PackMemberView パックメンバー
// @Description パックメンバー（invite_code は所有者とクリエイターにのみ返す）
type PackMemberView struct {
	ID          string  `json:"id" example:"2a9d6c1e-8e43-4f7b-b3de-5c1a0d6a7f90"`
	UserID      string  `json:"user_id,omitempty" example:"user-2"`
	Role        string  `json:"role" example:"member" enums:"owner,member"`
	InviteCode  string  `json:"invite_code,omitempty" example:"K7Q2M9X4PA"`
	HasRedeemed bool    `json:"has_redeemed" example:"false"`
	JoinedAt    *string `json:"joined_at,omitempty" example:"2026-01-01T00:00:00Z"`
	RedeemedAt  *string `json:"redeemed_at,omitempty" example:"2026-01-02T00:00:00Z"`
}

// NotificationView パック通知
// @Description パック通知
type NotificationView struct {
	Type    string `json:"type" example:"waiting_for_members"`
	Message string `json:"message" example:"Waiting for 2 more members"`
}

// PackStatusResponse パック状態レスポンス
// @Description パック状態レスポンス
type PackStatusResponse struct {
	PackID          string             `json:"pack_id" example:"c5a1be0e-3f7d-4d4e-8f7e-0b9d7f0f4a11"`
	ReleaseID       string             `json:"release_id" example:"rel-1"`
	OwnerID         string             `json:"owner_id" example:"user-1"`
	PackType        string             `json:"pack_type" example:"standard"`
	MaxMembers      int                `json:"max_members" example:"4"`
	CurrentMembers  int                `json:"current_members" example:"2"`
	RemainingSlots  int                `json:"remaining_slots" example:"2"`
	IsComplete      bool               `json:"is_complete" example:"false"`
	IsActive        bool               `json:"is_active" example:"true"`
	OriginalPrice   string             `json:"original_price" example:"200"`
	DiscountedPrice string             `json:"discounted_price" example:"180"`
	DiscountPercent string             `json:"discount_percent" example:"10"`
	ExpiresAt       *string            `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
	Members         []PackMemberView   `json:"members"`
	Notifications   []NotificationView `json:"notifications"`
}
