package handler

// QuoteRequest 価格見積もりリクエスト
// @Description 価格見積もりリクエスト（pack_members 指定時はグループ割引を適用）
type QuoteRequest struct {
	ReleaseID   string `json:"release_id" example:"rel-1"`
	Quantity    int    `json:"quantity" example:"5"`
	PackMembers int    `json:"pack_members,omitempty" example:"0"`
	PackType    string `json:"pack_type,omitempty" example:"standard"`
}

// GenerateCodesRequest コード生成リクエスト
// @Description コード生成リクエスト
type GenerateCodesRequest struct {
	ReleaseID        string `json:"release_id" example:"rel-1"`
	Quantity         int    `json:"quantity" example:"5"`
	PaymentMethod    string `json:"payment_method" example:"card" enums:"wallet,card,crypto,bank_transfer"`
	PaymentReference string `json:"payment_reference,omitempty" example:"pay_8f2a"`
	ExpiresAt        string `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
}

// GenerateCodesResponse コード生成レスポンス
// @Description コード生成レスポンス
type GenerateCodesResponse struct {
	BatchID          string    `json:"batch_id" example:"3b0c8d5e-6f0e-4a39-9d8b-1f4f3f8b9a21"`
	ReleaseID        string    `json:"release_id" example:"rel-1"`
	Quantity         int       `json:"quantity" example:"5"`
	Codes            []string  `json:"codes" example:"ABCD-EFGH-JKLM"`
	Quote            QuoteView `json:"quote"`
	PaymentMethod    string    `json:"payment_method" example:"card"`
	PaymentReference string    `json:"payment_reference" example:"pay_8f2a"`
	WalletBalance    *string   `json:"wallet_balance,omitempty" example:"750"`
	ExpiresAt        *string   `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
	CreatedAt        string    `json:"created_at" example:"2026-01-01T00:00:00Z"`
}

// CreatePackRequest パック作成リクエスト
// @Description パック作成リクエスト（owner_id 省略時はクリエイター自身）
type CreatePackRequest struct {
	ReleaseID        string `json:"release_id" example:"rel-1"`
	OwnerID          string `json:"owner_id,omitempty" example:"user-1"`
	PackType         string `json:"pack_type" example:"standard"`
	MaxMembers       int    `json:"max_members" example:"4"`
	PaymentMethod    string `json:"payment_method" example:"wallet" enums:"wallet,card,crypto,bank_transfer"`
	PaymentReference string `json:"payment_reference,omitempty" example:"pay_8f2a"`
	ExpiresAt        string `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
}

// CreatePackResponse パック作成レスポンス
// @Description パック作成レスポンス
type CreatePackResponse struct {
	PackID           string    `json:"pack_id" example:"c5a1be0e-3f7d-4d4e-8f7e-0b9d7f0f4a11"`
	BatchID          string    `json:"batch_id" example:"3b0c8d5e-6f0e-4a39-9d8b-1f4f3f8b9a21"`
	ReleaseID        string    `json:"release_id" example:"rel-1"`
	OwnerID          string    `json:"owner_id" example:"user-1"`
	PackType         string    `json:"pack_type" example:"standard"`
	MaxMembers       int       `json:"max_members" example:"4"`
	CurrentMembers   int       `json:"current_members" example:"1"`
	InviteCodes      []string  `json:"invite_codes" example:"K7Q2M9X4PA"`
	Quote            QuoteView `json:"quote"`
	PaymentMethod    string    `json:"payment_method" example:"wallet"`
	PaymentReference string    `json:"payment_reference" example:"wallet:3b0c8d5e-6f0e-4a39-9d8b-1f4f3f8b9a21"`
	WalletBalance    *string   `json:"wallet_balance,omitempty" example:"820"`
	ExpiresAt        *string   `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
	CreatedAt        string    `json:"created_at" example:"2026-01-01T00:00:00Z"`
}
