package handler

// ValidateCodeRequest コード検証リクエスト
// @Description コード検証リクエスト（ハイフン・大文字小文字は区別しない）
type ValidateCodeRequest struct {
	Code string `json:"code" example:"ABCD-EFGH-JKLM"`
}

// ValidateCodeResponse コード検証レスポンス
// @Description コード検証レスポンス
type ValidateCodeResponse struct {
	Valid     bool         `json:"valid" example:"true"`
	Code      string       `json:"code,omitempty" example:"ABCD-EFGH-JKLM"`
	Status    string       `json:"status,omitempty" example:"UNUSED" enums:"UNUSED,REDEEMED,REVOKED"`
	Reason    string       `json:"reason,omitempty" example:"code_expired"`
	ExpiresAt *string      `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
	IsPack    bool         `json:"is_pack" example:"false"`
	Release   *ReleaseView `json:"release,omitempty"`
}

// RedeemCodeRequest コード引き換えリクエスト
// @Description コード引き換えリクエスト（ユーザーはトークンから、IPとUser-Agentはリクエストから取得）
type RedeemCodeRequest struct {
	Code              string `json:"code" example:"ABCD-EFGH-JKLM"`
	DeviceFingerprint string `json:"device_fingerprint" example:"fp_3f9a2c"`
}

// RedeemCodeResponse コード引き換えレスポンス
// @Description コード引き換えレスポンス
type RedeemCodeResponse struct {
	Success       bool        `json:"success" example:"true"`
	CodeID        string      `json:"code_id" example:"7c1e9a64-0a55-4f0b-9d7e-2b1f5b3c8e11"`
	Code          string      `json:"code" example:"ABCD-EFGH-JKLM"`
	RedeemedAt    string      `json:"redeemed_at" example:"2026-01-01T00:00:00Z"`
	DeviceChanged bool        `json:"device_changed" example:"false"`
	Release       ReleaseView `json:"release"`
	Access        AccessView  `json:"access"`
}
