package handler

// BulkUpdateRequest コード一括操作リクエスト
// @Description コード一括操作リクエスト（最大1000件）
type BulkUpdateRequest struct {
	Action          string   `json:"action" example:"revoke" enums:"revoke,mark_invalid,mark_unused"`
	CodeIDs         []string `json:"code_ids" example:"7c1e9a64-0a55-4f0b-9d7e-2b1f5b3c8e11"`
	IncludeRedeemed bool     `json:"include_redeemed" example:"false"`
}

// BulkUpdateResponse コード一括操作レスポンス
// @Description コード一括操作レスポンス
type BulkUpdateResponse struct {
	Action    string `json:"action" example:"revoke"`
	Requested int    `json:"requested" example:"10"`
	Updated   int64  `json:"updated" example:"8"`
}

// SecurityConfigBody セキュリティ設定
// @Description セキュリティ設定
type SecurityConfigBody struct {
	DeviceLockingEnabled       bool    `json:"device_locking_enabled" example:"true"`
	IPLockingEnabled           bool    `json:"ip_locking_enabled" example:"false"`
	AllowDeviceChange          bool    `json:"allow_device_change" example:"true"`
	DeviceChangeLimit          int     `json:"device_change_limit" example:"1"`
	RateLimitingEnabled        bool    `json:"rate_limiting_enabled" example:"true"`
	MaxRedemptionAttempts      int     `json:"max_redemption_attempts" example:"5"`
	RateLimitWindowHours       int     `json:"rate_limit_window_hours" example:"1"`
	FraudDetectionEnabled      bool    `json:"fraud_detection_enabled" example:"true"`
	SuspiciousAttemptThreshold int     `json:"suspicious_attempt_threshold" example:"10"`
	BlockSuspiciousIPs         bool    `json:"block_suspicious_ips" example:"true"`
	AutoBlockDurationHours     int     `json:"auto_block_duration_hours" example:"24"`
	UpdatedBy                  string  `json:"updated_by,omitempty" example:"admin-1"`
	UpdatedAt                  *string `json:"updated_at,omitempty" example:"2026-01-01T00:00:00Z"`
}

// FraudSignalView 不正シグナル
// @Description 不正シグナル
type FraudSignalView struct {
	ID         string                 `json:"id" example:"f0e1d2c3-b4a5-4968-8776-655443322110"`
	CodeID     string                 `json:"code_id,omitempty" example:"7c1e9a64-0a55-4f0b-9d7e-2b1f5b3c8e11"`
	UserID     string                 `json:"user_id,omitempty" example:"user-1"`
	IPAddress  string                 `json:"ip_address,omitempty" example:"203.0.113.7"`
	Reason     string                 `json:"reason" example:"RATE_EXCEEDED"`
	Score      int                    `json:"score" example:"12"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Resolved   bool                   `json:"resolved" example:"false"`
	ResolvedBy string                 `json:"resolved_by,omitempty" example:"admin-1"`
	ResolvedAt *string                `json:"resolved_at,omitempty" example:"2026-01-02T00:00:00Z"`
	FlaggedAt  string                 `json:"flagged_at" example:"2026-01-01T00:00:00Z"`
}

// ListFraudSignalsResponse 不正シグナル一覧レスポンス
// @Description 不正シグナル一覧レスポンス
type ListFraudSignalsResponse struct {
	Signals []FraudSignalView `json:"signals"`
	Total   int               `json:"total" example:"42"`
	Limit   int               `json:"limit" example:"50"`
	Offset  int               `json:"offset" example:"0"`
}

// UnblockIPRequest IPブロック解除リクエスト
// @Description IPブロック解除リクエスト
type UnblockIPRequest struct {
	IPAddress string `json:"ip_address" example:"203.0.113.7"`
}

// AttemptView 引き換え試行ログ
// @Description 引き換え試行ログ
type AttemptView struct {
	ID                string `json:"id" example:"a1b2c3d4-e5f6-4789-90ab-cdef01234567"`
	CodeID            string `json:"code_id,omitempty" example:"7c1e9a64-0a55-4f0b-9d7e-2b1f5b3c8e11"`
	SubmittedCode     string `json:"submitted_code" example:"ABCDEFGHJKLM"`
	UserID            string `json:"user_id,omitempty" example:"user-1"`
	IPAddress         string `json:"ip_address" example:"203.0.113.7"`
	UserAgent         string `json:"user_agent,omitempty" example:"Mozilla/5.0"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty" example:"fp_3f9a2c"`
	Success           bool   `json:"success" example:"false"`
	FailureReason     string `json:"failure_reason,omitempty" example:"code_already_redeemed"`
	AttemptedAt       string `json:"attempted_at" example:"2026-01-01T00:00:00Z"`
}

// ListAttemptsResponse 引き換え試行ログ一覧レスポンス
// @Description 引き換え試行ログ一覧レスポンス
type ListAttemptsResponse struct {
	Attempts []AttemptView `json:"attempts"`
}

// BatchView バッチ情報
// @Description バッチ情報
type BatchView struct {
	ID               string  `json:"id" example:"3b0c8d5e-6f0e-4a39-9d8b-1f4f3f8b9a21"`
	ReleaseID        string  `json:"release_id" example:"rel-1"`
	CreatorID        string  `json:"creator_id" example:"creator-1"`
	Quantity         int     `json:"quantity" example:"5"`
	PricePerCode     string  `json:"price_per_code" example:"50"`
	TotalCost        string  `json:"total_cost" example:"250"`
	Currency         string  `json:"currency" example:"USD"`
	PaymentReference string  `json:"payment_reference" example:"pay_8f2a"`
	ExpiresAt        *string `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
	CreatedAt        string  `json:"created_at" example:"2026-01-01T00:00:00Z"`
}

// AdminCodeView 管理画面向けのコード
// @Description 管理画面向けのコード
type AdminCodeView struct {
	ID             string  `json:"id" example:"7c1e9a64-0a55-4f0b-9d7e-2b1f5b3c8e11"`
	Code           string  `json:"code" example:"ABCD-EFGH-JKLM"`
	Status         string  `json:"status" example:"UNUSED"`
	RedeemedBy     string  `json:"redeemed_by,omitempty" example:"user-1"`
	RedeemedAt     *string `json:"redeemed_at,omitempty" example:"2026-01-02T00:00:00Z"`
	DeviceLockedTo string  `json:"device_locked_to,omitempty" example:"fp_3f9a2c"`
	IPLockedTo     string  `json:"ip_locked_to,omitempty" example:"203.0.113.7"`
	RevokedReason  string  `json:"revoked_reason,omitempty" example:"revoked_by_admin"`
	GroupPackID    string  `json:"group_pack_id,omitempty" example:"c5a1be0e-3f7d-4d4e-8f7e-0b9d7f0f4a11"`
	ExpiresAt      *string `json:"expires_at,omitempty" example:"2026-12-31T23:59:59Z"`
}

// BatchCodesResponse バッチ内コード一覧レスポンス
// @Description バッチ内コード一覧レスポンス
type BatchCodesResponse struct {
	Batch  BatchView       `json:"batch"`
	Codes  []AdminCodeView `json:"codes"`
	Total  int             `json:"total" example:"5"`
	Limit  int             `json:"limit" example:"50"`
	Offset int             `json:"offset" example:"0"`
}
