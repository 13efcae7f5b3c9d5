package admin

import (
	"time"

	"github.com/shopspring/decimal"
)

// BulkUpdateRequest コード一括操作リクエスト
type BulkUpdateRequest struct {
	Action          string
	CodeIDs         []string
	IncludeRedeemed bool
	AdminID         string
}

// BulkUpdateResponse コード一括操作レスポンス
type BulkUpdateResponse struct {
	Action    string
	Requested int
	Updated   int64
}

// ListSignalsRequest 不正シグナル一覧リクエスト
type ListSignalsRequest struct {
	Resolved *bool
	Reason   string
	UserID   string
	Limit    int
	Offset   int
}

// FraudSignalInfo 不正シグナル情報
type FraudSignalInfo struct {
	ID         string
	CodeID     string
	UserID     string
	IPAddress  string
	Reason     string
	Score      int
	Details    map[string]interface{}
	Resolved   bool
	ResolvedBy string
	ResolvedAt *time.Time
	FlaggedAt  time.Time
}

// ListSignalsResponse 不正シグナル一覧レスポンス
type ListSignalsResponse struct {
	Signals []FraudSignalInfo
	Total   int
	Limit   int
	Offset  int
}

// AttemptInfo 引き換え試行ログ
type AttemptInfo struct {
	ID                string
	CodeID            string
	SubmittedCode     string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	Success           bool
	FailureReason     string
	AttemptedAt       time.Time
}

// BatchInfo バッチ情報
type BatchInfo struct {
	ID               string
	ReleaseID        string
	CreatorID        string
	Quantity         int
	PricePerCode     decimal.Decimal
	TotalCost        decimal.Decimal
	Currency         string
	PaymentReference string
	ExpiresAt        *time.Time
	CreatedAt        time.Time
}

// CodeInfo 管理画面向けのコード情報
type CodeInfo struct {
	ID             string
	Code           string
	Status         string
	RedeemedBy     string
	RedeemedAt     *time.Time
	DeviceLockedTo string
	IPLockedTo     string
	RevokedReason  string
	GroupPackID    string
	ExpiresAt      *time.Time
}

// BatchCodesResponse バッチ内コード一覧レスポンス
type BatchCodesResponse struct {
	Batch  BatchInfo
	Codes  []CodeInfo
	Total  int
	Limit  int
	Offset int
}
