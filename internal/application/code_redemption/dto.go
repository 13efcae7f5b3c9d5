package code_redemption

import (
	"time"
)

// ReleaseInfo 引き換え対象リリースの概要
type ReleaseInfo struct {
	ID         string
	CreatorID  string
	Title      string
	ArtistName string
	CoverURL   string
}

// ValidateCodeRequest コード検証リクエスト
type ValidateCodeRequest struct {
	Code      string
	UserID    string // optional
	IPAddress string
}

// ValidateCodeResponse コード検証レスポンス
type ValidateCodeResponse struct {
	Valid     bool
	Code      string
	Status    string
	Reason    string // Valid=false の場合の理由
	ExpiresAt *time.Time
	IsPack    bool
	Release   *ReleaseInfo
}

// RedeemCodeRequest コード引き換えリクエスト
type RedeemCodeRequest struct {
	Code              string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// AccessInfo 付与されたアクセス権
type AccessInfo struct {
	UserID    string
	ReleaseID string
	Source    string
	GrantedAt time.Time
}

// RedeemCodeResponse コード引き換えレスポンス
type RedeemCodeResponse struct {
	Success       bool
	CodeID        string
	Code          string
	RedeemedAt    time.Time
	DeviceChanged bool
	Release       ReleaseInfo
	Access        AccessInfo
}
