package security

import "time"

// RedemptionAttempt 引き換え試行ログ（追記のみ）
type RedemptionAttempt struct {
	ID                string
	CodeID            string // 存在しないコードの場合は空
	SubmittedCode     string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	Success           bool
	FailureReason     string
	AttemptedAt       time.Time
}
