package security

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeviceMismatch デバイスロック先と一致しないエラー
	ErrDeviceMismatch = errors.New("device mismatch")
	// ErrIPMismatch IPロック先と一致しないエラー
	ErrIPMismatch = errors.New("ip mismatch")
	// ErrRateLimited レート制限超過エラー
	ErrRateLimited = errors.New("rate limited")
	// ErrFraudBlocked 不正検知によりブロックされたエラー
	ErrFraudBlocked = errors.New("blocked by fraud detection")
	// ErrInvalidConfiguration セキュリティ設定が不正なエラー
	ErrInvalidConfiguration = errors.New("invalid security configuration")
	// ErrConfigurationNotFound セキュリティ設定が保存されていないエラー
	ErrConfigurationNotFound = errors.New("security configuration not found")
	// ErrFraudSignalNotFound 不正シグナルが見つからないエラー
	ErrFraudSignalNotFound = errors.New("fraud signal not found")
	// ErrFraudSignalResolved 不正シグナルが解決済みのエラー
	ErrFraudSignalResolved = errors.New("fraud signal already resolved")
)

// RateLimitedError レート制限超過エラー（解除時刻を保持）
type RateLimitedError struct {
	ResetAt time.Time
}

// Error エラーメッセージを返す
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// Unwrap ErrRateLimited を返す
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfter 指定時刻から解除までの残り時間
func (e *RateLimitedError) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
