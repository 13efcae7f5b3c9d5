package security

import (
	"fmt"
	"time"
)

// Configuration セキュリティ設定（シングルトン）
// 保存されていない場合は DefaultConfiguration（全保護機能オフ）として扱う
type Configuration struct {
	DeviceLockingEnabled       bool      `json:"device_locking_enabled"`
	IPLockingEnabled           bool      `json:"ip_locking_enabled"`
	AllowDeviceChange          bool      `json:"allow_device_change"`
	DeviceChangeLimit          int       `json:"device_change_limit"`
	RateLimitingEnabled        bool      `json:"rate_limiting_enabled"`
	MaxRedemptionAttempts      int       `json:"max_redemption_attempts"`
	RateLimitWindowHours       int       `json:"rate_limit_window_hours"`
	FraudDetectionEnabled      bool      `json:"fraud_detection_enabled"`
	SuspiciousAttemptThreshold int       `json:"suspicious_attempt_threshold"`
	BlockSuspiciousIPs         bool      `json:"block_suspicious_ips"`
	AutoBlockDurationHours     int       `json:"auto_block_duration_hours"`
	UpdatedBy                  string    `json:"updated_by,omitempty"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// DefaultConfiguration 設定が未保存の場合の既定値（全保護機能オフ）
func DefaultConfiguration() Configuration {
	return Configuration{
		DeviceChangeLimit:          1,
		MaxRedemptionAttempts:      5,
		RateLimitWindowHours:       1,
		SuspiciousAttemptThreshold: 10,
		AutoBlockDurationHours:     24,
	}
}

// Validate 設定値を検証
func (c Configuration) Validate() error {
	if c.DeviceChangeLimit < 0 {
		return fmt.Errorf("%w: device_change_limit must be >= 0", ErrInvalidConfiguration)
	}
	if c.RateLimitingEnabled && c.MaxRedemptionAttempts < 1 {
		return fmt.Errorf("%w: max_redemption_attempts must be >= 1", ErrInvalidConfiguration)
	}
	if c.RateLimitingEnabled && c.RateLimitWindowHours < 1 {
		return fmt.Errorf("%w: rate_limit_window_hours must be >= 1", ErrInvalidConfiguration)
	}
	if c.FraudDetectionEnabled && c.SuspiciousAttemptThreshold < 1 {
		return fmt.Errorf("%w: suspicious_attempt_threshold must be >= 1", ErrInvalidConfiguration)
	}
	if c.BlockSuspiciousIPs && c.AutoBlockDurationHours < 1 {
		return fmt.Errorf("%w: auto_block_duration_hours must be >= 1", ErrInvalidConfiguration)
	}
	return nil
}

// Window レート制限・不正スコア集計の時間窓
func (c Configuration) Window() time.Duration {
	if c.RateLimitWindowHours < 1 {
		return time.Hour
	}
	return time.Duration(c.RateLimitWindowHours) * time.Hour
}

// AutoBlockDuration 自動ブロックの期間
func (c Configuration) AutoBlockDuration() time.Duration {
	return time.Duration(c.AutoBlockDurationHours) * time.Hour
}
