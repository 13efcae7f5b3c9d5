package security

import (
	"context"
	"time"
)

// RateLimitResult スライディングウィンドウ判定の結果
type RateLimitResult struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// RateLimitStore スライディングウィンドウのカウンタストア
// Hit は窓内の件数が limit 未満の場合のみ記録し Allowed を返す
type RateLimitStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (RateLimitResult, error)
}

// BlockList IPブロックリスト
type BlockList interface {
	Block(ctx context.Context, ip string, until time.Time) error
	IsBlocked(ctx context.Context, ip string, now time.Time) (bool, error)
	Unblock(ctx context.Context, ip string) error
}

// RateLimitKey 識別子とアクションからカウンタのキーを組み立てる
func RateLimitKey(action, kind, identifier string) string {
	return action + ":" + kind + ":" + identifier
}
