// Package cache レート制限カウンタとIPブロックリストの実装
package cache

import (
	"context"
	"sync"
	"time"

	"unlock-server/internal/domain/security"
)

// MemoryRateLimitStore プロセス内のスライディングウィンドウカウンタ
// 再起動やプロセス間ではカウンタを共有しない
type MemoryRateLimitStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryRateLimitStore 新しいMemoryRateLimitStoreを作成
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{hits: make(map[string][]time.Time)}
}

// Hit 窓内の件数が limit 未満なら記録して許可する
func (s *MemoryRateLimitStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (security.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	live := s.hits[key][:0]
	for _, t := range s.hits[key] {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	allowed := len(live) < limit
	if allowed {
		live = append(live, now)
	}
	if len(live) == 0 {
		delete(s.hits, key)
	} else {
		s.hits[key] = live
	}

	resetAt := now.Add(window)
	if len(live) > 0 {
		resetAt = live[0].Add(window)
	}
	return security.RateLimitResult{
		Allowed: allowed,
		Count:   len(live),
		ResetAt: resetAt,
	}, nil
}

// MemoryBlockList プロセス内のIPブロックリスト
type MemoryBlockList struct {
	mu      sync.Mutex
	blocked map[string]time.Time
}

// NewMemoryBlockList 新しいMemoryBlockListを作成
func NewMemoryBlockList() *MemoryBlockList {
	return &MemoryBlockList{blocked: make(map[string]time.Time)}
}

// Block until までIPをブロックする（既存のブロックより長い場合のみ延長）
func (b *MemoryBlockList) Block(ctx context.Context, ip string, until time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.blocked[ip]; ok && cur.After(until) {
		return nil
	}
	b.blocked[ip] = until
	return nil
}

// IsBlocked IPがブロック中かどうか
func (b *MemoryBlockList) IsBlocked(ctx context.Context, ip string, now time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.blocked[ip]
	if !ok {
		return false, nil
	}
	if !now.Before(until) {
		delete(b.blocked, ip)
		return false, nil
	}
	return true, nil
}

// Unblock ブロックを解除する
func (b *MemoryBlockList) Unblock(ctx context.Context, ip string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.blocked, ip)
	return nil
}
