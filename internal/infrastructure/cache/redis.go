package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"unlock-server/internal/domain/security"
	"unlock-server/internal/infrastructure/config"
)

// Connect Redisクライアントを作成し疎通を確認する
// REDIS_URL 形式（redis://）とホスト:ポート形式のどちらも受け付ける
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(cfg.Host, "redis://") {
		opt, err := redis.ParseURL(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Address(),
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// slidingWindowScript 古いエントリを削除し、窓内の件数が上限未満なら今回の試行を追加する
// 戻り値: {許可(1/0), 窓内の件数, 解除時刻(ms)}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisRateLimitStore Redisのソート済みセットによるスライディングウィンドウカウンタ
// 複数インスタンス間でカウンタを共有する
type RedisRateLimitStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRateLimitStore 新しいRedisRateLimitStoreを作成
func NewRedisRateLimitStore(client *redis.Client, prefix string) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: prefix}
}

// Hit 窓内の件数が limit 未満なら記録して許可する
func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (security.RateLimitResult, error) {
	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + "ratelimit:" + key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return security.RateLimitResult{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(res) != 3 {
		return security.RateLimitResult{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}
	return security.RateLimitResult{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		ResetAt: time.UnixMilli(res[2]).UTC(),
	}, nil
}

// RedisBlockList 期限付きキーによるIPブロックリスト
type RedisBlockList struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisBlockList 新しいRedisBlockListを作成
func NewRedisBlockList(client *redis.Client, prefix string) *RedisBlockList {
	return &RedisBlockList{client: client, prefix: prefix, now: time.Now}
}

func (b *RedisBlockList) key(ip string) string {
	return b.prefix + "blocked_ip:" + ip
}

// Block until までIPをブロックする
func (b *RedisBlockList) Block(ctx context.Context, ip string, until time.Time) error {
	ttl := until.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.key(ip), until.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("failed to block ip: %w", err)
	}
	return nil
}

// IsBlocked IPがブロック中かどうか（期限はキーのTTLで管理する）
func (b *RedisBlockList) IsBlocked(ctx context.Context, ip string, now time.Time) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(ip)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blocked ip: %w", err)
	}
	return n > 0, nil
}

// Unblock ブロックを解除する
func (b *RedisBlockList) Unblock(ctx context.Context, ip string) error {
	if err := b.client.Del(ctx, b.key(ip)).Err(); err != nil {
		return fmt.Errorf("failed to unblock ip: %w", err)
	}
	return nil
}
