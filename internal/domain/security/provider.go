package security

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ConfigurationProvider 現在有効なセキュリティ設定を提供する
type ConfigurationProvider interface {
	Current(ctx context.Context) (Configuration, error)
	Invalidate()
}

// CachedConfigurationProvider TTL付きで設定をキャッシュするプロバイダー
// 管理者による更新時は Invalidate で即時反映する
type CachedConfigurationProvider struct {
	repo ConfigurationRepository
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	cached   *Configuration
	loadedAt time.Time
}

// NewCachedConfigurationProvider 新しいCachedConfigurationProviderを作成
func NewCachedConfigurationProvider(repo ConfigurationRepository, ttl time.Duration) *CachedConfigurationProvider {
	return &CachedConfigurationProvider{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Current 設定を返す（未保存なら DefaultConfiguration）
// 再読み込みに失敗した場合は直前の値を返し、値がなければエラーを返す
func (p *CachedConfigurationProvider) Current(ctx context.Context) (Configuration, error) {
	now := p.now()

	p.mu.RLock()
	if p.cached != nil && now.Sub(p.loadedAt) < p.ttl {
		cfg := *p.cached
		p.mu.RUnlock()
		return cfg, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil && now.Sub(p.loadedAt) < p.ttl {
		return *p.cached, nil
	}

	loaded, err := p.repo.Find(ctx)
	switch {
	case errors.Is(err, ErrConfigurationNotFound):
		def := DefaultConfiguration()
		loaded = &def
	case err != nil:
		if p.cached != nil {
			return *p.cached, nil
		}
		return Configuration{}, err
	}

	p.cached = loaded
	p.loadedAt = now
	return *loaded, nil
}

// Invalidate キャッシュを破棄する
func (p *CachedConfigurationProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
}
