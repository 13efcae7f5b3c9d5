package memory

import (
	"context"

	"unlock-server/internal/domain/release"
)

// ReleaseRepository メモリ実装のReleaseRepository
type ReleaseRepository struct {
	s *Store
}

// FindByID リリースを取得
func (r *ReleaseRepository) FindByID(ctx context.Context, id string) (*release.Release, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rel, ok := r.s.releases[id]
	if !ok {
		return nil, release.ErrReleaseNotFound
	}
	return rel, nil
}

// Save リリースを登録
func (r *ReleaseRepository) Save(ctx context.Context, rel *release.Release) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.releases[rel.ID()] = rel
	return nil
}

// AccessRepository メモリ実装のAccessRepository
type AccessRepository struct {
	s *Store
}

// Grant アクセス権を付与（既存の付与は保持する）
func (r *AccessRepository) Grant(ctx context.Context, a release.Access) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := accessKey{a.UserID, a.ReleaseID}
	if _, ok := r.s.access[key]; ok {
		return nil
	}
	r.s.access[key] = a
	r.s.onRollback(ctx, func() {
		delete(r.s.access, key)
	})
	return nil
}

// HasAccess アクセス権を持っているかどうか
func (r *AccessRepository) HasAccess(ctx context.Context, userID, releaseID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.access[accessKey{userID, releaseID}]
	return ok, nil
}
