package release

import (
	"context"
)

// ReleaseRepository リリースカタログの読み取りインターフェース
type ReleaseRepository interface {
	// FindByID リリースを取得
	FindByID(ctx context.Context, id string) (*Release, error)
}

// AccessRepository アクセス権リポジトリインターフェース
type AccessRepository interface {
	// Grant アクセス権を付与（既に付与済みなら何もしない）
	Grant(ctx context.Context, access Access) error

	// HasAccess アクセス権を持っているかどうか
	HasAccess(ctx context.Context, userID, releaseID string) (bool, error)
}
