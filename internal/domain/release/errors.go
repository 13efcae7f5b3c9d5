package release

import "errors"

var (
	// ErrReleaseNotFound リリースが見つからないエラー
	ErrReleaseNotFound = errors.New("release not found")
	// ErrReleaseNotOwned リリースの所有者ではないエラー
	ErrReleaseNotOwned = errors.New("release not owned by creator")
)
