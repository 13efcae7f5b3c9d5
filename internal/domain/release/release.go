package release

import "time"

// Release リリース（楽曲・アルバム）のメタデータ
type Release struct {
	id         string
	creatorID  string
	title      string
	artistName string
	coverURL   string
	createdAt  time.Time
}

// NewRelease 新しいReleaseを作成
func NewRelease(id, creatorID, title, artistName, coverURL string, createdAt time.Time) *Release {
	return &Release{
		id:         id,
		creatorID:  creatorID,
		title:      title,
		artistName: artistName,
		coverURL:   coverURL,
		createdAt:  createdAt,
	}
}

// ID リリースIDを返す
func (r *Release) ID() string { return r.id }

// CreatorID クリエイターIDを返す
func (r *Release) CreatorID() string { return r.creatorID }

// Title タイトルを返す
func (r *Release) Title() string { return r.title }

// ArtistName アーティスト名を返す
func (r *Release) ArtistName() string { return r.artistName }

// CoverURL カバー画像URLを返す
func (r *Release) CoverURL() string { return r.coverURL }

// CreatedAt 作成日時を返す
func (r *Release) CreatedAt() time.Time { return r.createdAt }

// IsOwnedBy 指定クリエイターのリリースかどうか
func (r *Release) IsOwnedBy(creatorID string) bool {
	return r.creatorID == creatorID
}

// AccessSource アクセス権の付与元
type AccessSource string

const (
	AccessSourceUnlockCode AccessSource = "unlock_code"
	AccessSourceGroupPack  AccessSource = "group_pack"
)

// Access リリースへのアクセス権
type Access struct {
	UserID    string
	ReleaseID string
	Source    AccessSource
	CodeID    string
	GrantedAt time.Time
}
