package group_pack

import (
	"context"
	"time"
)

// GroupPackRepository グループパックリポジトリインターフェース
type GroupPackRepository interface {
	// Create パックと全メンバースロットを保存
	Create(ctx context.Context, pack *GroupCodePack, members []*PackMember) error

	// FindByID パックを取得
	FindByID(ctx context.Context, id string) (*GroupCodePack, error)

	// FindMembers パックの全メンバースロットを取得
	FindMembers(ctx context.Context, packID string) ([]*PackMember, error)

	// FindMember メンバースロットをIDで取得
	FindMember(ctx context.Context, memberID string) (*PackMember, error)

	// FindMemberByInviteCode 招待コードでメンバースロットを取得
	FindMemberByInviteCode(ctx context.Context, inviteCode string) (*PackMember, error)

	// FindMemberByUser パック内のユーザーのスロットを取得
	FindMemberByUser(ctx context.Context, packID, userID string) (*PackMember, error)

	// ClaimSlot user_id IS NULL のスロットのみユーザーに割り当てる
	// 既に割り当て済みなら ErrInviteCodeClaimed、同一パックに参加済みなら ErrAlreadyAMember
	ClaimSlot(ctx context.Context, memberID, userID string, joinedAt time.Time) error

	// IncrementMembers current_members < max_members かつ有効なパックのみ人数を増やす
	// 更新行がない場合は ErrPackFull
	IncrementMembers(ctx context.Context, packID string) error

	// MarkMemberRedeemed has_redeemed = false のスロットのみ引き換え済みにする
	// 更新した場合 true を返す
	MarkMemberRedeemed(ctx context.Context, memberID, unlockCodeID string, at time.Time) (bool, error)
}
