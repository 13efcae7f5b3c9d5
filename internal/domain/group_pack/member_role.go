package group_pack

import "fmt"

// MemberRole パック内の役割
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"  // 購入者
	MemberRoleMember MemberRole = "member" // 招待されたメンバー
)

// NewMemberRole 新しいMemberRoleを作成
func NewMemberRole(s string) (MemberRole, error) {
	switch MemberRole(s) {
	case MemberRoleOwner, MemberRoleMember:
		return MemberRole(s), nil
	default:
		return "", fmt.Errorf("invalid member role: %s", s)
	}
}

// String 文字列表現を返す
func (r MemberRole) String() string {
	return string(r)
}
