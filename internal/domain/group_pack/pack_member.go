package group_pack

import (
	"errors"
	"time"
)

// PackMember パックのメンバースロット
// userID が空のスロットは未参加（招待コード未使用）
type PackMember struct {
	id             string
	packID         string
	userID         string
	inviteCode     string
	role           MemberRole
	unlockCodeID   string
	hasRedeemed    bool
	redeemedCodeID string
	joinedAt       *time.Time
	redeemedAt     *time.Time
}

// NewOwnerSlot 購入者のスロットを作成
func NewOwnerSlot(id, packID, userID, inviteCode, unlockCodeID string, joinedAt time.Time) (*PackMember, error) {
	if userID == "" {
		return nil, errors.New("owner slot requires a user")
	}
	m, err := newSlot(id, packID, inviteCode, unlockCodeID, MemberRoleOwner)
	if err != nil {
		return nil, err
	}
	m.userID = userID
	m.joinedAt = &joinedAt
	return m, nil
}

// NewOpenSlot 招待コード付きの空きスロットを作成
func NewOpenSlot(id, packID, inviteCode, unlockCodeID string) (*PackMember, error) {
	return newSlot(id, packID, inviteCode, unlockCodeID, MemberRoleMember)
}

func newSlot(id, packID, inviteCode, unlockCodeID string, role MemberRole) (*PackMember, error) {
	if id == "" || packID == "" || inviteCode == "" || unlockCodeID == "" {
		return nil, errors.New("invalid pack member attributes")
	}
	return &PackMember{
		id:           id,
		packID:       packID,
		inviteCode:   inviteCode,
		role:         role,
		unlockCodeID: unlockCodeID,
	}, nil
}

// MemberRecord 永続化層との受け渡しに使う全属性
type MemberRecord struct {
	ID             string
	PackID         string
	UserID         string
	InviteCode     string
	Role           MemberRole
	UnlockCodeID   string
	HasRedeemed    bool
	RedeemedCodeID string
	JoinedAt       *time.Time
	RedeemedAt     *time.Time
}

// ReconstructMember 永続化されたレコードからメンバーを復元
func ReconstructMember(r MemberRecord) *PackMember {
	return &PackMember{
		id:             r.ID,
		packID:         r.PackID,
		userID:         r.UserID,
		inviteCode:     r.InviteCode,
		role:           r.Role,
		unlockCodeID:   r.UnlockCodeID,
		hasRedeemed:    r.HasRedeemed,
		redeemedCodeID: r.RedeemedCodeID,
		joinedAt:       r.JoinedAt,
		redeemedAt:     r.RedeemedAt,
	}
}

// Record 現在の状態をMemberRecordとして返す
func (m *PackMember) Record() MemberRecord {
	return MemberRecord{
		ID:             m.id,
		PackID:         m.packID,
		UserID:         m.userID,
		InviteCode:     m.inviteCode,
		Role:           m.role,
		UnlockCodeID:   m.unlockCodeID,
		HasRedeemed:    m.hasRedeemed,
		RedeemedCodeID: m.redeemedCodeID,
		JoinedAt:       m.joinedAt,
		RedeemedAt:     m.redeemedAt,
	}
}

// ID メンバーIDを返す
func (m *PackMember) ID() string { return m.id }

// PackID パックIDを返す
func (m *PackMember) PackID() string { return m.packID }

// UserID ユーザーIDを返す（空きスロットは空）
func (m *PackMember) UserID() string { return m.userID }

// InviteCode 招待コードを返す
func (m *PackMember) InviteCode() string { return m.inviteCode }

// Role 役割を返す
func (m *PackMember) Role() MemberRole { return m.role }

// UnlockCodeID スロットに予約されたコードIDを返す
func (m *PackMember) UnlockCodeID() string { return m.unlockCodeID }

// HasRedeemed 引き換え済みかどうか
func (m *PackMember) HasRedeemed() bool { return m.hasRedeemed }

// RedeemedCodeID 引き換えたコードIDを返す
func (m *PackMember) RedeemedCodeID() string { return m.redeemedCodeID }

// JoinedAt 参加日時を返す
func (m *PackMember) JoinedAt() *time.Time { return m.joinedAt }

// RedeemedAt 引き換え日時を返す
func (m *PackMember) RedeemedAt() *time.Time { return m.redeemedAt }

// IsOpen 空きスロットかどうか
func (m *PackMember) IsOpen() bool {
	return m.userID == ""
}

// Claim 空きスロットをユーザーに割り当てる
func (m *PackMember) Claim(userID string, at time.Time) error {
	if !m.IsOpen() {
		return ErrInviteCodeClaimed
	}
	m.userID = userID
	m.joinedAt = &at
	return nil
}

// MarkRedeemed 引き換え済みにする（既に同じコードで引き換え済みなら変更なしでfalse）
func (m *PackMember) MarkRedeemed(codeID string, at time.Time) bool {
	if m.hasRedeemed {
		return false
	}
	m.hasRedeemed = true
	m.redeemedCodeID = codeID
	m.redeemedAt = &at
	return true
}
