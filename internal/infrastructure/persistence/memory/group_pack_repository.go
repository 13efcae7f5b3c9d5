package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"unlock-server/internal/domain/group_pack"
)

// GroupPackRepository メモリ実装のGroupPackRepository
type GroupPackRepository struct {
	s *Store
}

// Create パックと全メンバースロットを保存
func (r *GroupPackRepository) Create(ctx context.Context, pack *group_pack.GroupCodePack, members []*group_pack.PackMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.packs[pack.ID()]; ok {
		return fmt.Errorf("pack %s already exists", pack.ID())
	}
	for _, m := range members {
		if _, ok := r.s.memberByInvite[m.InviteCode()]; ok {
			return fmt.Errorf("duplicate invite code: %s", m.InviteCode())
		}
	}

	r.s.packs[pack.ID()] = pack.Record()
	for _, m := range members {
		r.s.members[m.ID()] = m.Record()
		r.s.memberByInvite[m.InviteCode()] = m.ID()
	}

	r.s.onRollback(ctx, func() {
		delete(r.s.packs, pack.ID())
		for _, m := range members {
			delete(r.s.members, m.ID())
			delete(r.s.memberByInvite, m.InviteCode())
		}
	})
	return nil
}

// FindByID パックを取得
func (r *GroupPackRepository) FindByID(ctx context.Context, id string) (*group_pack.GroupCodePack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.packs[id]
	if !ok {
		return nil, group_pack.ErrPackNotFound
	}
	return group_pack.ReconstructPack(rec), nil
}

// FindMembers パックの全メンバースロットを取得（オーナーが先頭）
func (r *GroupPackRepository) FindMembers(ctx context.Context, packID string) ([]*group_pack.PackMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var recs []group_pack.MemberRecord
	for _, m := range r.s.members {
		if m.PackID == packID {
			recs = append(recs, m)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		oi, oj := recs[i].Role == group_pack.MemberRoleOwner, recs[j].Role == group_pack.MemberRoleOwner
		if oi != oj {
			return oi
		}
		return recs[i].ID < recs[j].ID
	})

	members := make([]*group_pack.PackMember, len(recs))
	for i, rec := range recs {
		members[i] = group_pack.ReconstructMember(rec)
	}
	return members, nil
}

// FindMember メンバースロットをIDで取得
func (r *GroupPackRepository) FindMember(ctx context.Context, memberID string) (*group_pack.PackMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.members[memberID]
	if !ok {
		return nil, group_pack.ErrMemberNotFound
	}
	return group_pack.ReconstructMember(rec), nil
}

// FindMemberByInviteCode 招待コードでメンバースロットを取得
func (r *GroupPackRepository) FindMemberByInviteCode(ctx context.Context, inviteCode string) (*group_pack.PackMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.memberByInvite[inviteCode]
	if !ok {
		return nil, group_pack.ErrInviteCodeNotFound
	}
	return group_pack.ReconstructMember(r.s.members[id]), nil
}

// FindMemberByUser パック内のユーザーのスロットを取得
func (r *GroupPackRepository) FindMemberByUser(ctx context.Context, packID, userID string) (*group_pack.PackMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if rec, ok := r.memberByUser(packID, userID); ok {
		return group_pack.ReconstructMember(rec), nil
	}
	return nil, group_pack.ErrMemberNotFound
}

func (r *GroupPackRepository) memberByUser(packID, userID string) (group_pack.MemberRecord, bool) {
	for _, m := range r.s.members {
		if m.PackID == packID && m.UserID == userID && userID != "" {
			return m, true
		}
	}
	return group_pack.MemberRecord{}, false
}

// ClaimSlot 空きスロットのみユーザーに割り当てる
func (r *GroupPackRepository) ClaimSlot(ctx context.Context, memberID, userID string, joinedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.members[memberID]
	if !ok {
		return group_pack.ErrInviteCodeClaimed
	}
	if _, ok := r.memberByUser(prev.PackID, userID); ok {
		return group_pack.ErrAlreadyAMember
	}
	m := group_pack.ReconstructMember(prev)
	if err := m.Claim(userID, joinedAt); err != nil {
		return err
	}

	r.s.members[memberID] = m.Record()
	r.s.onRollback(ctx, func() {
		r.s.members[memberID] = prev
	})
	return nil
}

// IncrementMembers 有効・期限内・満員でないパックのみ人数を増やす
func (r *GroupPackRepository) IncrementMembers(ctx context.Context, packID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.packs[packID]
	if !ok {
		return group_pack.ErrPackFull
	}
	if !prev.IsActive || prev.CurrentMembers >= prev.MaxMembers {
		return group_pack.ErrPackFull
	}
	if prev.ExpiresAt != nil && !r.s.now().Before(*prev.ExpiresAt) {
		return group_pack.ErrPackFull
	}

	next := prev
	next.CurrentMembers++
	r.s.packs[packID] = next
	r.s.onRollback(ctx, func() {
		r.s.packs[packID] = prev
	})
	return nil
}

// MarkMemberRedeemed 未引き換えのスロットのみ引き換え済みにする
func (r *GroupPackRepository) MarkMemberRedeemed(ctx context.Context, memberID, unlockCodeID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.members[memberID]
	if !ok {
		return false, nil
	}
	m := group_pack.ReconstructMember(prev)
	if !m.MarkRedeemed(unlockCodeID, at) {
		return false, nil
	}

	r.s.members[memberID] = m.Record()
	r.s.onRollback(ctx, func() {
		r.s.members[memberID] = prev
	})
	return true, nil
}
