package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/transaction"
	"unlock-server/internal/domain/unlock_code"
)

// GroupPackCoordinator パックの参加・完成判定・メンバー引き換えを調整するドメインサービス
// 完成状態は保持せず、常にストレージの現在値から判定する
type GroupPackCoordinator struct {
	packRepo  group_pack.GroupPackRepository
	txManager transaction.TransactionManager
	now       func() time.Time
}

// NewGroupPackCoordinator 新しいGroupPackCoordinatorを作成
func NewGroupPackCoordinator(packRepo group_pack.GroupPackRepository, txManager transaction.TransactionManager) *GroupPackCoordinator {
	return &GroupPackCoordinator{
		packRepo:  packRepo,
		txManager: txManager,
		now:       time.Now,
	}
}

// WithClock 時刻の取得元を差し替える
func (c *GroupPackCoordinator) WithClock(now func() time.Time) *GroupPackCoordinator {
	c.now = now
	return c
}

// JoinPack 招待コードのスロットを取得し、パックの人数を増やす
// packID が空でない場合は招待コードがそのパックのものであることも確認する
func (c *GroupPackCoordinator) JoinPack(ctx context.Context, packID, inviteCode, userID string) (*group_pack.GroupCodePack, *group_pack.PackMember, error) {
	slot, err := c.packRepo.FindMemberByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, nil, err
	}
	if packID != "" && slot.PackID() != packID {
		return nil, nil, group_pack.ErrInviteCodeNotFound
	}

	pack, err := c.packRepo.FindByID(ctx, slot.PackID())
	if err != nil {
		return nil, nil, err
	}
	if err := pack.CheckJoinable(c.now()); err != nil {
		return nil, nil, err
	}
	if slot.UserID() == userID {
		return nil, nil, group_pack.ErrAlreadyAMember
	}
	if _, err := c.packRepo.FindMemberByUser(ctx, pack.ID(), userID); err == nil {
		return nil, nil, group_pack.ErrAlreadyAMember
	} else if !errors.Is(err, group_pack.ErrMemberNotFound) {
		return nil, nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !slot.IsOpen() {
		return nil, nil, group_pack.ErrInviteCodeClaimed
	}

	joinedAt := c.now()
	err = c.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := c.packRepo.ClaimSlot(ctx, slot.ID(), userID, joinedAt); err != nil {
			return err
		}
		return c.packRepo.IncrementMembers(ctx, pack.ID())
	})
	if err != nil {
		return nil, nil, err
	}

	updated, err := c.packRepo.FindByID(ctx, pack.ID())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload pack: %w", err)
	}
	if err := slot.Claim(userID, joinedAt); err != nil {
		return nil, nil, err
	}
	return updated, slot, nil
}

// CheckRedeemable パックコードが引き換え可能か（パックが完成し、呼び出し元がスロットの持ち主か）を判定する
func (c *GroupPackCoordinator) CheckRedeemable(ctx context.Context, code *unlock_code.UnlockCode, userID string) error {
	pack, err := c.packRepo.FindByID(ctx, code.GroupPackID())
	if err != nil {
		return err
	}
	if err := pack.CheckRedeemable(c.now()); err != nil {
		return err
	}
	member, err := c.packRepo.FindMember(ctx, code.GroupMemberID())
	if err != nil {
		if errors.Is(err, group_pack.ErrMemberNotFound) {
			return group_pack.ErrNotAMember
		}
		return err
	}
	if member.UserID() != userID {
		return group_pack.ErrNotAMember
	}
	return nil
}

// OnMemberRedeemed メンバーを引き換え済みにする（引き換えトランザクション内で呼び出す）
// 同じコードで既に引き換え済みなら何もしない
func (c *GroupPackCoordinator) OnMemberRedeemed(ctx context.Context, packID, memberID, unlockCodeID string) error {
	changed, err := c.packRepo.MarkMemberRedeemed(ctx, memberID, unlockCodeID, c.now())
	if err != nil {
		return fmt.Errorf("failed to mark member redeemed: %w", err)
	}
	if changed {
		return nil
	}
	member, err := c.packRepo.FindMember(ctx, memberID)
	if err != nil {
		return err
	}
	if member.PackID() != packID || member.RedeemedCodeID() != unlockCodeID {
		return fmt.Errorf("member %s already redeemed a different code", memberID)
	}
	return nil
}
