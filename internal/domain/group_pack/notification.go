package group_pack

import (
	"fmt"
	"time"
)

// NotificationType パック状態通知の種別
type NotificationType string

const (
	NotificationWaitingForMembers NotificationType = "waiting_for_members"
	NotificationExpiringSoon      NotificationType = "expiring_soon"
	NotificationPackExpired       NotificationType = "pack_expired"
	NotificationPackComplete      NotificationType = "pack_complete"
	NotificationRedeemReady       NotificationType = "redeem_ready"
	NotificationAllRedeemed       NotificationType = "all_redeemed"
)

// ExpiringSoonWindow 期限間近とみなす残り時間
const ExpiringSoonWindow = 24 * time.Hour

// Notification パック状態から導出される通知
type Notification struct {
	Type    NotificationType
	Message string
}

// BuildNotifications パックとメンバーの現在の状態から閲覧者向けの通知を導出する
// 状態を変更せず、同じ入力には同じ結果を返す
func BuildNotifications(pack *GroupCodePack, members []*PackMember, viewerID string, now time.Time) []Notification {
	if !pack.IsActive() || pack.IsExpired(now) {
		return []Notification{{Type: NotificationPackExpired, Message: "This pack is no longer active"}}
	}

	var out []Notification
	if !pack.IsFull() {
		out = append(out, Notification{
			Type:    NotificationWaitingForMembers,
			Message: fmt.Sprintf("Waiting for %d more member(s) to join", pack.RemainingSlots()),
		})
		if pack.ExpiresAt() != nil && pack.ExpiresAt().Sub(now) <= ExpiringSoonWindow {
			out = append(out, Notification{
				Type:    NotificationExpiringSoon,
				Message: fmt.Sprintf("Pack expires at %s", pack.ExpiresAt().UTC().Format(time.RFC3339)),
			})
		}
		return out
	}

	redeemed := 0
	var viewer *PackMember
	for _, m := range members {
		if m.HasRedeemed() {
			redeemed++
		}
		if viewerID != "" && m.UserID() == viewerID {
			viewer = m
		}
	}

	if redeemed == len(members) && len(members) > 0 {
		return append(out, Notification{Type: NotificationAllRedeemed, Message: "Every member has redeemed"})
	}
	out = append(out, Notification{
		Type:    NotificationPackComplete,
		Message: fmt.Sprintf("Pack complete: %d of %d members redeemed", redeemed, len(members)),
	})
	if viewer != nil && !viewer.HasRedeemed() {
		out = append(out, Notification{Type: NotificationRedeemReady, Message: "Your code is ready to redeem"})
	}
	return out
}
