package group_pack

import "errors"

var (
	// ErrPackNotFound パックが見つからないエラー
	ErrPackNotFound = errors.New("pack not found")
	// ErrPackFull パックが満員のエラー
	ErrPackFull = errors.New("pack full")
	// ErrPackInactiveOrExpired パックが無効または期限切れのエラー
	ErrPackInactiveOrExpired = errors.New("pack inactive or expired")
	// ErrPackNotYetComplete パックのメンバーが揃っていないエラー
	ErrPackNotYetComplete = errors.New("pack not yet complete")
	// ErrAlreadyAMember 既にパックのメンバーであるエラー
	ErrAlreadyAMember = errors.New("already a member")
	// ErrNotAMember パックのメンバーではないエラー
	ErrNotAMember = errors.New("not a pack member")
	// ErrInviteCodeNotFound 招待コードが見つからないエラー
	ErrInviteCodeNotFound = errors.New("invite code not found")
	// ErrInviteCodeClaimed 招待コードのスロットが既に使用されているエラー
	ErrInviteCodeClaimed = errors.New("invite code already claimed")
	// ErrMemberNotFound メンバーが見つからないエラー
	ErrMemberNotFound = errors.New("pack member not found")
	// ErrInvalidPackSize パックの人数が範囲外のエラー
	ErrInvalidPackSize = errors.New("invalid pack size")
)
