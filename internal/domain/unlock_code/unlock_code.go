package unlock_code

import (
	"errors"
	"time"
)

// UnlockCode アンロックコードエンティティ
type UnlockCode struct {
	id                string
	code              string
	releaseID         string
	creatorID         string
	batchID           string
	status            CodeStatus
	deviceLockedTo    string
	ipLockedTo        string
	redeemedBy        string
	redeemedAt        *time.Time
	groupPackID       string
	groupMemberID     string
	deviceChangeCount int
	expiresAt         *time.Time
	revokedReason     string
	createdAt         time.Time
	updatedAt         time.Time
}

// NewUnlockCode 新しい未使用のUnlockCodeエンティティを作成
func NewUnlockCode(id, code, releaseID, creatorID, batchID string, expiresAt *time.Time) (*UnlockCode, error) {
	if id == "" || releaseID == "" || creatorID == "" || batchID == "" {
		return nil, errors.New("invalid unlock code attributes")
	}
	if _, err := ParseCode(code); err != nil {
		return nil, err
	}
	now := time.Now()
	return &UnlockCode{
		id:        id,
		code:      code,
		releaseID: releaseID,
		creatorID: creatorID,
		batchID:   batchID,
		status:    CodeStatusUnused,
		expiresAt: expiresAt,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Record 永続化層との受け渡しに使う全属性
type Record struct {
	ID                string
	Code              string
	ReleaseID         string
	CreatorID         string
	BatchID           string
	Status            CodeStatus
	DeviceLockedTo    string
	IPLockedTo        string
	RedeemedBy        string
	RedeemedAt        *time.Time
	GroupPackID       string
	GroupMemberID     string
	DeviceChangeCount int
	ExpiresAt         *time.Time
	RevokedReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reconstruct 永続化されたレコードからUnlockCodeを復元（リポジトリから読み込んだ際に使用）
func Reconstruct(r Record) *UnlockCode {
	return &UnlockCode{
		id:                r.ID,
		code:              r.Code,
		releaseID:         r.ReleaseID,
		creatorID:         r.CreatorID,
		batchID:           r.BatchID,
		status:            r.Status,
		deviceLockedTo:    r.DeviceLockedTo,
		ipLockedTo:        r.IPLockedTo,
		redeemedBy:        r.RedeemedBy,
		redeemedAt:        r.RedeemedAt,
		groupPackID:       r.GroupPackID,
		groupMemberID:     r.GroupMemberID,
		deviceChangeCount: r.DeviceChangeCount,
		expiresAt:         r.ExpiresAt,
		revokedReason:     r.RevokedReason,
		createdAt:         r.CreatedAt,
		updatedAt:         r.UpdatedAt,
	}
}

// Record 現在の状態をRecordとして返す
func (uc *UnlockCode) Record() Record {
	return Record{
		ID:                uc.id,
		Code:              uc.code,
		ReleaseID:         uc.releaseID,
		CreatorID:         uc.creatorID,
		BatchID:           uc.batchID,
		Status:            uc.status,
		DeviceLockedTo:    uc.deviceLockedTo,
		IPLockedTo:        uc.ipLockedTo,
		RedeemedBy:        uc.redeemedBy,
		RedeemedAt:        uc.redeemedAt,
		GroupPackID:       uc.groupPackID,
		GroupMemberID:     uc.groupMemberID,
		DeviceChangeCount: uc.deviceChangeCount,
		ExpiresAt:         uc.expiresAt,
		RevokedReason:     uc.revokedReason,
		CreatedAt:         uc.createdAt,
		UpdatedAt:         uc.updatedAt,
	}
}

// ID コードIDを返す
func (uc *UnlockCode) ID() string {
	return uc.id
}

// Code 正規化済みのコード文字列を返す
func (uc *UnlockCode) Code() string {
	return uc.code
}

// ReleaseID リリースIDを返す
func (uc *UnlockCode) ReleaseID() string {
	return uc.releaseID
}

// CreatorID クリエイターIDを返す
func (uc *UnlockCode) CreatorID() string {
	return uc.creatorID
}

// BatchID バッチIDを返す
func (uc *UnlockCode) BatchID() string {
	return uc.batchID
}

// Status ステータスを返す
func (uc *UnlockCode) Status() CodeStatus {
	return uc.status
}

// DeviceLockedTo ロック先のデバイスフィンガープリントを返す
func (uc *UnlockCode) DeviceLockedTo() string {
	return uc.deviceLockedTo
}

// IPLockedTo ロック先のIPアドレスを返す
func (uc *UnlockCode) IPLockedTo() string {
	return uc.ipLockedTo
}

// RedeemedBy 引き換えたユーザーIDを返す
func (uc *UnlockCode) RedeemedBy() string {
	return uc.redeemedBy
}

// RedeemedAt 引き換え日時を返す
func (uc *UnlockCode) RedeemedAt() *time.Time {
	return uc.redeemedAt
}

// GroupPackID グループパックIDを返す（パック外のコードは空）
func (uc *UnlockCode) GroupPackID() string {
	return uc.groupPackID
}

// GroupMemberID 予約先のパックメンバーIDを返す
func (uc *UnlockCode) GroupMemberID() string {
	return uc.groupMemberID
}

// DeviceChangeCount デバイス変更回数を返す
func (uc *UnlockCode) DeviceChangeCount() int {
	return uc.deviceChangeCount
}

// ExpiresAt 有効期限を返す
func (uc *UnlockCode) ExpiresAt() *time.Time {
	return uc.expiresAt
}

// RevokedReason 失効理由を返す
func (uc *UnlockCode) RevokedReason() string {
	return uc.revokedReason
}

// CreatedAt 作成日時を返す
func (uc *UnlockCode) CreatedAt() time.Time {
	return uc.createdAt
}

// UpdatedAt 更新日時を返す
func (uc *UnlockCode) UpdatedAt() time.Time {
	return uc.updatedAt
}

// IsPackCode グループパックに属するコードかどうか
func (uc *UnlockCode) IsPackCode() bool {
	return uc.groupPackID != ""
}

// IsExpired 指定時刻時点で期限切れかどうか
func (uc *UnlockCode) IsExpired(now time.Time) bool {
	return uc.expiresAt != nil && !now.Before(*uc.expiresAt)
}

// CheckRedeemable 引き換え可能な状態かをチェックし、不可の場合は理由のエラーを返す
func (uc *UnlockCode) CheckRedeemable(now time.Time) error {
	switch uc.status {
	case CodeStatusRevoked:
		return ErrCodeRevoked
	case CodeStatusRedeemed:
		return ErrCodeAlreadyRedeemed
	}
	if uc.IsExpired(now) {
		return ErrCodeExpired
	}
	return nil
}

// AssignToPack パックのメンバースロットにコードを予約する
func (uc *UnlockCode) AssignToPack(packID, memberID string) {
	uc.groupPackID = packID
	uc.groupMemberID = memberID
}

// Redeem 引き換え処理（UNUSED→REDEEMED）
// ロック先は未設定の場合のみ記録し、既存のロックは上書きしない
func (uc *UnlockCode) Redeem(r Redemption) error {
	if uc.status != CodeStatusUnused {
		return ErrCodeAlreadyRedeemed
	}
	at := r.RedeemedAt
	uc.status = CodeStatusRedeemed
	uc.redeemedBy = r.UserID
	uc.redeemedAt = &at
	if uc.deviceLockedTo == "" {
		uc.deviceLockedTo = r.DeviceFingerprint
	}
	if uc.ipLockedTo == "" {
		uc.ipLockedTo = r.IPAddress
	}
	uc.updatedAt = at
	return nil
}

// ChangeDevice デバイスロック先を変更し、変更回数を増やす
func (uc *UnlockCode) ChangeDevice(fingerprint string, limit int) error {
	if uc.deviceChangeCount >= limit {
		return ErrDeviceChangeLimitReached
	}
	uc.deviceLockedTo = fingerprint
	uc.deviceChangeCount++
	uc.updatedAt = time.Now()
	return nil
}

// Revoke コードを失効させる
// 引き換え済みのコードは includeRedeemed が指定された場合のみ失効できる
func (uc *UnlockCode) Revoke(reason string, includeRedeemed bool) error {
	switch {
	case uc.status == CodeStatusUnused:
	case uc.status == CodeStatusRedeemed && includeRedeemed:
	default:
		return ErrInvalidTransition
	}
	uc.status = CodeStatusRevoked
	uc.revokedReason = reason
	uc.updatedAt = time.Now()
	return nil
}

// Restore 失効したコードを未使用に戻す（一度も引き換えられていないコードのみ）
func (uc *UnlockCode) Restore() error {
	if uc.status != CodeStatusRevoked || uc.redeemedBy != "" {
		return ErrInvalidTransition
	}
	uc.status = CodeStatusUnused
	uc.revokedReason = ""
	uc.updatedAt = time.Now()
	return nil
}

// MustNewUnlockCode テスト用ヘルパー: NewUnlockCodeを呼び出し、エラーが発生した場合はpanicする
func MustNewUnlockCode(id, code, releaseID, creatorID, batchID string, expiresAt *time.Time) *UnlockCode {
	uc, err := NewUnlockCode(id, code, releaseID, creatorID, batchID, expiresAt)
	if err != nil {
		panic(err)
	}
	return uc
}
