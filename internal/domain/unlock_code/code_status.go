package unlock_code

import (
	"fmt"
)

// CodeStatus アンロックコードのステータスを表す値オブジェクト
type CodeStatus string

const (
	CodeStatusUnused   CodeStatus = "UNUSED"   // 未使用
	CodeStatusRedeemed CodeStatus = "REDEEMED" // 引き換え済み
	CodeStatusRevoked  CodeStatus = "REVOKED"  // 失効
)

// NewCodeStatus 新しいCodeStatusを作成
func NewCodeStatus(s string) (CodeStatus, error) {
	switch CodeStatus(s) {
	case CodeStatusUnused, CodeStatusRedeemed, CodeStatusRevoked:
		return CodeStatus(s), nil
	default:
		return "", fmt.Errorf("invalid code status: %s", s)
	}
}

// String 文字列表現を返す
func (cs CodeStatus) String() string {
	return string(cs)
}

// Valid 有効なコードステータスかどうかを返す
func (cs CodeStatus) Valid() bool {
	switch cs {
	case CodeStatusUnused, CodeStatusRedeemed, CodeStatusRevoked:
		return true
	default:
		return false
	}
}

// CanTransitionTo 指定ステータスへ遷移可能かどうかを返す
// UNUSED→REDEEMED, UNUSED|REDEEMED→REVOKED, REVOKED→UNUSED（管理者による復元）のみ許可
func (cs CodeStatus) CanTransitionTo(next CodeStatus) bool {
	switch cs {
	case CodeStatusUnused:
		return next == CodeStatusRedeemed || next == CodeStatusRevoked
	case CodeStatusRedeemed:
		return next == CodeStatusRevoked
	case CodeStatusRevoked:
		return next == CodeStatusUnused
	default:
		return false
	}
}
