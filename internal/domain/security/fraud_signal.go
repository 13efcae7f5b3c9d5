package security

import (
	"fmt"
	"time"
)

// Reason 不正シグナルの理由
type Reason string

const (
	ReasonDeviceMismatch      Reason = "DEVICE_MISMATCH"
	ReasonIPMismatch          Reason = "IP_MISMATCH"
	ReasonRateExceeded        Reason = "RATE_EXCEEDED"
	ReasonPatternAnomaly      Reason = "PATTERN_ANOMALY"
	ReasonMultiAccountSharing Reason = "MULTI_ACCOUNT_SHARING"
)

// NewReason 新しいReasonを作成
func NewReason(s string) (Reason, error) {
	switch Reason(s) {
	case ReasonDeviceMismatch, ReasonIPMismatch, ReasonRateExceeded, ReasonPatternAnomaly, ReasonMultiAccountSharing:
		return Reason(s), nil
	default:
		return "", fmt.Errorf("invalid fraud reason: %s", s)
	}
}

// String 文字列表現を返す
func (r Reason) String() string {
	return string(r)
}

// FraudSignal 不正シグナルエンティティ
type FraudSignal struct {
	id         string
	codeID     string
	userID     string
	ipAddress  string
	reason     Reason
	score      int
	details    map[string]interface{}
	resolved   bool
	resolvedBy string
	resolvedAt *time.Time
	flaggedAt  time.Time
}

// NewFraudSignal 新しい未解決のFraudSignalを作成
func NewFraudSignal(id string, reason Reason, codeID, userID, ipAddress string, score int, details map[string]interface{}, flaggedAt time.Time) *FraudSignal {
	return &FraudSignal{
		id:        id,
		codeID:    codeID,
		userID:    userID,
		ipAddress: ipAddress,
		reason:    reason,
		score:     score,
		details:   details,
		flaggedAt: flaggedAt,
	}
}

// SignalRecord 永続化層との受け渡しに使う全属性
type SignalRecord struct {
	ID         string
	CodeID     string
	UserID     string
	IPAddress  string
	Reason     Reason
	Score      int
	Details    map[string]interface{}
	Resolved   bool
	ResolvedBy string
	ResolvedAt *time.Time
	FlaggedAt  time.Time
}

// ReconstructSignal 永続化されたレコードからFraudSignalを復元
func ReconstructSignal(r SignalRecord) *FraudSignal {
	return &FraudSignal{
		id:         r.ID,
		codeID:     r.CodeID,
		userID:     r.UserID,
		ipAddress:  r.IPAddress,
		reason:     r.Reason,
		score:      r.Score,
		details:    r.Details,
		resolved:   r.Resolved,
		resolvedBy: r.ResolvedBy,
		resolvedAt: r.ResolvedAt,
		flaggedAt:  r.FlaggedAt,
	}
}

// ID シグナルIDを返す
func (s *FraudSignal) ID() string { return s.id }

// CodeID 対象コードIDを返す
func (s *FraudSignal) CodeID() string { return s.codeID }

// UserID 対象ユーザーIDを返す
func (s *FraudSignal) UserID() string { return s.userID }

// IPAddress 対象IPアドレスを返す
func (s *FraudSignal) IPAddress() string { return s.ipAddress }

// Reason 理由を返す
func (s *FraudSignal) Reason() Reason { return s.reason }

// Score 検知時のスコアを返す
func (s *FraudSignal) Score() int { return s.score }

// Details 詳細情報を返す
func (s *FraudSignal) Details() map[string]interface{} { return s.details }

// Resolved 解決済みかどうか
func (s *FraudSignal) Resolved() bool { return s.resolved }

// ResolvedBy 解決した管理者を返す
func (s *FraudSignal) ResolvedBy() string { return s.resolvedBy }

// ResolvedAt 解決日時を返す
func (s *FraudSignal) ResolvedAt() *time.Time { return s.resolvedAt }

// FlaggedAt 検知日時を返す
func (s *FraudSignal) FlaggedAt() time.Time { return s.flaggedAt }

// Resolve シグナルを解決済みにする
func (s *FraudSignal) Resolve(by string, at time.Time) error {
	if s.resolved {
		return ErrFraudSignalResolved
	}
	s.resolved = true
	s.resolvedBy = by
	s.resolvedAt = &at
	return nil
}
