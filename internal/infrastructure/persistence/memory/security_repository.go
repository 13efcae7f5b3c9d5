package memory

import (
	"context"
	"sort"
	"time"

	"unlock-server/internal/domain/security"
)

// SecurityConfigurationRepository メモリ実装のConfigurationRepository
type SecurityConfigurationRepository struct {
	s *Store
}

// Find 保存済みの設定を取得
func (r *SecurityConfigurationRepository) Find(ctx context.Context) (*security.Configuration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.config == nil {
		return nil, security.ErrConfigurationNotFound
	}
	cfg := *r.s.config
	return &cfg, nil
}

// Save 設定を保存
func (r *SecurityConfigurationRepository) Save(ctx context.Context, cfg security.Configuration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev := r.s.config
	r.s.config = &cfg
	r.s.onRollback(ctx, func() {
		r.s.config = prev
	})
	return nil
}

// FraudSignalRepository メモリ実装のFraudSignalRepository
type FraudSignalRepository struct {
	s *Store
}

func signalRecord(sig *security.FraudSignal) security.SignalRecord {
	return security.SignalRecord{
		ID:         sig.ID(),
		CodeID:     sig.CodeID(),
		UserID:     sig.UserID(),
		IPAddress:  sig.IPAddress(),
		Reason:     sig.Reason(),
		Score:      sig.Score(),
		Details:    sig.Details(),
		Resolved:   sig.Resolved(),
		ResolvedBy: sig.ResolvedBy(),
		ResolvedAt: sig.ResolvedAt(),
		FlaggedAt:  sig.FlaggedAt(),
	}
}

// Save シグナルを保存
func (r *FraudSignalRepository) Save(ctx context.Context, sig *security.FraudSignal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.signals[sig.ID()] = signalRecord(sig)
	r.s.onRollback(ctx, func() {
		delete(r.s.signals, sig.ID())
	})
	return nil
}

// FindByID シグナルを取得
func (r *FraudSignalRepository) FindByID(ctx context.Context, id string) (*security.FraudSignal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.signals[id]
	if !ok {
		return nil, security.ErrFraudSignalNotFound
	}
	return security.ReconstructSignal(rec), nil
}

// List 条件に一致するシグナルを新しい順に取得
func (r *FraudSignalRepository) List(ctx context.Context, filter security.SignalFilter) ([]*security.FraudSignal, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var recs []security.SignalRecord
	for _, rec := range r.s.signals {
		if filter.Resolved != nil && rec.Resolved != *filter.Resolved {
			continue
		}
		if filter.Reason != "" && rec.Reason != filter.Reason {
			continue
		}
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].FlaggedAt.Equal(recs[j].FlaggedAt) {
			return recs[i].FlaggedAt.After(recs[j].FlaggedAt)
		}
		return recs[i].ID < recs[j].ID
	})

	total := len(recs)
	var signals []*security.FraudSignal
	for i := filter.Offset; i < total && len(signals) < filter.Limit; i++ {
		signals = append(signals, security.ReconstructSignal(recs[i]))
	}
	return signals, total, nil
}

// Resolve 未解決のシグナルのみ解決済みにする
func (r *FraudSignalRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.signals[id]
	if !ok {
		return security.ErrFraudSignalNotFound
	}
	sig := security.ReconstructSignal(prev)
	if err := sig.Resolve(resolvedBy, at); err != nil {
		return err
	}
	r.s.signals[id] = signalRecord(sig)
	r.s.onRollback(ctx, func() {
		r.s.signals[id] = prev
	})
	return nil
}

// CountUnresolved ユーザーまたはIPに紐づく未解決シグナル数
func (r *FraudSignalRepository) CountUnresolved(ctx context.Context, userID, ipAddress string, since time.Time) (int, error) {
	if userID == "" && ipAddress == "" {
		return 0, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, rec := range r.s.signals {
		if rec.Resolved || rec.FlaggedAt.Before(since) {
			continue
		}
		if matchesIdentity(rec.UserID, rec.IPAddress, userID, ipAddress) {
			count++
		}
	}
	return count, nil
}

// matchesIdentity 空でない識別子のいずれかが一致するかどうか
func matchesIdentity(recUser, recIP, userID, ipAddress string) bool {
	return (userID != "" && recUser == userID) || (ipAddress != "" && recIP == ipAddress)
}

// AttemptLogRepository メモリ実装のAttemptLogRepository
type AttemptLogRepository struct {
	s *Store
}

// Save 試行ログを追記
// 試行ログはトランザクション外で記録されるため取り消し操作は登録しない
func (r *AttemptLogRepository) Save(ctx context.Context, a *security.RedemptionAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.attempts = append(r.s.attempts, *a)
	return nil
}

// CountFailed ユーザーまたはIPによる失敗試行数
func (r *AttemptLogRepository) CountFailed(ctx context.Context, userID, ipAddress string, since time.Time) (int, error) {
	if userID == "" && ipAddress == "" {
		return 0, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, a := range r.s.attempts {
		if a.Success || a.AttemptedAt.Before(since) {
			continue
		}
		if matchesIdentity(a.UserID, a.IPAddress, userID, ipAddress) {
			count++
		}
	}
	return count, nil
}

// CountDistinctDevices ユーザーが使用したデバイス数
func (r *AttemptLogRepository) CountDistinctDevices(ctx context.Context, userID string, since time.Time) (int, error) {
	if userID == "" {
		return 0, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	devices := make(map[string]struct{})
	for _, a := range r.s.attempts {
		if a.UserID == userID && a.DeviceFingerprint != "" && !a.AttemptedAt.Before(since) {
			devices[a.DeviceFingerprint] = struct{}{}
		}
	}
	return len(devices), nil
}

// CountDistinctUsersForDevice デバイスを使用したアカウント数
func (r *AttemptLogRepository) CountDistinctUsersForDevice(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	if fingerprint == "" {
		return 0, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	users := make(map[string]struct{})
	for _, a := range r.s.attempts {
		if a.DeviceFingerprint == fingerprint && a.UserID != "" && !a.AttemptedAt.Before(since) {
			users[a.UserID] = struct{}{}
		}
	}
	return len(users), nil
}

// FindBySubmittedCode 提出されたコードの試行ログを新しい順に取得
func (r *AttemptLogRepository) FindBySubmittedCode(ctx context.Context, code string, limit int) ([]*security.RedemptionAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var attempts []*security.RedemptionAttempt
	for i := range r.s.attempts {
		if r.s.attempts[i].SubmittedCode == code {
			a := r.s.attempts[i]
			attempts = append(attempts, &a)
		}
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].AttemptedAt.After(attempts[j].AttemptedAt)
	})
	if len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}
