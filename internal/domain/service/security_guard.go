package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"
)

const (
	// ActionRedeem 引き換え操作
	ActionRedeem = "redeem"
	// ActionValidate 検証操作
	ActionValidate = "validate"
)

// 不正スコアの重み
const (
	failedAttemptWeight    = 1
	unresolvedSignalWeight = 2
	deviceSwitchLimit      = 2
	deviceSwitchWeight     = 3
	sharedDeviceLimit      = 3
	sharedDeviceWeight     = 3
)

// AdmitRequest 引き換え前の審査リクエスト
// Code が nil の場合（存在しないコード・検証操作）はデバイス/IPロックの判定を行わない
type AdmitRequest struct {
	Action            string
	Code              *unlock_code.UnlockCode
	UserID            string
	IPAddress         string
	DeviceFingerprint string
}

// Decision 審査結果
// Signals は呼び出し側が監査ログに記録する
type Decision struct {
	Allowed       bool
	Reason        security.Reason
	Err           error
	Score         int
	DeviceChanged bool
	Signals       []*security.FraudSignal
}

// SecurityGuard デバイス/IPロック・レート制限・不正スコアで引き換えを審査するドメインサービス
type SecurityGuard struct {
	configs   security.ConfigurationProvider
	limiter   security.RateLimitStore
	blockList security.BlockList
	attempts  security.AttemptLogRepository
	signals   security.FraudSignalRepository
	codeRepo  unlock_code.UnlockCodeRepository
	now       func() time.Time
}

// NewSecurityGuard 新しいSecurityGuardを作成
func NewSecurityGuard(
	configs security.ConfigurationProvider,
	limiter security.RateLimitStore,
	blockList security.BlockList,
	attempts security.AttemptLogRepository,
	signals security.FraudSignalRepository,
	codeRepo unlock_code.UnlockCodeRepository,
) *SecurityGuard {
	return &SecurityGuard{
		configs:   configs,
		limiter:   limiter,
		blockList: blockList,
		attempts:  attempts,
		signals:   signals,
		codeRepo:  codeRepo,
		now:       time.Now,
	}
}

// WithClock 時刻の取得元を差し替える
func (g *SecurityGuard) WithClock(now func() time.Time) *SecurityGuard {
	g.now = now
	return g
}

// Admit レート制限→デバイスロック→IPロック→不正スコアの順に審査する
// 拒否は Decision.Err で返し、error はストレージ障害など審査自体の失敗のみ
func (g *SecurityGuard) Admit(ctx context.Context, req AdmitRequest) (*Decision, error) {
	cfg, err := g.configs.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load security configuration: %w", err)
	}
	now := g.now()
	decision := &Decision{Allowed: true}

	if cfg.RateLimitingEnabled {
		denied, err := g.checkRateLimit(ctx, cfg, req, now, decision)
		if err != nil || denied {
			return decision, err
		}
	}

	if cfg.DeviceLockingEnabled && req.Code != nil {
		denied, err := g.checkDeviceLock(ctx, cfg, req, now, decision)
		if err != nil || denied {
			return decision, err
		}
	}

	if cfg.IPLockingEnabled && req.Code != nil {
		locked := req.Code.IPLockedTo()
		if locked != "" && req.IPAddress != locked {
			g.deny(decision, req, security.ReasonIPMismatch, security.ErrIPMismatch, 0, now, map[string]interface{}{
				"locked_ip": locked,
			})
			return decision, nil
		}
	}

	if cfg.FraudDetectionEnabled {
		if err := g.checkFraud(ctx, cfg, req, now, decision); err != nil {
			return decision, err
		}
	}

	return decision, nil
}

func (g *SecurityGuard) checkRateLimit(ctx context.Context, cfg security.Configuration, req AdmitRequest, now time.Time, decision *Decision) (bool, error) {
	keys := make([]string, 0, 2)
	if req.IPAddress != "" {
		keys = append(keys, security.RateLimitKey(req.Action, "ip", req.IPAddress))
	}
	if req.UserID != "" {
		keys = append(keys, security.RateLimitKey(req.Action, "user", req.UserID))
	}
	for _, key := range keys {
		res, err := g.limiter.Hit(ctx, key, now, cfg.Window(), cfg.MaxRedemptionAttempts)
		if err != nil {
			return false, fmt.Errorf("failed to record rate limit hit: %w", err)
		}
		if !res.Allowed {
			g.deny(decision, req, security.ReasonRateExceeded, &security.RateLimitedError{ResetAt: res.ResetAt}, 0, now, map[string]interface{}{
				"key":      key,
				"count":    res.Count,
				"reset_at": res.ResetAt.UTC().Format(time.RFC3339),
			})
			return true, nil
		}
	}
	return false, nil
}

// checkDeviceLock ロック先と異なるデバイスを審査する
// 変更が許可されるのはコードを引き換えた本人（または未引き換え）で、変更回数が上限未満の場合のみ
func (g *SecurityGuard) checkDeviceLock(ctx context.Context, cfg security.Configuration, req AdmitRequest, now time.Time, decision *Decision) (bool, error) {
	code := req.Code
	locked := code.DeviceLockedTo()
	if locked == "" || req.DeviceFingerprint == locked {
		return false, nil
	}

	holder := code.RedeemedBy() == "" || code.RedeemedBy() == req.UserID
	mayChange := cfg.AllowDeviceChange && holder && req.DeviceFingerprint != "" &&
		code.DeviceChangeCount() < cfg.DeviceChangeLimit
	if mayChange {
		err := g.codeRepo.ChangeDevice(ctx, code.ID(), req.DeviceFingerprint, cfg.DeviceChangeLimit)
		switch {
		case err == nil:
			decision.DeviceChanged = true
			return false, nil
		case !errors.Is(err, unlock_code.ErrDeviceChangeLimitReached):
			return false, fmt.Errorf("failed to change device lock: %w", err)
		}
	}

	g.deny(decision, req, security.ReasonDeviceMismatch, security.ErrDeviceMismatch, 0, now, map[string]interface{}{
		"device_change_count": code.DeviceChangeCount(),
	})
	return true, nil
}

// checkFraud 時間窓内の行動から不正スコアを算出する
func (g *SecurityGuard) checkFraud(ctx context.Context, cfg security.Configuration, req AdmitRequest, now time.Time, decision *Decision) error {
	since := now.Add(-cfg.Window())

	if req.IPAddress != "" {
		blocked, err := g.blockList.IsBlocked(ctx, req.IPAddress, now)
		if err != nil {
			return fmt.Errorf("failed to check block list: %w", err)
		}
		if blocked {
			// ブロック済みIPのシグナルは積み上げない
			decision.Allowed = false
			decision.Reason = security.ReasonPatternAnomaly
			decision.Err = security.ErrFraudBlocked
			decision.Score = cfg.SuspiciousAttemptThreshold + 1
			return nil
		}
	}

	failed, err := g.attempts.CountFailed(ctx, req.UserID, req.IPAddress, since)
	if err != nil {
		return fmt.Errorf("failed to count failed attempts: %w", err)
	}
	unresolved, err := g.signals.CountUnresolved(ctx, req.UserID, req.IPAddress, since)
	if err != nil {
		return fmt.Errorf("failed to count fraud signals: %w", err)
	}
	score := failed*failedAttemptWeight + unresolved*unresolvedSignalWeight

	if req.UserID != "" {
		devices, err := g.attempts.CountDistinctDevices(ctx, req.UserID, since)
		if err != nil {
			return fmt.Errorf("failed to count devices: %w", err)
		}
		if devices > deviceSwitchLimit {
			score += deviceSwitchWeight
		}
	}

	if req.DeviceFingerprint != "" {
		accounts, err := g.attempts.CountDistinctUsersForDevice(ctx, req.DeviceFingerprint, since)
		if err != nil {
			return fmt.Errorf("failed to count accounts for device: %w", err)
		}
		if accounts > sharedDeviceLimit {
			score += sharedDeviceWeight
			decision.Signals = append(decision.Signals, g.signal(req, security.ReasonMultiAccountSharing, score, now, map[string]interface{}{
				"accounts": accounts,
			}))
		}
	}

	decision.Score = score
	if score <= cfg.SuspiciousAttemptThreshold {
		return nil
	}

	details := map[string]interface{}{
		"failed_attempts":    failed,
		"unresolved_signals": unresolved,
	}
	if cfg.BlockSuspiciousIPs && req.IPAddress != "" {
		until := now.Add(cfg.AutoBlockDuration())
		if err := g.blockList.Block(ctx, req.IPAddress, until); err != nil {
			return fmt.Errorf("failed to block ip: %w", err)
		}
		details["blocked_until"] = until.UTC().Format(time.RFC3339)
	}
	g.deny(decision, req, security.ReasonPatternAnomaly, security.ErrFraudBlocked, score, now, details)
	return nil
}

func (g *SecurityGuard) deny(decision *Decision, req AdmitRequest, reason security.Reason, err error, score int, now time.Time, details map[string]interface{}) {
	decision.Allowed = false
	decision.Reason = reason
	decision.Err = err
	if score > 0 {
		decision.Score = score
	}
	decision.Signals = append(decision.Signals, g.signal(req, reason, score, now, details))
}

func (g *SecurityGuard) signal(req AdmitRequest, reason security.Reason, score int, now time.Time, details map[string]interface{}) *security.FraudSignal {
	codeID := ""
	if req.Code != nil {
		codeID = req.Code.ID()
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["action"] = req.Action
	return security.NewFraudSignal(uuid.NewString(), reason, codeID, req.UserID, req.IPAddress, score, details, now)
}
