package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"
)

type guardMocks struct {
	limiter  *MockRateLimitStore
	blocks   *MockBlockList
	attempts *MockAttemptLogRepository
	signals  *MockFraudSignalRepository
	codes    *MockUnlockCodeRepository
}

func newGuardMocks() *guardMocks {
	return &guardMocks{
		limiter:  new(MockRateLimitStore),
		blocks:   new(MockBlockList),
		attempts: new(MockAttemptLogRepository),
		signals:  new(MockFraudSignalRepository),
		codes:    new(MockUnlockCodeRepository),
	}
}

func (m *guardMocks) assertExpectations(t *testing.T) {
	m.limiter.AssertExpectations(t)
	m.blocks.AssertExpectations(t)
	m.attempts.AssertExpectations(t)
	m.signals.AssertExpectations(t)
	m.codes.AssertExpectations(t)
}

func TestSecurityGuard_Admit(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	redeemedCode := func(deviceChanges int) *unlock_code.UnlockCode {
		return unlock_code.Reconstruct(unlock_code.Record{
			ID:                "code-1",
			Status:            unlock_code.CodeStatusRedeemed,
			RedeemedBy:        "user-1",
			DeviceLockedTo:    "fp-1",
			IPLockedTo:        "10.0.0.1",
			DeviceChangeCount: deviceChanges,
		})
	}

	deviceLocking := security.DefaultConfiguration()
	deviceLocking.DeviceLockingEnabled = true

	deviceChange := deviceLocking
	deviceChange.AllowDeviceChange = true
	deviceChange.DeviceChangeLimit = 1

	ipLocking := security.DefaultConfiguration()
	ipLocking.IPLockingEnabled = true

	rateLimiting := security.DefaultConfiguration()
	rateLimiting.RateLimitingEnabled = true
	rateLimiting.MaxRedemptionAttempts = 3

	fraud := security.DefaultConfiguration()
	fraud.FraudDetectionEnabled = true
	fraud.SuspiciousAttemptThreshold = 5
	fraud.BlockSuspiciousIPs = true
	fraud.AutoBlockDurationHours = 24

	tests := []struct {
		name        string
		cfg         security.Configuration
		req         AdmitRequest
		setupMocks  func(*guardMocks)
		wantAllowed bool
		wantReason  security.Reason
		wantErr     error
		wantSignals []security.Reason
		wantChanged bool
	}{
		{
			name:        "正常系: 設定なし（全機能オフ）は常に許可",
			cfg:         security.DefaultConfiguration(),
			req:         AdmitRequest{Action: ActionRedeem, Code: redeemedCode(0), UserID: "user-2", IPAddress: "10.9.9.9", DeviceFingerprint: "fp-9"},
			setupMocks:  func(m *guardMocks) {},
			wantAllowed: true,
		},
		{
			name: "正常系: レート制限内",
			cfg:  rateLimiting,
			req:  AdmitRequest{Action: ActionRedeem, UserID: "user-1", IPAddress: "10.0.0.1"},
			setupMocks: func(m *guardMocks) {
				m.limiter.On("Hit", mock.Anything, "redeem:ip:10.0.0.1", now, time.Hour, 3).Return(security.RateLimitResult{Allowed: true, Count: 1}, nil)
				m.limiter.On("Hit", mock.Anything, "redeem:user:user-1", now, time.Hour, 3).Return(security.RateLimitResult{Allowed: true, Count: 1}, nil)
			},
			wantAllowed: true,
		},
		{
			name: "異常系: IP単位のレート制限超過",
			cfg:  rateLimiting,
			req:  AdmitRequest{Action: ActionRedeem, UserID: "user-1", IPAddress: "10.0.0.1"},
			setupMocks: func(m *guardMocks) {
				m.limiter.On("Hit", mock.Anything, "redeem:ip:10.0.0.1", now, time.Hour, 3).
					Return(security.RateLimitResult{Allowed: false, Count: 3, ResetAt: now.Add(20 * time.Minute)}, nil)
			},
			wantReason:  security.ReasonRateExceeded,
			wantErr:     security.ErrRateLimited,
			wantSignals: []security.Reason{security.ReasonRateExceeded},
		},
		{
			name:        "正常系: 同じデバイス",
			cfg:         deviceLocking,
			req:         AdmitRequest{Action: ActionRedeem, Code: redeemedCode(0), UserID: "user-1", DeviceFingerprint: "fp-1"},
			setupMocks:  func(m *guardMocks) {},
			wantAllowed: true,
		},
		{
			name:        "異常系: デバイス不一致（変更不可）",
			cfg:         deviceLocking,
			req:         AdmitRequest{Action: ActionRedeem, Code: redeemedCode(0), UserID: "user-1", DeviceFingerprint: "fp-2"},
			setupMocks:  func(m *guardMocks) {},
			wantReason:  security.ReasonDeviceMismatch,
			wantErr:     security.ErrDeviceMismatch,
			wantSignals: []security.Reason{security.ReasonDeviceMismatch},
		},
		{
			name: "正常系: 本人によるデバイス変更",
			cfg:  deviceChange,
			req:  AdmitRequest{Action: ActionRedeem, Code: redeemedCode(0), UserID: "user-1", DeviceFingerprint: "fp-2"},
			setupMocks: func(m *guardMocks) {
				m.codes.On("ChangeDevice", mock.Anything, "code-1", "fp-2", 1).Return(nil)
			},
			wantAllowed: true,
			wantChanged: true,
		},
		{
			name:        "異常系: 他人はデバイスを変更できない",
			cfg:         deviceChange,
			req:         AdmitRequest{Action: ActionRedeem, Code: redeemedCode(0), UserID: "user-2", DeviceFingerprint: "fp-2"},
			setupMocks:  func(m *guardMocks) {},
			wantReason:  security.ReasonDeviceMismatch,
			wantErr:     security.ErrDeviceMismatch,
			wantSignals: []security.Reason{security.ReasonDeviceMismatch},
		},
		{
			name:        "異常系: デバイス変更回数の上限",
			cfg:         deviceChange,
			req:         AdmitRequest{Action: ActionRedeem, Code: redeemedCode(1), UserID: "user-1", DeviceFingerprint: "fp-3"},
			setupMocks:  func(m *guardMocks) {},
			wantReason:  security.ReasonDeviceMismatch,
			wantErr:     security.ErrDeviceMismatch,
			wantSignals: []security.Reason{security.ReasonDeviceMismatch},
		},
		{
			name: "異常系: 同時変更で上限に達した",
			cfg:  deviceChange,
			req:  AdmitRequest{Action: ActionRedeem, Code: redeemedCode(0), UserID: "user-1", DeviceFingerprint: "fp-2"},
			setupMocks: func(m *guardMocks) {
				m.codes.On("ChangeDevice", mock.Anything, "code-1", "fp-2", 1).Return(unlock_code.ErrDeviceChangeLimitReached)
			},
			wantReason:  security.ReasonDeviceMismatch,
			wantErr:     security.ErrDeviceMismatch,
			wantSignals: []security.Reason{security.ReasonDeviceMismatch},
		},
		{
			name:        "異常系: IP不一致",
			cfg:         ipLocking,
			req:         AdmitRequest{Action: ActionRedeem, Code: redeemedCode(0), UserID: "user-1", IPAddress: "10.0.0.2"},
			setupMocks:  func(m *guardMocks) {},
			wantReason:  security.ReasonIPMismatch,
			wantErr:     security.ErrIPMismatch,
			wantSignals: []security.Reason{security.ReasonIPMismatch},
		},
		{
			name:        "正常系: 未知のコードはロック判定しない",
			cfg:         ipLocking,
			req:         AdmitRequest{Action: ActionRedeem, UserID: "user-1", IPAddress: "10.0.0.2"},
			setupMocks:  func(m *guardMocks) {},
			wantAllowed: true,
		},
		{
			name: "異常系: ブロック済みIP",
			cfg:  fraud,
			req:  AdmitRequest{Action: ActionRedeem, UserID: "user-1", IPAddress: "10.6.6.6"},
			setupMocks: func(m *guardMocks) {
				m.blocks.On("IsBlocked", mock.Anything, "10.6.6.6", now).Return(true, nil)
			},
			wantReason: security.ReasonPatternAnomaly,
			wantErr:    security.ErrFraudBlocked,
		},
		{
			name: "異常系: スコアが閾値超過で自動ブロック",
			cfg:  fraud,
			req:  AdmitRequest{Action: ActionRedeem, UserID: "user-1", IPAddress: "10.0.0.1", DeviceFingerprint: "fp-1"},
			setupMocks: func(m *guardMocks) {
				since := now.Add(-time.Hour)
				m.blocks.On("IsBlocked", mock.Anything, "10.0.0.1", now).Return(false, nil)
				m.attempts.On("CountFailed", mock.Anything, "user-1", "10.0.0.1", since).Return(4, nil)
				m.signals.On("CountUnresolved", mock.Anything, "user-1", "10.0.0.1", since).Return(1, nil)
				m.attempts.On("CountDistinctDevices", mock.Anything, "user-1", since).Return(1, nil)
				m.attempts.On("CountDistinctUsersForDevice", mock.Anything, "fp-1", since).Return(1, nil)
				m.blocks.On("Block", mock.Anything, "10.0.0.1", now.Add(24*time.Hour)).Return(nil)
			},
			wantReason:  security.ReasonPatternAnomaly,
			wantErr:     security.ErrFraudBlocked,
			wantSignals: []security.Reason{security.ReasonPatternAnomaly},
		},
		{
			name: "正常系: 複数アカウント共有は記録のみ",
			cfg:  fraud,
			req:  AdmitRequest{Action: ActionRedeem, UserID: "user-1", IPAddress: "10.0.0.1", DeviceFingerprint: "fp-1"},
			setupMocks: func(m *guardMocks) {
				since := now.Add(-time.Hour)
				m.blocks.On("IsBlocked", mock.Anything, "10.0.0.1", now).Return(false, nil)
				m.attempts.On("CountFailed", mock.Anything, "user-1", "10.0.0.1", since).Return(0, nil)
				m.signals.On("CountUnresolved", mock.Anything, "user-1", "10.0.0.1", since).Return(0, nil)
				m.attempts.On("CountDistinctDevices", mock.Anything, "user-1", since).Return(1, nil)
				m.attempts.On("CountDistinctUsersForDevice", mock.Anything, "fp-1", since).Return(4, nil)
			},
			wantAllowed: true,
			wantSignals: []security.Reason{security.ReasonMultiAccountSharing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newGuardMocks()
			tt.setupMocks(m)

			guard := NewSecurityGuard(&staticConfigProvider{cfg: tt.cfg}, m.limiter, m.blocks, m.attempts, m.signals, m.codes).
				WithClock(func() time.Time { return now })

			decision, err := guard.Admit(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAllowed, decision.Allowed)
			assert.Equal(t, tt.wantReason, decision.Reason)
			assert.Equal(t, tt.wantChanged, decision.DeviceChanged)
			if tt.wantErr != nil {
				assert.ErrorIs(t, decision.Err, tt.wantErr)
			} else {
				assert.NoError(t, decision.Err)
			}

			reasons := []security.Reason{}
			for _, s := range decision.Signals {
				reasons = append(reasons, s.Reason())
			}
			if tt.wantSignals == nil {
				tt.wantSignals = []security.Reason{}
			}
			assert.Equal(t, tt.wantSignals, reasons)
			m.assertExpectations(t)
		})
	}
}

func TestSecurityGuard_Admit_RateLimitedErrorCarriesResetTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	cfg := security.DefaultConfiguration()
	cfg.RateLimitingEnabled = true
	cfg.MaxRedemptionAttempts = 1

	m := newGuardMocks()
	m.limiter.On("Hit", mock.Anything, "redeem:user:user-1", now, time.Hour, 1).
		Return(security.RateLimitResult{Allowed: false, Count: 1, ResetAt: now.Add(time.Hour)}, nil)

	guard := NewSecurityGuard(&staticConfigProvider{cfg: cfg}, m.limiter, m.blocks, m.attempts, m.signals, m.codes).
		WithClock(func() time.Time { return now })
	decision, err := guard.Admit(context.Background(), AdmitRequest{Action: ActionRedeem, UserID: "user-1"})
	require.NoError(t, err)

	var rle *security.RateLimitedError
	require.True(t, errors.As(decision.Err, &rle))
	assert.Equal(t, now.Add(time.Hour), rle.ResetAt)
}

func TestSecurityGuard_Admit_InfraErrors(t *testing.T) {
	t.Run("異常系: 設定の読み込み失敗", func(t *testing.T) {
		m := newGuardMocks()
		guard := NewSecurityGuard(&staticConfigProvider{err: errors.New("db down")}, m.limiter, m.blocks, m.attempts, m.signals, m.codes)
		_, err := guard.Admit(context.Background(), AdmitRequest{Action: ActionRedeem})
		assert.Error(t, err)
	})

	t.Run("異常系: レート制限ストアの障害", func(t *testing.T) {
		cfg := security.DefaultConfiguration()
		cfg.RateLimitingEnabled = true
		m := newGuardMocks()
		m.limiter.On("Hit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(security.RateLimitResult{}, errors.New("redis down"))
		guard := NewSecurityGuard(&staticConfigProvider{cfg: cfg}, m.limiter, m.blocks, m.attempts, m.signals, m.codes)
		_, err := guard.Admit(context.Background(), AdmitRequest{Action: ActionRedeem, UserID: "user-1"})
		assert.Error(t, err)
	})
}
