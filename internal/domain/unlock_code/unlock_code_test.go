package unlock_code

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCode = "ABCDEFGHJKMNR"

func TestNewUnlockCode(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		code    string
		wantErr error
	}{
		{
			name: "正常系: 未使用コードの作成",
			id:   "code-1",
			code: testCode,
		},
		{
			name:    "異常系: チェックサム不正",
			id:      "code-1",
			code:    "ABCDEFGHJKMNP",
			wantErr: ErrMalformedCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, err := NewUnlockCode(tt.id, tt.code, "release-1", "creator-1", "batch-1", nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, CodeStatusUnused, uc.Status())
			assert.Equal(t, tt.code, uc.Code())
			assert.Empty(t, uc.DeviceLockedTo())
			assert.Nil(t, uc.RedeemedAt())
			assert.False(t, uc.IsPackCode())
		})
	}

	t.Run("異常系: 必須属性の欠落", func(t *testing.T) {
		_, err := NewUnlockCode("", testCode, "release-1", "creator-1", "batch-1", nil)
		assert.Error(t, err)
	})
}

func TestUnlockCode_CheckRedeemable(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		record  Record
		wantErr error
	}{
		{
			name:   "正常系: 未使用",
			record: Record{Status: CodeStatusUnused},
		},
		{
			name:   "正常系: 有効期限前",
			record: Record{Status: CodeStatusUnused, ExpiresAt: &future},
		},
		{
			name:    "異常系: 期限切れ",
			record:  Record{Status: CodeStatusUnused, ExpiresAt: &past},
			wantErr: ErrCodeExpired,
		},
		{
			name:    "異常系: 引き換え済み",
			record:  Record{Status: CodeStatusRedeemed},
			wantErr: ErrCodeAlreadyRedeemed,
		},
		{
			name:    "異常系: 失効",
			record:  Record{Status: CodeStatusRevoked, ExpiresAt: &past},
			wantErr: ErrCodeRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Reconstruct(tt.record).CheckRedeemable(now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUnlockCode_Redeem(t *testing.T) {
	now := time.Now()

	t.Run("正常系: ロック先を記録する", func(t *testing.T) {
		uc := MustNewUnlockCode("code-1", testCode, "release-1", "creator-1", "batch-1", nil)
		err := uc.Redeem(Redemption{UserID: "user-1", RedeemedAt: now, DeviceFingerprint: "fp-1", IPAddress: "10.0.0.1"})
		require.NoError(t, err)
		assert.Equal(t, CodeStatusRedeemed, uc.Status())
		assert.Equal(t, "user-1", uc.RedeemedBy())
		assert.Equal(t, "fp-1", uc.DeviceLockedTo())
		assert.Equal(t, "10.0.0.1", uc.IPLockedTo())
		require.NotNil(t, uc.RedeemedAt())
		assert.True(t, now.Equal(*uc.RedeemedAt()))
	})

	t.Run("正常系: 既存のロックを上書きしない", func(t *testing.T) {
		uc := Reconstruct(Record{ID: "code-1", Status: CodeStatusUnused, DeviceLockedTo: "fp-old"})
		require.NoError(t, uc.Redeem(Redemption{UserID: "user-1", RedeemedAt: now, DeviceFingerprint: "fp-new"}))
		assert.Equal(t, "fp-old", uc.DeviceLockedTo())
	})

	t.Run("異常系: 二重引き換え", func(t *testing.T) {
		uc := MustNewUnlockCode("code-1", testCode, "release-1", "creator-1", "batch-1", nil)
		require.NoError(t, uc.Redeem(Redemption{UserID: "user-1", RedeemedAt: now}))
		err := uc.Redeem(Redemption{UserID: "user-2", RedeemedAt: now})
		assert.ErrorIs(t, err, ErrCodeAlreadyRedeemed)
		assert.Equal(t, "user-1", uc.RedeemedBy())
	})
}

func TestUnlockCode_ChangeDevice(t *testing.T) {
	uc := Reconstruct(Record{ID: "code-1", Status: CodeStatusRedeemed, DeviceLockedTo: "fp-1"})

	require.NoError(t, uc.ChangeDevice("fp-2", 1))
	assert.Equal(t, "fp-2", uc.DeviceLockedTo())
	assert.Equal(t, 1, uc.DeviceChangeCount())

	err := uc.ChangeDevice("fp-3", 1)
	assert.ErrorIs(t, err, ErrDeviceChangeLimitReached)
	assert.Equal(t, "fp-2", uc.DeviceLockedTo())
}

func TestUnlockCode_RevokeAndRestore(t *testing.T) {
	tests := []struct {
		name            string
		record          Record
		includeRedeemed bool
		wantRevokeErr   bool
		wantRestoreErr  bool
	}{
		{
			name:   "正常系: 未使用コードの失効と復元",
			record: Record{Status: CodeStatusUnused},
		},
		{
			name:            "正常系: 引き換え済みコードを明示的に失効",
			record:          Record{Status: CodeStatusRedeemed, RedeemedBy: "user-1"},
			includeRedeemed: true,
			wantRestoreErr:  true,
		},
		{
			name:          "異常系: 引き換え済みコードは既定で失効できない",
			record:        Record{Status: CodeStatusRedeemed, RedeemedBy: "user-1"},
			wantRevokeErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := Reconstruct(tt.record)
			err := uc.Revoke("test", tt.includeRedeemed)
			if tt.wantRevokeErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, CodeStatusRevoked, uc.Status())
			assert.Equal(t, "test", uc.RevokedReason())

			err = uc.Restore()
			if tt.wantRestoreErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, CodeStatusRevoked, uc.Status())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, CodeStatusUnused, uc.Status())
			assert.Empty(t, uc.RevokedReason())
		})
	}
}

func TestNewBulkAction(t *testing.T) {
	for _, s := range []string{"revoke", "mark_invalid", "mark_unused"} {
		got, err := NewBulkAction(s)
		require.NoError(t, err)
		assert.Equal(t, BulkAction(s), got)
	}
	_, err := NewBulkAction("delete")
	assert.ErrorIs(t, err, ErrInvalidBulkAction)
}
