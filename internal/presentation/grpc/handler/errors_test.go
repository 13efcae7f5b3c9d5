package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	redemptionapp "unlock-server/internal/application/code_redemption"
	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		err          error
		expectedCode codes.Code
		reason       string
	}{
		{"異常系: 使用済みまたは存在しないコード", redemptionapp.ErrInvalidOrUsedCode, codes.NotFound, "invalid_or_used_code"},
		{"異常系: 形式不正", unlock_code.ErrMalformedCode, codes.InvalidArgument, "malformed_code"},
		{"異常系: ラップされた引き換え済み", fmt.Errorf("redeem: %w", unlock_code.ErrCodeAlreadyRedeemed), codes.AlreadyExists, "code_already_redeemed"},
		{"異常系: 失効", unlock_code.ErrCodeRevoked, codes.FailedPrecondition, "code_revoked"},
		{"異常系: デバイス不一致", security.ErrDeviceMismatch, codes.PermissionDenied, "device_mismatch"},
		{"異常系: パック満員", group_pack.ErrPackFull, codes.FailedPrecondition, "pack_full"},
		{"異常系: 招待コード使用済み", group_pack.ErrInviteCodeClaimed, codes.AlreadyExists, "invite_code_claimed"},
		{"異常系: タイムアウト", context.DeadlineExceeded, codes.DeadlineExceeded, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(toStatus(tt.err, now))
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, st.Code())
			require.Len(t, st.Details(), 1)
			info, ok := st.Details()[0].(*errdetails.ErrorInfo)
			require.True(t, ok)
			assert.Equal(t, tt.reason, info.GetReason())
			assert.Equal(t, ErrorDomain, info.GetDomain())
		})
	}
}

func TestToStatus_RateLimited(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	err := &security.RateLimitedError{ResetAt: now.Add(90 * time.Second)}

	st, ok := status.FromError(toStatus(err, now))
	require.True(t, ok)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
	require.Len(t, st.Details(), 2)
	retry, ok := st.Details()[1].(*errdetails.RetryInfo)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, retry.GetRetryDelay().AsDuration())
}

func TestToStatus_InternalHidesMessage(t *testing.T) {
	st, ok := status.FromError(toStatus(errors.New("connection refused to 10.0.0.5"), time.Now()))
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal error", st.Message())
	assert.Empty(t, st.Details())
}
