package handler

import (
	"context"
	"errors"
	"time"

	redemptionapp "unlock-server/internal/application/code_redemption"
	"unlock-server/internal/domain/group_pack"
	"unlock-server/internal/domain/release"
	"unlock-server/internal/domain/security"
	"unlock-server/internal/domain/unlock_code"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/durationpb"
)

// ErrorDomain ErrorInfo に設定するドメイン
const ErrorDomain = "unlock-server"

type errorMapping struct {
	target error
	code   codes.Code
	reason string
}

// 先に一致したものを使う。reason はREST APIのエラーコードと同じ
var errorMappings = []errorMapping{
	{redemptionapp.ErrInvalidOrUsedCode, codes.NotFound, "invalid_or_used_code"},
	{unlock_code.ErrMalformedCode, codes.InvalidArgument, "malformed_code"},
	{unlock_code.ErrCodeNotFound, codes.NotFound, "code_not_found"},
	{unlock_code.ErrCodeAlreadyRedeemed, codes.AlreadyExists, "code_already_redeemed"},
	{unlock_code.ErrCodeRevoked, codes.FailedPrecondition, "code_revoked"},
	{unlock_code.ErrCodeExpired, codes.FailedPrecondition, "code_expired"},
	{security.ErrRateLimited, codes.ResourceExhausted, "rate_limited"},
	{security.ErrDeviceMismatch, codes.PermissionDenied, "device_mismatch"},
	{security.ErrIPMismatch, codes.PermissionDenied, "ip_mismatch"},
	{security.ErrFraudBlocked, codes.PermissionDenied, "fraud_blocked"},
	{group_pack.ErrPackNotFound, codes.NotFound, "pack_not_found"},
	{group_pack.ErrPackFull, codes.FailedPrecondition, "pack_full"},
	{group_pack.ErrPackInactiveOrExpired, codes.FailedPrecondition, "pack_inactive_or_expired"},
	{group_pack.ErrPackNotYetComplete, codes.FailedPrecondition, "pack_not_complete"},
	{group_pack.ErrAlreadyAMember, codes.AlreadyExists, "already_a_member"},
	{group_pack.ErrNotAMember, codes.PermissionDenied, "not_a_member"},
	{group_pack.ErrInviteCodeNotFound, codes.NotFound, "invite_code_not_found"},
	{group_pack.ErrInviteCodeClaimed, codes.AlreadyExists, "invite_code_claimed"},
	{release.ErrReleaseNotFound, codes.NotFound, "release_not_found"},
	{context.DeadlineExceeded, codes.DeadlineExceeded, "timeout"},
}

// toStatus アプリケーションエラーをgRPCステータスに変換
// 想定外のエラーは内容を隠して Internal にする
func toStatus(err error, now time.Time) error {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		st := status.New(m.code, err.Error())
		details := []protoadapt.MessageV1{&errdetails.ErrorInfo{Reason: m.reason, Domain: ErrorDomain}}

		var limited *security.RateLimitedError
		if errors.As(err, &limited) {
			details = append(details, &errdetails.RetryInfo{RetryDelay: durationpb.New(limited.RetryAfter(now))})
		}
		if withDetails, derr := st.WithDetails(details...); derr == nil {
			st = withDetails
		}
		return st.Err()
	}
	return status.Error(codes.Internal, "internal error")
}
