package interceptor

import (
	"context"
	"strings"

	authapp "unlock-server/internal/application/auth"
	otelinfra "unlock-server/internal/infrastructure/observability/otel"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type claimsKey struct{}

// AuthInterceptor JWT認証インターセプター
// optional に含まれるメソッドはトークンなしでも通すが、トークンがあれば検証する
func AuthInterceptor(authService *authapp.AuthApplicationService, logger *otelinfra.Logger, optional ...string) grpc.UnaryServerInterceptor {
	optionalMethods := make(map[string]bool, len(optional))
	for _, m := range optional {
		optionalMethods[m] = true
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		authHeader := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				authHeader = values[0]
			}
		}

		if authHeader == "" {
			if optionalMethods[info.FullMethod] {
				return handler(ctx, req)
			}
			logger.Warn(ctx, "Missing authorization header", map[string]interface{}{
				"method": info.FullMethod,
			})
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		// Bearerトークンの形式を確認
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			logger.Warn(ctx, "Invalid authorization header format", map[string]interface{}{
				"method": info.FullMethod,
			})
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		claims, err := authService.ParseToken(parts[1])
		if err != nil {
			logger.Warn(ctx, "Invalid token", map[string]interface{}{
				"method": info.FullMethod,
				"error":  err.Error(),
			})
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		return handler(WithClaims(ctx, claims), req)
	}
}

// ClaimsFromContext 認証済みのクレームを返す（匿名呼び出しでは nil）
func ClaimsFromContext(ctx context.Context) *authapp.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*authapp.Claims)
	return claims
}

// UserID 認証済みユーザーIDを返す（匿名呼び出しでは空文字）
func UserID(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

// WithClaims クレームをコンテキストに設定する
func WithClaims(ctx context.Context, claims *authapp.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}
