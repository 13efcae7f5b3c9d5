package interceptor

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// ClientIP クライアントのIPアドレスを取得
// x-forwarded-for, x-real-ip の順に見て、なければ接続元アドレスを使う
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if forwardedFor := md.Get("x-forwarded-for"); len(forwardedFor) > 0 {
			// カンマ区切りの最初のIPを取得
			first := strings.TrimSpace(strings.Split(forwardedFor[0], ",")[0])
			if first != "" {
				return first
			}
		}
		if realIP := md.Get("x-real-ip"); len(realIP) > 0 && realIP[0] != "" {
			return realIP[0]
		}
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

// UserAgent クライアントのUser-Agentを取得
func UserAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if ua := md.Get("user-agent"); len(ua) > 0 {
		return ua[0]
	}
	return ""
}
