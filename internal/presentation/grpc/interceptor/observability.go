package interceptor

import (
	"context"
	"time"

	otelinfra "unlock-server/internal/infrastructure/observability/otel"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ObservabilityInterceptor トレース・リクエストログ・メトリクスを記録するインターセプター
// 認証インターセプターより前に置く
func ObservabilityInterceptor(logger *otelinfra.Logger, metrics *otelinfra.Metrics) grpc.UnaryServerInterceptor {
	tracer := otel.Tracer("unlock-server")

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
		}
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.method", info.FullMethod),
		)

		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		code := status.Code(err)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))

		metrics.RecordRequest(ctx, "GRPC", info.FullMethod)
		metrics.RecordResponseTime(ctx, "GRPC", info.FullMethod, duration.Seconds())

		fields := map[string]interface{}{
			"method":      info.FullMethod,
			"code":        code.String(),
			"duration_ms": duration.Milliseconds(),
			"remote_ip":   ClientIP(ctx),
		}
		switch {
		case code == codes.OK:
			logger.Info(ctx, "gRPC request", fields)
		case isServerError(code):
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			metrics.RecordError(ctx, "server_error")
			logger.Error(ctx, "gRPC request", err, fields)
		default:
			metrics.RecordError(ctx, "client_error")
			logger.Warn(ctx, "gRPC request", fields)
		}
		return resp, err
	}
}

func isServerError(code codes.Code) bool {
	switch code {
	case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss, codes.DeadlineExceeded, codes.Unimplemented:
		return true
	}
	return false
}

// metadataCarrier gRPCメタデータをTextMapCarrierとして扱う
type metadataCarrier metadata.MD

var _ propagation.TextMapCarrier = metadataCarrier(nil)

func (c metadataCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
