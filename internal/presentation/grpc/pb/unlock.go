// Package pb unlock.v1.UnlockService のサービス定義
//
// メッセージは google.protobuf.Struct で受け渡す。フィールド名はREST APIのJSONと同じ。
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "unlock.v1.UnlockService"

	ValidateCodeFullMethod = "/" + ServiceName + "/ValidateCode"
	RedeemCodeFullMethod   = "/" + ServiceName + "/RedeemCode"
	JoinPackFullMethod     = "/" + ServiceName + "/JoinPack"
)

// UnlockServiceServer サーバー側インターフェース
type UnlockServiceServer interface {
	ValidateCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RedeemCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JoinPack(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterUnlockServiceServer サーバーにUnlockServiceを登録
func RegisterUnlockServiceServer(s grpc.ServiceRegistrar, srv UnlockServiceServer) {
	s.RegisterService(&UnlockServiceDesc, srv)
}

// UnlockServiceDesc サービス記述子
var UnlockServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UnlockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateCode", Handler: unaryHandler(ValidateCodeFullMethod, UnlockServiceServer.ValidateCode)},
		{MethodName: "RedeemCode", Handler: unaryHandler(RedeemCodeFullMethod, UnlockServiceServer.RedeemCode)},
		{MethodName: "JoinPack", Handler: unaryHandler(JoinPackFullMethod, UnlockServiceServer.JoinPack)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "unlock/v1/unlock.proto",
}

type unaryMethod func(UnlockServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, method unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(UnlockServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(UnlockServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// UnlockServiceClient クライアント
type UnlockServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewUnlockServiceClient 新しいUnlockServiceClientを作成
func NewUnlockServiceClient(cc grpc.ClientConnInterface) *UnlockServiceClient {
	return &UnlockServiceClient{cc: cc}
}

// ValidateCode コード検証
func (c *UnlockServiceClient) ValidateCode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ValidateCodeFullMethod, in, opts...)
}

// RedeemCode コード引き換え
func (c *UnlockServiceClient) RedeemCode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RedeemCodeFullMethod, in, opts...)
}

// JoinPack パック参加
func (c *UnlockServiceClient) JoinPack(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, JoinPackFullMethod, in, opts...)
}

func (c *UnlockServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
