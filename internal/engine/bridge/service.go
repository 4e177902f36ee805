// ABOUTME: Hand-written gRPC service descriptor for the engine bridge.
// ABOUTME: Events is a bidi stream of raw JSON; Execute is a unary call.

package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service and method names on the wire.
const (
	ServiceName       = "tdsession.Engine"
	eventsMethod      = "/" + ServiceName + "/Events"
	executeMethod     = "/" + ServiceName + "/Execute"
	bridgeMetadataKey = "tdsession-bridge"
)

// EngineServer is implemented by Server; it is the descriptor's handler type.
type EngineServer interface {
	Events(stream grpc.ServerStream) error
	Execute(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Events",
			Handler:       eventsHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: bridgeMetadataKey,
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(EngineServer).Events(stream)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: executeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EngineServer).Execute(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
