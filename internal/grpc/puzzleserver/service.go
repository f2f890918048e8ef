package puzzleserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "visualpuzzles.v1.PuzzleService"

// Method names
const (
	MethodCreateEnvironment = "CreateEnvironment"
	MethodReset             = "Reset"
	MethodStep              = "Step"
	MethodRender            = "Render"
	MethodCloseEnvironment  = "CloseEnvironment"
	MethodListEnvironments  = "ListEnvironments"
)

// PuzzleServiceServer is the server API. Requests and responses travel as
// google.protobuf.Struct so any gRPC client can call the service with the
// well-known types alone.
type PuzzleServiceServer interface {
	CreateEnvironment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Render(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseEnvironment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEnvironments(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(PuzzleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PuzzleServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(name),
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(PuzzleServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// PuzzleServiceDesc describes the service for grpc.Server registration
var PuzzleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PuzzleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodCreateEnvironment, Handler: unaryHandler(MethodCreateEnvironment, PuzzleServiceServer.CreateEnvironment)},
		{MethodName: MethodReset, Handler: unaryHandler(MethodReset, PuzzleServiceServer.Reset)},
		{MethodName: MethodStep, Handler: unaryHandler(MethodStep, PuzzleServiceServer.Step)},
		{MethodName: MethodRender, Handler: unaryHandler(MethodRender, PuzzleServiceServer.Render)},
		{MethodName: MethodCloseEnvironment, Handler: unaryHandler(MethodCloseEnvironment, PuzzleServiceServer.CloseEnvironment)},
		{MethodName: MethodListEnvironments, Handler: unaryHandler(MethodListEnvironments, PuzzleServiceServer.ListEnvironments)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "visualpuzzles/v1/puzzle.proto",
}

// RegisterPuzzleServiceServer registers srv on s
func RegisterPuzzleServiceServer(s grpc.ServiceRegistrar, srv PuzzleServiceServer) {
	s.RegisterService(&PuzzleServiceDesc, srv)
}
