package v1alpha1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "rpgprogression.v1alpha1.ProgressionService"

// Full method names
const (
	MethodCreateCharacter = "/" + ServiceName + "/CreateCharacter"
	MethodGetCharacter    = "/" + ServiceName + "/GetCharacter"
	MethodPlanLevelUp     = "/" + ServiceName + "/PlanLevelUp"
	MethodLevelUp         = "/" + ServiceName + "/LevelUp"
	MethodLevelDown       = "/" + ServiceName + "/LevelDown"
	MethodRefresh         = "/" + ServiceName + "/Refresh"
)

// ProgressionServiceServer is the server API. Requests and responses are
// JSON objects carried as google.protobuf.Struct.
type ProgressionServiceServer interface {
	CreateCharacter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCharacter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlanLevelUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LevelUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LevelDown(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedProgressionServiceServer can be embedded for forward compatibility
type UnimplementedProgressionServiceServer struct{}

// CreateCharacter is not implemented
func (UnimplementedProgressionServiceServer) CreateCharacter(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateCharacter not implemented")
}

// GetCharacter is not implemented
func (UnimplementedProgressionServiceServer) GetCharacter(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCharacter not implemented")
}

// PlanLevelUp is not implemented
func (UnimplementedProgressionServiceServer) PlanLevelUp(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PlanLevelUp not implemented")
}

// LevelUp is not implemented
func (UnimplementedProgressionServiceServer) LevelUp(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method LevelUp not implemented")
}

// LevelDown is not implemented
func (UnimplementedProgressionServiceServer) LevelDown(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method LevelDown not implemented")
}

// Refresh is not implemented
func (UnimplementedProgressionServiceServer) Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}

// RegisterProgressionServiceServer registers srv on s
func RegisterProgressionServiceServer(s grpc.ServiceRegistrar, srv ProgressionServiceServer) {
	s.RegisterService(&ProgressionServiceDesc, srv)
}

type unaryMethod func(ProgressionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ProgressionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ProgressionServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ProgressionServiceDesc describes the service for grpc.Server
var ProgressionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProgressionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateCharacter",
			Handler:    unaryHandler(MethodCreateCharacter, ProgressionServiceServer.CreateCharacter),
		},
		{
			MethodName: "GetCharacter",
			Handler:    unaryHandler(MethodGetCharacter, ProgressionServiceServer.GetCharacter),
		},
		{
			MethodName: "PlanLevelUp",
			Handler:    unaryHandler(MethodPlanLevelUp, ProgressionServiceServer.PlanLevelUp),
		},
		{
			MethodName: "LevelUp",
			Handler:    unaryHandler(MethodLevelUp, ProgressionServiceServer.LevelUp),
		},
		{
			MethodName: "LevelDown",
			Handler:    unaryHandler(MethodLevelDown, ProgressionServiceServer.LevelDown),
		},
		{
			MethodName: "Refresh",
			Handler:    unaryHandler(MethodRefresh, ProgressionServiceServer.Refresh),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpgprogression/v1alpha1/progression.proto",
}

// ProgressionServiceClient is the client API
type ProgressionServiceClient interface {
	CreateCharacter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetCharacter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PlanLevelUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	LevelUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	LevelDown(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type progressionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewProgressionServiceClient creates a client on cc
func NewProgressionServiceClient(cc grpc.ClientConnInterface) ProgressionServiceClient {
	return &progressionServiceClient{cc: cc}
}

func (c *progressionServiceClient) invoke(
	ctx context.Context,
	method string,
	in *structpb.Struct,
	opts []grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *progressionServiceClient) CreateCharacter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreateCharacter, in, opts)
}

func (c *progressionServiceClient) GetCharacter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetCharacter, in, opts)
}

func (c *progressionServiceClient) PlanLevelUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPlanLevelUp, in, opts)
}

func (c *progressionServiceClient) LevelUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLevelUp, in, opts)
}

func (c *progressionServiceClient) LevelDown(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLevelDown, in, opts)
}

func (c *progressionServiceClient) Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRefresh, in, opts)
}
