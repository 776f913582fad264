package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified name of the internal users service.
const ServiceName = "gophauth.internal.Users"

const (
	ResolveTokenMethod = "/" + ServiceName + "/ResolveToken"
	MeMethod           = "/" + ServiceName + "/Me"
)

// UsersServer is the server API of the internal users service. Messages
// are protobuf well-known types: users are encoded as a Struct
// {"user": {"_id", "username", "token"?}} with a null user when a token
// does not resolve.
type UsersServer interface {
	ResolveToken(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
	Me(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

func resolveTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UsersServer).ResolveToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UsersServer).ResolveToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func meHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UsersServer).Me(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UsersServer).Me(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// UsersServiceDesc describes the internal users service for grpc.Server.
var UsersServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UsersServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveToken", Handler: resolveTokenHandler},
		{MethodName: "Me", Handler: meHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/internal/users",
}

// RegisterUsersServer registers srv on s.
func RegisterUsersServer(s grpc.ServiceRegistrar, srv UsersServer) {
	s.RegisterService(&UsersServiceDesc, srv)
}

// UsersClient calls the internal users service.
type UsersClient struct {
	cc grpc.ClientConnInterface
}

func NewUsersClient(cc grpc.ClientConnInterface) *UsersClient {
	return &UsersClient{cc: cc}
}

func (c *UsersClient) ResolveToken(ctx context.Context, token string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ResolveTokenMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UsersClient) Me(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MeMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
