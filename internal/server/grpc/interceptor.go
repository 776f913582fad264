package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/gateway"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// requirements lists methods that need an authenticated caller. Anything
// else is optional.
var requirements = map[string]gateway.Requirement{
	MeMethod: gateway.AuthRequired,
}

func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			header = values[0]
		}
	}

	ctx, err := s.authz.Authorize(ctx, header, requirements[info.FullMethod])
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return handler(ctx, req)
}
