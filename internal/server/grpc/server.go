// Package grpc serves the internal users service consumed by other
// services of the deployment: token resolution and the caller's profile.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/gateway"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Users is the part of the users service exposed over gRPC.
type Users interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
	Me(ctx context.Context) (*models.Envelope, error)
}

type GRPCServer struct {
	address string
	users   Users
	authz   *gateway.Authorizer
	logger  logging.Logger
}

var _ UsersServer = (*GRPCServer)(nil)

func NewGRPCServer(address string, l logging.Logger, users Users, authz *gateway.Authorizer) *GRPCServer {
	if l == nil {
		l = logging.Nop()
	}
	return &GRPCServer{
		address: address,
		users:   users,
		authz:   authz,
		logger:  l.With("module", "grpc_server"),
	}
}

// NewServer builds a grpc.Server with the users service and the auth
// interceptor registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.authInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterUsersServer(srv, s)
	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *GRPCServer) ResolveToken(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	user, err := s.users.ResolveToken(ctx, in.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if user == nil {
		return userStruct(nil)
	}
	pub := user.Public()
	return userStruct(&pub)
}

func (s *GRPCServer) Me(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	env, err := s.users.Me(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return userStruct(&env.User)
}

func userStruct(u *models.PublicUser) (*structpb.Struct, error) {
	var user any
	if u != nil {
		m := map[string]any{"_id": u.ID, "username": u.Username}
		if u.Token != "" {
			m["token"] = u.Token
		}
		user = m
	}
	out, err := structpb.NewStruct(map[string]any{"user": user})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, common.MessageOf(err))
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, common.MessageOf(err))
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, common.MessageOf(err))
	default:
		s.logger.Error(ctx, "grpc call failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
