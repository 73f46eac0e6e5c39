package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ojarva-net/sso-frontend/internal/application"
	"github.com/ojarva-net/sso-frontend/internal/domain"
)

type SessionInternalService interface {
	ValidateTicket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetVerificationKeys(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type SessionInternalServer struct {
	service *application.Service
}

func NewSessionInternalServer(service *application.Service) *SessionInternalServer {
	return &SessionInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc SessionInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "ojarva.sso.v1.SessionInternalService",
		HandlerType: (*SessionInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateTicket",
				Handler:    validateTicketHandler(svc),
			},
			{
				MethodName: "GetVerificationKeys",
				Handler:    getVerificationKeysHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "sso/contracts/proto/session/v1/session_internal.proto",
	}, svc)
}

func (s *SessionInternalServer) ValidateTicket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ticketVal := req.GetFields()["ticket"]
	if ticketVal == nil {
		return nil, status.Error(codes.InvalidArgument, "missing ticket")
	}
	ticket := ticketVal.GetStringValue()
	if ticket == "" {
		return nil, status.Error(codes.InvalidArgument, "missing ticket")
	}

	claims, err := s.service.VerifyTicket(ctx, ticket)
	if err != nil {
		if errors.Is(err, domain.ErrTicketExpired) {
			return nil, status.Error(codes.Unauthenticated, "ticket expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid ticket")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":      true,
		"username":   claims.Username,
		"browser_id": claims.PublicID,
		"auth_level": claims.AuthLevel.String(),
		"issued_at":  claims.IssuedAt.Unix(),
		"expires_at": claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *SessionInternalServer) GetVerificationKeys(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	keys := s.service.TicketVerificationKeys()
	pems := make(map[string]any, len(keys))
	for kid, pem := range keys {
		pems[kid] = pem
	}
	resp, err := structpb.NewStruct(map[string]any{
		"keys": pems,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func validateTicketHandler(svc SessionInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.ValidateTicket(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/ojarva.sso.v1.SessionInternalService/ValidateTicket",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.ValidateTicket(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getVerificationKeysHandler(svc SessionInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetVerificationKeys(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/ojarva.sso.v1.SessionInternalService/GetVerificationKeys",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetVerificationKeys(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
