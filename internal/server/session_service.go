package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	identityservice "task-tracker/backend/internal/identity/service"
	"task-tracker/backend/internal/server/interceptors"
)

// SessionServiceName is the fully-qualified gRPC service name.
const SessionServiceName = "tasktracker.session.v1.SessionService"

// Full method names.
const (
	AuthenticateMethod = "/" + SessionServiceName + "/Authenticate"
	WhoAmIMethod       = "/" + SessionServiceName + "/WhoAmI"
)

// AuthenticateRequest carries the token pair to validate.
type AuthenticateRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Identity is the authenticated user returned by Authenticate and WhoAmI.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// WhoAmIRequest is empty; the caller's credentials travel in metadata.
type WhoAmIRequest struct{}

// SessionServiceServer validates sessions for other services.
type SessionServiceServer interface {
	Authenticate(context.Context, *AuthenticateRequest) (*Identity, error)
	WhoAmI(context.Context, *WhoAmIRequest) (*Identity, error)
}

// sessionServer implements SessionServiceServer over the auth service.
type sessionServer struct {
	authn interceptors.Authenticator
}

// NewSessionServer returns a SessionServiceServer. If authn is nil, every RPC returns Unimplemented.
func NewSessionServer(authn interceptors.Authenticator) SessionServiceServer {
	return &sessionServer{authn: authn}
}

func (s *sessionServer) Authenticate(ctx context.Context, req *AuthenticateRequest) (*Identity, error) {
	if s.authn == nil {
		return nil, status.Error(codes.Unimplemented, "method Authenticate not implemented")
	}
	user, err := s.authn.Authenticate(ctx, identityservice.Credentials{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		return nil, interceptors.StatusFromAuthError(err)
	}
	return &Identity{UserID: user.ID, Username: user.Username}, nil
}

func (s *sessionServer) WhoAmI(ctx context.Context, _ *WhoAmIRequest) (*Identity, error) {
	if s.authn == nil {
		return nil, status.Error(codes.Unimplemented, "method WhoAmI not implemented")
	}
	userID, _ := interceptors.GetUserID(ctx)
	username, ok := interceptors.GetUsername(ctx)
	if !ok || username == "" {
		return nil, status.Error(codes.Unauthenticated, "missing session")
	}
	return &Identity{UserID: userID, Username: username}, nil
}

// RegisterSessionServiceServer registers srv with s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

// SessionService_ServiceDesc describes SessionService for grpc.Server.RegisterService.
var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Authenticate", Handler: authenticateHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func authenticateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AuthenticateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).Authenticate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AuthenticateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).Authenticate(ctx, req.(*AuthenticateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WhoAmIRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).WhoAmI(ctx, req.(*WhoAmIRequest))
	}
	return interceptor(ctx, in, info, handler)
}
