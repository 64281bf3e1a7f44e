package interceptors

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identityservice "task-tracker/backend/internal/identity/service"
	userdomain "task-tracker/backend/internal/user/domain"
)

// Metadata keys carrying the session token pair.
const (
	MetadataAccessToken  = "access_token"
	MetadataRefreshToken = "refresh_token"
)

const bearerPrefix = "bearer "

// Authenticator validates a token pair; implemented by identity/service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, creds identityservice.Credentials) (*userdomain.User, error)
}

// SessionUnary returns a unary server interceptor that authenticates the token pair from gRPC
// metadata and sets user_id and username in context for protected RPCs.
// publicMethods is the set of full method names that skip the check (e.g. Authenticate, health).
func SessionUnary(authn Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		user, err := authn.Authenticate(ctx, CredentialsFromMetadata(ctx))
		if err != nil {
			return nil, StatusFromAuthError(err)
		}
		return handler(WithUser(ctx, user.ID, user.Username), req)
	}
}

// CredentialsFromMetadata reads access_token and refresh_token from incoming metadata.
// A Bearer authorization header is accepted in place of access_token.
func CredentialsFromMetadata(ctx context.Context) identityservice.Credentials {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return identityservice.Credentials{}
	}
	creds := identityservice.Credentials{
		AccessToken:  first(md, MetadataAccessToken),
		RefreshToken: first(md, MetadataRefreshToken),
	}
	if creds.AccessToken == "" {
		creds.AccessToken = extractBearer(first(md, "authorization"))
	}
	return creds
}

// StatusFromAuthError maps auth service errors to gRPC status errors.
func StatusFromAuthError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, identityservice.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "session store unavailable")
	case errors.Is(err, identityservice.ErrMissingCredentials),
		errors.Is(err, identityservice.ErrInvalidToken),
		errors.Is(err, identityservice.ErrUserNotFound),
		errors.Is(err, identityservice.ErrSessionNotFound),
		errors.Is(err, identityservice.ErrTokenMismatch):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func first(md metadata.MD, key string) string {
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// extractBearer returns the token from a Bearer authorization value, or "" if malformed.
func extractBearer(v string) string {
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
