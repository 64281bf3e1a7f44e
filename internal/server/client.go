package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"task-tracker/backend/internal/server/interceptors"
)

// SessionClient calls SessionService on a remote server.
type SessionClient struct {
	cc grpc.ClientConnInterface
}

// NewSessionClient returns a client over cc.
func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient {
	return &SessionClient{cc: cc}
}

// Authenticate validates a token pair and returns the owning user.
func (c *SessionClient) Authenticate(ctx context.Context, accessToken, refreshToken string, opts ...grpc.CallOption) (*Identity, error) {
	out := new(Identity)
	req := &AuthenticateRequest{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := c.cc.Invoke(ctx, AuthenticateMethod, req, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// WhoAmI sends the token pair as metadata and returns the user it belongs to.
func (c *SessionClient) WhoAmI(ctx context.Context, accessToken, refreshToken string, opts ...grpc.CallOption) (*Identity, error) {
	ctx = metadata.AppendToOutgoingContext(ctx,
		interceptors.MetadataAccessToken, accessToken,
		interceptors.MetadataRefreshToken, refreshToken)
	out := new(Identity)
	if err := c.cc.Invoke(ctx, WhoAmIMethod, &WhoAmIRequest{}, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionClient) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
