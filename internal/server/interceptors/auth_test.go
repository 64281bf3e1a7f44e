package interceptors

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identityservice "task-tracker/backend/internal/identity/service"
	userdomain "task-tracker/backend/internal/user/domain"
)

// mockAuthenticator accepts exactly one token pair.
type mockAuthenticator struct {
	access, refresh string
	err             error
	calls           int
}

func (m *mockAuthenticator) Authenticate(_ context.Context, creds identityservice.Credentials) (*userdomain.User, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return nil, identityservice.ErrMissingCredentials
	}
	if creds.AccessToken != m.access || creds.RefreshToken != m.refresh {
		return nil, identityservice.ErrTokenMismatch
	}
	return &userdomain.User{ID: "user-1", Username: "alice"}, nil
}

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "success", nil
}

func incoming(kv ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
}

func TestSessionUnary_PublicMethod(t *testing.T) {
	authn := &mockAuthenticator{}
	interceptor := SessionUnary(authn, map[string]bool{"/test.Service/PublicMethod": true})

	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/PublicMethod",
	}, okHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
	if authn.calls != 0 {
		t.Errorf("Authenticate called %d times for public method", authn.calls)
	}
}

func TestSessionUnary_ValidPair(t *testing.T) {
	interceptor := SessionUnary(&mockAuthenticator{access: "a1", refresh: "r1"}, nil)
	ctx := incoming(MetadataAccessToken, "a1", MetadataRefreshToken, "r1")

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		if id, _ := GetUserID(ctx); id != "user-1" {
			t.Errorf("user_id = %q, want user-1", id)
		}
		if name, _ := GetUsername(ctx); name != "alice" {
			t.Errorf("username = %q, want alice", name)
		}
		return "success", nil
	}
	if _, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/Protected"}, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestSessionUnary_BearerFallback(t *testing.T) {
	interceptor := SessionUnary(&mockAuthenticator{access: "a1", refresh: "r1"}, nil)
	ctx := incoming("authorization", "Bearer a1", MetadataRefreshToken, "r1")
	if _, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/Protected"}, okHandler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestSessionUnary_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		err   error
		wantC codes.Code
	}{
		{"no metadata", context.Background(), nil, codes.Unauthenticated},
		{"access only", incoming(MetadataAccessToken, "a1"), nil, codes.Unauthenticated},
		{"mismatch", incoming(MetadataAccessToken, "a2", MetadataRefreshToken, "r1"), nil, codes.Unauthenticated},
		{"store down", incoming(MetadataAccessToken, "a1", MetadataRefreshToken, "r1"),
			fmt.Errorf("%w: dial tcp", identityservice.ErrStoreUnavailable), codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := SessionUnary(&mockAuthenticator{access: "a1", refresh: "r1", err: tt.err}, nil)
			called := false
			_, err := interceptor(tt.ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/Protected"},
				func(ctx context.Context, req interface{}) (interface{}, error) {
					called = true
					return nil, nil
				})
			if called {
				t.Error("handler must not run for rejected credentials")
			}
			if got := status.Code(err); got != tt.wantC {
				t.Errorf("status code = %v, want %v", got, tt.wantC)
			}
		})
	}
}

func TestStatusFromAuthError(t *testing.T) {
	if StatusFromAuthError(nil) != nil {
		t.Error("nil error should map to nil")
	}
	if got := status.Code(StatusFromAuthError(fmt.Errorf("boom"))); got != codes.Internal {
		t.Errorf("unknown error code = %v, want Internal", got)
	}
	for _, err := range []error{
		identityservice.ErrInvalidToken,
		identityservice.ErrUserNotFound,
		identityservice.ErrSessionNotFound,
	} {
		if got := status.Code(StatusFromAuthError(err)); got != codes.Unauthenticated {
			t.Errorf("code(%v) = %v, want Unauthenticated", err, got)
		}
	}
}

func TestExtractBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bear":         "",
		"":             "",
	}
	for in, want := range cases {
		if got := extractBearer(in); got != want {
			t.Errorf("extractBearer(%q) = %q, want %q", in, got, want)
		}
	}
}
