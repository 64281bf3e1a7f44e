package interceptors

import "context"

type contextKey struct{ name string }

var (
	userIDKey   = contextKey{"user_id"}
	usernameKey = contextKey{"username"}
)

// WithUser returns a context carrying the authenticated user's id and username.
// Handlers read them via GetUserID and GetUsername.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, usernameKey, username)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetUsername returns the username from context and true if set; otherwise "", false.
func GetUsername(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(usernameKey).(string)
	return v, ok
}
