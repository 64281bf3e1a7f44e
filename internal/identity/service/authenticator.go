package service

import (
	"context"

	"task-tracker/backend/internal/security"
	sessiondomain "task-tracker/backend/internal/session/domain"
	userdomain "task-tracker/backend/internal/user/domain"
)

// UserLookup resolves a token subject to a user.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// SessionReader reads the live session record for a user.
type SessionReader interface {
	Get(ctx context.Context, username string) (*sessiondomain.Session, error)
}

// TokenDecoder verifies a token and returns its claims.
type TokenDecoder interface {
	Decode(token string) (security.Claims, error)
}

// Authenticator validates the token pair a request carries. It runs every check in a single
// pass and returns the first failure:
//
//  1. both tokens present, else ErrMissingCredentials
//  2. refresh token decodes, else ErrInvalidToken
//  3. its subject names a user, else ErrUserNotFound
//  4. that user has a session record, else ErrSessionNotFound
//  5. the record holds exactly the presented pair, else ErrTokenMismatch
//
// The access token is only compared, never decoded; it stays valid for as long as it is the one
// stored in the session. Store failures return ErrStoreUnavailable and the request is rejected.
type Authenticator struct {
	tokens   TokenDecoder
	users    UserLookup
	sessions SessionReader
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(tokens TokenDecoder, users UserLookup, sessions SessionReader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, sessions: sessions}
}

// Authenticate returns the user owning creds or the reason they were rejected.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*userdomain.User, error) {
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return nil, ErrMissingCredentials
	}
	claims, err := a.tokens.Decode(creds.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := a.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, storeErr(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	sess, err := a.sessions.Get(ctx, user.Username)
	if err != nil {
		return nil, storeErr(err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	accessOK := security.TokensEqual(sess.AccessToken, creds.AccessToken)
	refreshOK := security.TokensEqual(sess.RefreshToken, creds.RefreshToken)
	if !accessOK || !refreshOK {
		return nil, ErrTokenMismatch
	}
	return user, nil
}
