package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-tracker/backend/internal/audit"
	"task-tracker/backend/internal/logging"
	"task-tracker/backend/internal/security"
	sessiondomain "task-tracker/backend/internal/session/domain"
	telemetrydomain "task-tracker/backend/internal/telemetry/domain"
	userdomain "task-tracker/backend/internal/user/domain"
	userrepo "task-tracker/backend/internal/user/repository"
)

// Sentinel errors for auth service; transports map them to HTTP statuses and gRPC codes.
var (
	ErrUsernameTaken      = errors.New("username already registered")
	ErrBadCredentials     = errors.New("incorrect username or password")
	ErrMissingCredentials = errors.New("access and refresh tokens are required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrTokenMismatch      = errors.New("token does not match active session")
	ErrInvalidInput       = errors.New("invalid input")
	// ErrStoreUnavailable wraps failures of the user or session store. Requests fail closed.
	ErrStoreUnavailable = errors.New("credential or session store unavailable")
)

const maxPasswordBytes = 72 // bcrypt input limit

// Credentials is the token pair a client presents.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func newTokenPair(access, refresh string) *TokenPair {
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionStore is the minimal session store needed by the auth service.
type SessionStore interface {
	Put(ctx context.Context, username, accessToken, refreshToken string) error
	Get(ctx context.Context, username string) (*sessiondomain.Session, error)
	Delete(ctx context.Context, username string) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
}

// TokenCodec mints and decodes access and refresh tokens.
type TokenCodec interface {
	IssueAccessToken(subject string) (string, error)
	IssueRefreshToken(subject string) (string, error)
	Decode(token string) (security.Claims, error)
}

// dummyComparer is implemented by hashers that can spend equal time on unknown users.
type dummyComparer interface {
	CompareDummy(password []byte)
}

// Options tune AuthService behaviour.
type Options struct {
	// StrictRefresh requires a live session whose refresh token equals the presented one before
	// a new access token is issued. Off by default: any valid refresh token is trusted.
	StrictRefresh bool
	Audit         audit.AuditLogger
	Logger        logging.Logger
}

// AuthService implements register, login, logout, refresh and request authentication.
type AuthService struct {
	users    UserRepo
	sessions SessionStore
	hasher   PasswordHasher
	tokens   TokenCodec
	authn    *Authenticator
	strict   bool
	audit    audit.AuditLogger
	log      logging.Logger
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(users UserRepo, sessions SessionStore, hasher PasswordHasher, tokens TokenCodec, opts Options) *AuthService {
	if opts.Audit == nil {
		opts.Audit = audit.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		authn:    NewAuthenticator(tokens, users, sessions),
		strict:   opts.StrictRefresh,
		audit:    opts.Audit,
		log:      opts.Logger.With("module", "auth"),
		now:      time.Now,
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, username, password string) (user *userdomain.User, err error) {
	username = strings.TrimSpace(username)
	defer func() { s.record(ctx, telemetrydomain.EventRegister, username, err) }()

	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeErr(err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user = &userdomain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    s.now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, storeErr(err)
	}
	return user, nil
}

// Login verifies the password, issues a fresh token pair and makes it the user's only live
// session, which logs out any other client of the same user.
func (s *AuthService) Login(ctx context.Context, username, password string) (pair *TokenPair, err error) {
	username = strings.TrimSpace(username)
	defer func() { s.record(ctx, telemetrydomain.EventLogin, username, err) }()

	if username == "" || password == "" {
		return nil, ErrBadCredentials
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeErr(err)
	}
	if user == nil {
		if d, ok := s.hasher.(dummyComparer); ok {
			d.CompareDummy([]byte(password))
		}
		return nil, ErrBadCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	access, err := s.tokens.IssueAccessToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.sessions.Put(ctx, user.Username, access, refresh); err != nil {
		return nil, storeErr(err)
	}
	return newTokenPair(access, refresh), nil
}

// Logout destroys the session of the user named by the refresh token. The stored pair is not
// compared with the presented one, so any holder of a valid refresh token can end the session.
func (s *AuthService) Logout(ctx context.Context, creds Credentials) (err error) {
	var username string
	defer func() { s.record(ctx, telemetrydomain.EventLogout, username, err) }()

	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return ErrMissingCredentials
	}
	claims, err := s.tokens.Decode(creds.RefreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	username = claims.Subject
	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return storeErr(err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.sessions.Delete(ctx, user.Username); err != nil {
		return storeErr(err)
	}
	return nil
}

// Refresh issues a new access token for the refresh token's subject and stores it alongside the
// unchanged refresh token. The previous access token stops matching the session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	var username string
	defer func() { s.record(ctx, telemetrydomain.EventRefresh, username, err) }()

	if refreshToken == "" {
		return nil, ErrMissingCredentials
	}
	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	username = claims.Subject

	if s.strict {
		sess, err := s.sessions.Get(ctx, username)
		if err != nil {
			return nil, storeErr(err)
		}
		if sess == nil {
			return nil, ErrSessionNotFound
		}
		if !security.TokensEqual(sess.RefreshToken, refreshToken) {
			return nil, ErrTokenMismatch
		}
	}

	access, err := s.tokens.IssueAccessToken(username)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	if err := s.sessions.Put(ctx, username, access, refreshToken); err != nil {
		return nil, storeErr(err)
	}
	return newTokenPair(access, refreshToken), nil
}

// Authenticate validates a presented token pair against the live session and returns the user.
func (s *AuthService) Authenticate(ctx context.Context, creds Credentials) (user *userdomain.User, err error) {
	user, err = s.authn.Authenticate(ctx, creds)
	if err != nil {
		// Successful checks run on every request; only rejections are audited.
		s.record(ctx, telemetrydomain.EventAuthenticate, subjectHint(s.tokens, creds.RefreshToken), err)
	}
	return user, err
}

func (s *AuthService) record(ctx context.Context, eventType, username string, err error) {
	reason := ReasonOf(err)
	if errors.Is(err, ErrStoreUnavailable) || reason == "internal" {
		s.log.Error(ctx, "auth operation failed", "event", eventType, "username", username, "error", err)
	}
	s.audit.LogEvent(ctx, eventType, username, reason)
}

// subjectHint returns the refresh token's subject for auditing, or "" if it does not decode.
func subjectHint(tokens TokenCodec, refreshToken string) string {
	if refreshToken == "" {
		return ""
	}
	claims, err := tokens.Decode(refreshToken)
	if err != nil {
		return ""
	}
	return claims.Subject
}

func validateCredentials(username, password string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(username) > userdomain.MaxUsernameLength {
		return fmt.Errorf("%w: username must be at most %d characters", ErrInvalidInput, userdomain.MaxUsernameLength)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// ReasonOf returns a short audit code for err, or "" for nil.
func ReasonOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrBadCredentials):
		return "bad_credentials"
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrTokenMismatch):
		return "token_mismatch"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
