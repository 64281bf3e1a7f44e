package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, forged, expired, or carries no subject.
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmptySecret is returned by NewTokenCodec when no signing secret is configured.
	ErrEmptySecret = errors.New("security: token signing secret is empty")
)

// Claims is the decoded content of an access or refresh token.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and decodes HS256 JWTs. Access and refresh tokens share the secret and
// differ only in lifetime. Every token carries a random jti so two tokens minted for the same
// subject within one second never collide.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec returns a codec signing with secret. The secret is copied; it is loaded once at
// startup and never rotated within the process.
func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of c that reads the current time from now. Tests use it to mint
// tokens in the past.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// AccessTTL is the lifetime of tokens from IssueAccessToken.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the lifetime of tokens from IssueRefreshToken.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccessToken mints a short-lived token for subject.
func (c *TokenCodec) IssueAccessToken(subject string) (string, error) {
	return c.issue(subject, c.accessTTL)
}

// IssueRefreshToken mints a long-lived token for subject.
func (c *TokenCodec) IssueRefreshToken(subject string) (string, error) {
	return c.issue(subject, c.refreshTTL)
}

func (c *TokenCodec) issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies signature and expiry and returns the claims. Every failure, including an
// expired token, is reported as ErrInvalidToken.
func (c *TokenCodec) Decode(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, ErrInvalidToken
	}
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &rc, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if rc.Subject == "" || rc.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	out := Claims{
		Subject:   rc.Subject,
		ID:        rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	return out, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
