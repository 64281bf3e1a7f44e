package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	identityservice "task-tracker/backend/internal/identity/service"
	userdomain "task-tracker/backend/internal/user/domain"
)

// Cookie and header names carrying the session token pair.
const (
	AccessCookie       = "access_token"
	RefreshCookie      = "refresh_token"
	RefreshTokenHeader = "X-Refresh-Token"
)

// ContextUserKey is the gin context key holding the authenticated *userdomain.User.
const ContextUserKey = "auth.user"

// credentialsFromRequest reads the token pair from cookies, falling back per token to the
// Authorization Bearer header and X-Refresh-Token.
func credentialsFromRequest(c *gin.Context) identityservice.Credentials {
	var creds identityservice.Credentials
	if v, err := c.Cookie(AccessCookie); err == nil {
		creds.AccessToken = v
	}
	if v, err := c.Cookie(RefreshCookie); err == nil {
		creds.RefreshToken = v
	}
	if creds.AccessToken == "" {
		creds.AccessToken = bearerToken(c.GetHeader("Authorization"))
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = strings.TrimSpace(c.GetHeader(RefreshTokenHeader))
	}
	return creds
}

func bearerToken(v string) string {
	const prefix = "bearer "
	v = strings.TrimSpace(v)
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}

// RequireSession authenticates the token pair on every request and stores the user under ContextUserKey.
func RequireSession(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authn.Authenticate(c.Request.Context(), credentialsFromRequest(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// currentUser returns the user set by RequireSession.
func currentUser(c *gin.Context) *userdomain.User {
	u, _ := c.MustGet(ContextUserKey).(*userdomain.User)
	return u
}

// cookieJar sets and clears the auth cookies.
type cookieJar struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (j cookieJar) set(c *gin.Context, name, value string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j cookieJar) setPair(c *gin.Context, pair *identityservice.TokenPair) {
	j.set(c, AccessCookie, pair.AccessToken, j.accessTTL)
	j.set(c, RefreshCookie, pair.RefreshToken, j.refreshTTL)
}

func (j cookieJar) clear(c *gin.Context) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   j.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
