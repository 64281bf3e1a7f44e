package domain

import "time"

// DefaultTTL is how long a session record lives in the store (7 days).
const DefaultTTL = 7 * 24 * time.Hour

// Session is the server-side record of a user's one live token pair. It is keyed by Username
// and serialized as {"access_token": ..., "refresh_token": ...}.
type Session struct {
	Username     string `json:"-"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
