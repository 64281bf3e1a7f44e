package security

import "crypto/subtle"

// TokensEqual reports whether a and b are the same token, in constant time with respect to content.
// Empty tokens never match.
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
