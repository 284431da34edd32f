package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSkew is the negative skew applied by callers that do not configure
// their own: tokens expiring within the next ten seconds count as expired.
const DefaultSkew = 10 * time.Second

// ErrMalformed is returned by [Decode] when the raw value is not a decodable
// JWT. Callers deciding expiry should not branch on it — [Expired] already
// folds malformed tokens into "expired".
var ErrMalformed = errors.New("malformed access token")

// Claims is the decoded, unverified claim set of an access token. Identity
// fields mirror the short claim names the authority issues; any of them may
// be empty on tokens from older authority versions.
type Claims struct {
	UserID      string `json:"uid,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses raw without signature verification and returns its claims.
// Expired tokens decode successfully; only structural failures error.
func Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Expiry returns the token's exp claim. ok is false when the token is
// malformed or carries no expiry, which callers must treat as expired.
func Expiry(raw string) (time.Time, bool) {
	claims, err := Decode(raw)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether raw is definitely expired at now, treating tokens
// that expire within skew as already expired. Malformed tokens and tokens
// without an exp claim are expired. A negative skew is clamped to zero.
func Expired(raw string, now time.Time, skew time.Duration) bool {
	if skew < 0 {
		skew = 0
	}
	exp, ok := Expiry(raw)
	if !ok {
		return true
	}
	return !exp.After(now.Add(skew))
}
