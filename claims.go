package wsclient

import (
	"time"

	"github.com/goccy/go-json"
)

// Claims is the JWT payload. It is handed to the signer as-is; no schema is enforced.
type Claims map[string]any

// NewClaims returns the conventional claim set the web service expects:
// issuer, subject, issue time and an expiry ttl after it.
func NewClaims(issuer, subject string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		"iss": issuer,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
}

// Clone returns a shallow copy of the claims.
func (c Claims) Clone() Claims {
	if c == nil {
		return nil
	}
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ExpiresAt returns the "exp" claim as a time, if it is present and numeric.
func (c Claims) ExpiresAt() (time.Time, bool) {
	return numericDate(c["exp"])
}

// IssuedAt returns the "iat" claim as a time, if it is present and numeric.
func (c Claims) IssuedAt() (time.Time, bool) {
	return numericDate(c["iat"])
}

func numericDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case int32:
		return time.Unix(int64(v), 0), true
	case float64:
		return time.Unix(int64(v), 0), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	default:
		return time.Time{}, false
	}
}
