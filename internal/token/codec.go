// Package token mints and verifies the gateway's HMAC-signed bearer tokens.
//
// Three codecs exist at runtime, one per secret: the gateway's own identity
// token, the downstream access token, and the downstream refresh token. A
// codec bound to one secret can never validate a token minted by another.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed means the value is not a parseable token.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired means the token was valid once but is past its exp claim.
	ErrExpired = errors.New("token expired")
	// ErrInvalidSignature covers bad signatures and algorithm mismatches.
	ErrInvalidSignature = errors.New("invalid token signature")
)

// NowFunc returns the current time. Overridable in tests.
var NowFunc = time.Now

// Codec signs and verifies tokens with a single HMAC secret.
type Codec struct {
	secret []byte
}

// New returns a codec bound to secret.
func New(secret []byte) *Codec {
	return &Codec{secret: secret}
}

// Mint signs the given claims with HS256, stamping iat and exp.
func (c *Codec) Mint(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := NowFunc()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates raw, returning its claims. Only HMAC-family
// algorithms are accepted; a token whose header names anything else is
// rejected before signature checking (algorithm-confusion guard).
func (c *Codec) Verify(raw string) (jwt.MapClaims, error) {
	raw = strings.TrimSpace(raw)
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

// StripBearer removes an optional "Bearer " prefix, case-insensitively.
func StripBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}

// StringClaim returns the named claim if present and a string.
func StringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}
