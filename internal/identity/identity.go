// Package identity resolves the authenticated principal for a request and
// rewrites its headers for upstream consumption.
//
// DESIGN: Credential precedence, first success wins:
//  1. Authorization header carrying a valid downstream access token: the
//     request is downstream-native and passes through untouched.
//  2. Authorization header or gateway cookie carrying a valid gateway token:
//     identity headers are injected and the gateway token stripped so the
//     upstream never sees it.
//  3. A `token` query parameter (WebSocket upgrades and direct-navigation
//     asset fetches cannot always set headers).
//
// Failure leaves the request anonymous; route policy decides what that means.
package identity

import (
	"net/http"

	"github.com/instihub/chatgate/internal/token"
)

// Identity headers injected into upstream requests. X-User-From-Proxy is a
// legacy alias some downstream middleware still reads.
const (
	HeaderUser      = "X-Authenticated-User"
	HeaderUserAlias = "X-User-From-Proxy"
)

// Identity is the outcome of credential resolution.
type Identity struct {
	// Email of the authenticated principal, empty when anonymous.
	Email string
	// Passthrough is set when the request carried a downstream-native access
	// token that must reach the upstream unmodified.
	Passthrough bool
}

// Extractor resolves identities using the gateway and downstream-access codecs.
type Extractor struct {
	gateway    *token.Codec
	access     *token.Codec
	cookieName string
}

// NewExtractor builds an extractor. gateway verifies the proxy's own tokens,
// access verifies downstream-native access tokens.
func NewExtractor(gateway, access *token.Codec, cookieName string) *Extractor {
	return &Extractor{gateway: gateway, access: access, cookieName: cookieName}
}

// Identify resolves the request's identity without mutating it.
func (e *Extractor) Identify(r *http.Request) Identity {
	if raw := token.StripBearer(r.Header.Get("Authorization")); raw != "" {
		if _, err := e.access.Verify(raw); err == nil {
			return Identity{Passthrough: true}
		}
		if claims, err := e.gateway.Verify(raw); err == nil {
			return Identity{Email: token.StringClaim(claims, "email")}
		}
	}
	if c, err := r.Cookie(e.cookieName); err == nil {
		if claims, err := e.gateway.Verify(c.Value); err == nil {
			return Identity{Email: token.StringClaim(claims, "email")}
		}
	}
	if q := r.URL.Query().Get("token"); q != "" {
		if claims, err := e.gateway.Verify(q); err == nil {
			return Identity{Email: token.StringClaim(claims, "email")}
		}
	}
	return Identity{}
}

// Decorate resolves the identity and rewrites r's headers in place: identity
// headers are injected for authenticated requests, and the Authorization
// header is removed only when its value verified as the gateway's own token.
// A bearer the gateway did not issue (the tenant API validates its own
// tokens) rides through untouched even when the identity came from the
// cookie or query parameter. Passthrough and anonymous requests are never
// mutated.
func (e *Extractor) Decorate(r *http.Request) Identity {
	id := e.Identify(r)
	if id.Passthrough || id.Email == "" {
		return id
	}
	Inject(r.Header, id.Email)
	if raw := token.StripBearer(r.Header.Get("Authorization")); raw != "" {
		if _, err := e.gateway.Verify(raw); err == nil {
			r.Header.Del("Authorization")
		}
	}
	return id
}

// Inject sets the identity headers for email on hdr.
func Inject(hdr http.Header, email string) {
	if email == "" {
		return
	}
	hdr.Set(HeaderUser, email)
	hdr.Set(HeaderUserAlias, email)
}
