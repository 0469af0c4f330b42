// Package bridge translates a gateway-authenticated identity into the
// downstream chat application's native users, sessions, and tokens.
package bridge

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile is the canonical user profile as served by the tenant API.
type Profile struct {
	Email         string
	FullName      string
	FirstName     string
	LastName      string
	AvatarURL     string
	EmailVerified bool
	// Stub marks a fallback profile synthesized after a tenant-API failure.
	Stub bool
}

// StubProfile is the email-only fallback used when the tenant API is
// unreachable; a login must not hard-fail on a tenant-API outage.
func StubProfile(email string) *Profile {
	return &Profile{Email: email, FullName: email, EmailVerified: true, Stub: true}
}

// DisplayName derives the mirrored user's display name: full name, then
// first/last, then the email local part.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	return Handle(p.Email)
}

// Handle derives the mirrored user's handle from the email local part.
func Handle(email string) string {
	return strings.Split(email, "@")[0]
}

// MirroredUser is the gateway-owned record in the downstream store's users
// collection. Known fields are typed; everything else the downstream schema
// accumulates rides in Extra so updates never clobber it.
type MirroredUser struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Username      string             `bson:"username"`
	Email         string             `bson:"email"`
	EmailVerified bool               `bson:"emailVerified"`
	Avatar        *string            `bson:"avatar,omitempty"`
	Provider      string             `bson:"provider"`
	Role          string             `bson:"role"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
	Extra         bson.M             `bson:",inline"`
}

// MirroredSession is the per-login record in the downstream sessions
// collection. Only the SHA-256 hex of the refresh token is ever stored.
type MirroredSession struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	User             primitive.ObjectID `bson:"user"`
	Expiration       time.Time          `bson:"expiration"`
	RefreshTokenHash string             `bson:"refreshTokenHash,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

// Tokens is the downstream token pair produced by a successful bridge.
type Tokens struct {
	// Access is delivered via a response header for the SPA to replay.
	Access string
	// Refresh is delivered only as an HttpOnly cookie.
	Refresh string
}

// Downstream schema constants for records this gateway creates.
const (
	providerTag = "header"
	defaultRole = "USER"
)
