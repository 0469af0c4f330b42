package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/instihub/chatgate/internal/config"
	"github.com/instihub/chatgate/internal/token"
)

// Bridger turns a verified gateway identity into a downstream-native session.
type Bridger struct {
	store    Store
	profiles *ProfileClient
	refresh  *token.Codec
	access   *token.Codec
}

// NewBridger wires the bridge. refresh and access are codecs for the
// downstream refresh and access secrets respectively.
func NewBridger(store Store, profiles *ProfileClient, refresh, access *token.Codec) *Bridger {
	return &Bridger{store: store, profiles: profiles, refresh: refresh, access: access}
}

// Bridge runs the full identity translation for email:
//
//  1. fetch the canonical profile (stub fallback on tenant-API failure)
//  2. upsert the mirrored user
//  3. create the session shell to obtain its generated id
//  4. mint the refresh token embedding {user id, session id}
//  5. patch the session with SHA-256(refresh token)
//  6. mint the access token
//
// The session shell MUST exist before the refresh token is minted because
// the token embeds the session's generated id; the downstream application's
// session validation breaks if this order changes.
func (b *Bridger) Bridge(ctx context.Context, email, seed string) (*Tokens, error) {
	profile := b.profiles.FetchByEmail(ctx, email)
	if profile.Stub {
		log.Warn().Str("email", email).Msg("bridging with stub profile")
	}

	userID, err := b.store.UpsertUser(ctx, profile, seed)
	if err != nil {
		return nil, fmt.Errorf("mirroring user: %w", err)
	}

	expiration := token.NowFunc().Add(config.RefreshTokenTTL)
	sessionID, err := b.store.CreateSession(ctx, userID, expiration)
	if err != nil {
		return nil, fmt.Errorf("creating mirrored session: %w", err)
	}

	refreshToken, err := b.refresh.Mint(jwt.MapClaims{
		"id":        userID,
		"sessionId": sessionID,
	}, config.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("minting refresh token: %w", err)
	}

	sum := sha256.Sum256([]byte(refreshToken))
	if err := b.store.SetSessionTokenHash(ctx, sessionID, hex.EncodeToString(sum[:])); err != nil {
		return nil, fmt.Errorf("storing refresh token hash: %w", err)
	}

	accessToken, err := b.access.Mint(jwt.MapClaims{"id": userID}, config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("minting access token: %w", err)
	}

	log.Info().Str("email", email).Str("user_id", userID).Str("session_id", sessionID).
		Msg("downstream session bridged")
	return &Tokens{Access: accessToken, Refresh: refreshToken}, nil
}
