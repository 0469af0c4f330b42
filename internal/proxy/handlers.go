package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/instihub/chatgate/internal/bridge"
	"github.com/instihub/chatgate/internal/config"
	"github.com/instihub/chatgate/internal/token"
)

// Response header carrying the downstream access token for the SPA.
const headerDownstreamToken = "X-Downstream-Token"

// Downstream cookie names. These are the chat application's own wire
// contract, not this gateway's.
const (
	cookieRefreshToken  = "refreshToken"
	cookieTokenProvider = "token_provider"
)

type loginRequest struct {
	Email string `json:"email"`
	// RefreshToken optionally seeds the mirrored user's refresh-token list.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": msg, "type": "gateway_error"},
	})
}

// handleLogin issues the gateway session and bridges a downstream one.
//
// The gateway token is the source of truth for every other route, so the
// response is 200 whenever it could be minted. It is minted before any
// cookie is written: a mint failure returns 500 with no session state
// attached. Downstream bridging is best-effort and its failure only
// withholds the downstream cookies and header.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxLoginBodySize)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		writeError(w, "email required", http.StatusBadRequest)
		return
	}

	gatewayToken, err := s.gateway.Mint(jwt.MapClaims{"email": req.Email}, config.GatewayTokenTTL)
	if err != nil {
		log.Error().Err(err).Msg("minting gateway token failed")
		writeError(w, "token error", http.StatusInternalServerError)
		return
	}

	if tokens, err := s.bridger.Bridge(r.Context(), req.Email, req.RefreshToken); err != nil {
		log.Warn().Err(err).Str("email", req.Email).Msg("downstream bridging degraded")
	} else {
		s.setSessionCookie(w, cookieRefreshToken, tokens.Refresh, config.RefreshTokenTTL)
		s.setSessionCookie(w, cookieTokenProvider, s.cfg.TokenProvider, config.RefreshTokenTTL)
		w.Header().Set(headerDownstreamToken, tokens.Access)
	}

	s.setSessionCookie(w, s.cfg.CookieName, gatewayToken, config.GatewayTokenTTL)

	log.Info().Str("email", req.Email).Msg("login")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		Secure:   s.cfg.UseHTTPS,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleCredentials returns the mirrored user's public fields for the
// requested email. The caller must prove it owns that email, either via the
// gateway cookie or via a bearer token the tenant API vouches for.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, "email parameter required", http.StatusBadRequest)
		return
	}

	verified := s.verifiedEmail(r)
	if verified == "" || verified != email {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StoreOpTimeout)
	defer cancel()

	user, err := s.users.FindUser(ctx, email)
	if err != nil {
		if errors.Is(err, bridge.ErrUserNotFound) {
			writeError(w, "user not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("email", email).Msg("mirrored user lookup failed")
		writeError(w, "store error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"email":    user.Email,
		"username": user.Username,
		"name":     user.Name,
	})
}

// verifiedEmail resolves a proven email: gateway cookie first, then a
// bearer token validated by the tenant API.
func (s *Server) verifiedEmail(r *http.Request) string {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		if claims, err := s.gateway.Verify(c.Value); err == nil {
			if email := token.StringClaim(claims, "email"); email != "" {
				return email
			}
		}
	}

	auth := r.Header.Get("Authorization")
	if token.StripBearer(auth) == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(r.Context(), config.DefaultBearerVerifyTimeout)
	defer cancel()
	email, err := s.verifier.VerifyBearer(ctx, auth)
	if err != nil {
		log.Debug().Err(err).Msg("tenant API bearer verification failed")
		return ""
	}
	return email
}
