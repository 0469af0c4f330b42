// Package proxy is the gateway's HTTP surface: route resolution, the three
// upstream reverse proxies, WebSocket tunneling, and the two endpoints the
// gateway answers itself (/login and /get-credentials).
package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/instihub/chatgate/internal/bridge"
	"github.com/instihub/chatgate/internal/config"
	"github.com/instihub/chatgate/internal/identity"
)

// SessionBridger establishes a downstream session for email and returns the
// minted token pair. seed optionally carries an externally issued refresh
// token to reconcile into the mirrored user.
type SessionBridger interface {
	Bridge(ctx context.Context, email, seed string) (*bridge.Tokens, error)
}

// UserFinder reads a mirrored user back from the chat application's store.
type UserFinder interface {
	FindUser(ctx context.Context, email string) (*bridge.MirroredUser, error)
}

// BearerVerifier asks the tenant API whose bearer token this is.
type BearerVerifier interface {
	VerifyBearer(ctx context.Context, authHeader string) (string, error)
}

// GatewayCodec mints and verifies the gateway's own identity tokens.
type GatewayCodec interface {
	Mint(claims jwt.MapClaims, ttl time.Duration) (string, error)
	Verify(raw string) (jwt.MapClaims, error)
}

// Server ties the route table, the forwarder and the gateway's own handlers
// into one http.Handler.
type Server struct {
	cfg       *config.Config
	extractor *identity.Extractor
	gateway   GatewayCodec
	fwd       *Forwarder
	bridger   SessionBridger
	users     UserFinder
	verifier  BearerVerifier

	mux *http.ServeMux
}

// NewServer wires the handler tree.
func NewServer(cfg *config.Config, extractor *identity.Extractor, gateway GatewayCodec,
	fwd *Forwarder, bridger SessionBridger, users UserFinder, verifier BearerVerifier) *Server {
	s := &Server{
		cfg:       cfg,
		extractor: extractor,
		gateway:   gateway,
		fwd:       fwd,
		bridger:   bridger,
		users:     users,
		verifier:  verifier,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("/login", s.routeLogin)
	s.mux.HandleFunc("/get-credentials", s.routeCredentials)
	s.mux.HandleFunc("/", s.routeDefault)
	return s
}

// ServeHTTP applies the CORS layer and dispatches.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.withCORS(s.mux).ServeHTTP(w, r)
}

// routeLogin serves the login endpoint by method. GET and HEAD fall through
// to the asset server so the SPA can render its own login page on the same
// path.
func (s *Server) routeLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleLogin(w, r)
	case http.MethodGet, http.MethodHead:
		s.fwd.Proxy(TargetAssetServer).ServeHTTP(w, r)
	default:
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) routeCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleCredentials(w, r)
}

// HeaderRequestID correlates a request across the gateway and its upstreams.
const HeaderRequestID = "X-Request-Id"

// getRequestID gets or generates a request ID.
func getRequestID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	return uuid.New().String()
}

// routeDefault is the catch-all: resolve identity, resolve the upstream,
// then either tunnel the WebSocket or forward over HTTP.
func (s *Server) routeDefault(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	r.Header.Set(HeaderRequestID, requestID)
	w.Header().Set(HeaderRequestID, requestID)

	id := s.extractor.Decorate(r)

	route := Resolve(r.URL.Path)
	r.URL.Path = route.StripPath(r.URL.Path)

	if isUpgrade(r) {
		tunnel(w, r, s.fwd.UpstreamURL(route.Target), id.Email)
		return
	}

	log.Debug().Str("request_id", requestID).Str("method", r.Method).
		Str("path", r.URL.Path).Str("target", route.Target.String()).
		Str("user", id.Email).Bool("passthrough", id.Passthrough).Msg("forward")
	s.fwd.Proxy(route.Target).ServeHTTP(w, r)
}

// withCORS reflects the caller's origin with credentials enabled. The
// browser-facing surface spans three upstreams behind one port, so the
// gateway owns the CORS contract and upstream CORS headers are scrubbed in
// the forwarder.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
			h.Set("Access-Control-Expose-Headers", headerDownstreamToken)
			h.Set("Access-Control-Max-Age", "3600")
			h.Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
