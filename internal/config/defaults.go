// Package config - defaults.go centralizes magic numbers and default values.
package config

import "time"

// =============================================================================
// LISTENER
// =============================================================================

// DefaultListenPort is the externally exposed gateway port.
const DefaultListenPort = "9443"

// DefaultReadTimeout bounds slow request bodies.
const DefaultReadTimeout = 30 * time.Second

// DefaultWriteTimeout bounds slow clients on non-tunneled responses.
const DefaultWriteTimeout = 30 * time.Second

// DefaultIdleTimeout for keep-alive connections.
const DefaultIdleTimeout = 120 * time.Second

// DefaultShutdownGrace is how long in-flight requests get on SIGTERM.
const DefaultShutdownGrace = 10 * time.Second

// =============================================================================
// UPSTREAMS
// =============================================================================

// DefaultChatBackendURL is the chat application's HTTP/WebSocket backend.
const DefaultChatBackendURL = "http://localhost:3080"

// DefaultAssetServerURL is the chat application's SPA dev/asset server.
const DefaultAssetServerURL = "http://localhost:3090"

// DefaultTenantAPIURL is the tenant-management REST API.
const DefaultTenantAPIURL = "http://localhost:8080"

// DefaultDialTimeout is the TCP dial timeout toward any upstream.
const DefaultDialTimeout = 30 * time.Second

// DefaultMaxIdleConns for the shared upstream transport.
const DefaultMaxIdleConns = 100

// DefaultIdleConnTimeout for the shared upstream transport.
const DefaultIdleConnTimeout = 90 * time.Second

// =============================================================================
// DOCUMENT STORE AND TENANT API
// =============================================================================

// DefaultMongoURI points at the chat application's own store.
const DefaultMongoURI = "mongodb://localhost:27017/chat"

// DefaultMongoDatabase is used when the URI carries no database path.
const DefaultMongoDatabase = "chat"

// DefaultStoreOpTimeout bounds each connect-operate-disconnect cycle.
const DefaultStoreOpTimeout = 10 * time.Second

// DefaultProfileTimeout bounds tenant-API profile fetches. No retry; a
// failure falls back to a stub profile.
const DefaultProfileTimeout = 10 * time.Second

// DefaultBearerVerifyTimeout bounds tenant-API bearer validation.
const DefaultBearerVerifyTimeout = 5 * time.Second

// =============================================================================
// SESSIONS AND TOKENS
// =============================================================================

// DefaultCookieName carries the gateway's own identity token.
const DefaultCookieName = "gateway_jwt"

// GatewayTokenTTL is the lifetime of the gateway identity cookie.
const GatewayTokenTTL = 6 * time.Hour

// AccessTokenTTL is the lifetime of the downstream access token.
const AccessTokenTTL = 24 * time.Hour

// RefreshTokenTTL is the lifetime of the downstream refresh token and of the
// mirrored session it is bound to.
const RefreshTokenTTL = 7 * 24 * time.Hour

// DefaultTokenProvider is the value of the downstream provider cookie.
const DefaultTokenProvider = "librechat"

// =============================================================================
// REQUEST LIMITS
// =============================================================================

// MaxLoginBodySize bounds the /login JSON body.
const MaxLoginBodySize = 64 * 1024

// MaxTunnelMessageSize bounds a single relayed WebSocket message.
const MaxTunnelMessageSize = 32 * 1024 * 1024
