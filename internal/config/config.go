// Package config holds the gateway's immutable runtime configuration.
//
// DESIGN: Everything is read once at startup (env, optionally overridden by a
// YAML file) into a plain struct that is passed by reference into the
// components that need it. Nothing here mutates after Load returns.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's startup configuration.
type Config struct {
	// Listener
	ListenPort string
	UseHTTPS   bool
	CertFile   string
	KeyFile    string

	// Upstream base URLs
	ChatBackendURL string
	AssetServerURL string
	TenantAPIURL   string

	// Document store
	MongoURI      string
	MongoDatabase string

	// Signing secrets. Three independent keys, never interchanged.
	GatewaySecret []byte
	AccessSecret  []byte
	RefreshSecret []byte

	// Session material
	CookieName    string
	TokenProvider string

	// Timeouts
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	ShutdownGrace  time.Duration
	StoreOpTimeout time.Duration
	ProfileTimeout time.Duration
}

// fileOverrides is the optional YAML override file (CHATGATE_CONFIG).
// Only deployment-shape settings are overridable; secrets stay in env.
type fileOverrides struct {
	ListenPort  string `yaml:"listen_port"`
	ChatBackend string `yaml:"chat_backend"`
	AssetServer string `yaml:"asset_server"`
	TenantAPI   string `yaml:"tenant_api"`
	MongoURI    string `yaml:"mongo_uri"`
	Timeouts    struct {
		Read     string `yaml:"read"`
		Write    string `yaml:"write"`
		Idle     string `yaml:"idle"`
		Shutdown string `yaml:"shutdown"`
	} `yaml:"timeouts"`
}

// Load builds the configuration from the environment, then applies the YAML
// override file if CHATGATE_CONFIG names one.
func Load() (*Config, error) {
	cfg := &Config{
		ListenPort:     envOr("PROXY_PORT", DefaultListenPort),
		UseHTTPS:       os.Getenv("USE_HTTPS") == "true",
		CertFile:       envOr("TLS_CERT_FILE", "cert.pem"),
		KeyFile:        envOr("TLS_KEY_FILE", "key.pem"),
		ChatBackendURL: envOr("CHAT_BACKEND", DefaultChatBackendURL),
		AssetServerURL: envOr("ASSET_SERVER", DefaultAssetServerURL),
		TenantAPIURL:   envOr("TENANT_API", DefaultTenantAPIURL),
		MongoURI:       envOr("MONGO_URI", DefaultMongoURI),
		GatewaySecret:  []byte(os.Getenv("JWT_SECRET")),
		AccessSecret:   []byte(os.Getenv("DOWNSTREAM_JWT_SECRET")),
		RefreshSecret:  []byte(os.Getenv("DOWNSTREAM_JWT_REFRESH_SECRET")),
		CookieName:     envOr("GATEWAY_COOKIE_NAME", DefaultCookieName),
		TokenProvider:  envOr("TOKEN_PROVIDER", DefaultTokenProvider),
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		ShutdownGrace:  DefaultShutdownGrace,
		StoreOpTimeout: DefaultStoreOpTimeout,
		ProfileTimeout: DefaultProfileTimeout,
	}

	if path := os.Getenv("CHATGATE_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if len(cfg.GatewaySecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.AccessSecret) == 0 {
		return nil, fmt.Errorf("DOWNSTREAM_JWT_SECRET is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("DOWNSTREAM_JWT_REFRESH_SECRET is required")
	}

	for _, u := range []string{cfg.ChatBackendURL, cfg.AssetServerURL, cfg.TenantAPIURL} {
		if _, err := url.Parse(u); err != nil {
			return nil, fmt.Errorf("invalid upstream URL %q: %w", u, err)
		}
	}

	cfg.MongoDatabase = databaseFromURI(cfg.MongoURI)
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var ov fileOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return err
	}
	setIf(&c.ListenPort, ov.ListenPort)
	setIf(&c.ChatBackendURL, ov.ChatBackend)
	setIf(&c.AssetServerURL, ov.AssetServer)
	setIf(&c.TenantAPIURL, ov.TenantAPI)
	setIf(&c.MongoURI, ov.MongoURI)
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{ov.Timeouts.Read, &c.ReadTimeout},
		{ov.Timeouts.Write, &c.WriteTimeout},
		{ov.Timeouts.Idle, &c.IdleTimeout},
		{ov.Timeouts.Shutdown, &c.ShutdownGrace},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

// databaseFromURI extracts the database name from a MongoDB URI path,
// falling back to the default when the URI carries none.
func databaseFromURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Path == "" {
		return DefaultMongoDatabase
	}
	name := strings.TrimPrefix(parsed.Path, "/")
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	if name == "" || strings.Contains(name, ":") {
		return DefaultMongoDatabase
	}
	return name
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
