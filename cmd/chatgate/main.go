// chatgate is an authentication-bridging reverse proxy for a chat
// application. It terminates the public port, resolves the caller's identity
// from one of three credential shapes, mirrors users and sessions into the
// chat application's own store, and forwards HTTP and WebSocket traffic to
// the chat backend, the SPA asset server, or the tenant API.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/instihub/chatgate/internal/bridge"
	"github.com/instihub/chatgate/internal/config"
	"github.com/instihub/chatgate/internal/identity"
	"github.com/instihub/chatgate/internal/proxy"
	"github.com/instihub/chatgate/internal/token"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	handler, err := buildHandler(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring error")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ListenPort,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if cfg.UseHTTPS {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ListenPort).Bool("https", cfg.UseHTTPS).
			Str("chat_backend", cfg.ChatBackendURL).
			Str("asset_server", cfg.AssetServerURL).
			Str("tenant_api", cfg.TenantAPIURL).
			Msg("gateway listening")
		if cfg.UseHTTPS {
			errCh <- srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete, closing")
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}
}

// buildHandler wires the component graph from configuration.
func buildHandler(cfg *config.Config) (http.Handler, error) {
	gateway := token.New(cfg.GatewaySecret)
	access := token.New(cfg.AccessSecret)
	refresh := token.New(cfg.RefreshSecret)

	extractor := identity.NewExtractor(gateway, access, cfg.CookieName)

	store := bridge.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase, cfg.StoreOpTimeout)
	profiles := bridge.NewProfileClient(cfg.TenantAPIURL, cfg.ProfileTimeout)
	bridger := bridge.NewBridger(store, profiles, refresh, access)

	assetURL, err := url.Parse(cfg.AssetServerURL)
	if err != nil {
		return nil, err
	}
	rewriter := proxy.NewHTMLRewriter(assetURL.Host, cfg.ListenPort)

	fwd, err := proxy.NewForwarder(cfg, rewriter)
	if err != nil {
		return nil, err
	}

	return proxy.NewServer(cfg, extractor, gateway, fwd, bridger, store, profiles), nil
}

// setupLogging configures the global zerolog logger. LOG_LEVEL accepts the
// zerolog level names; LOG_FORMAT=console switches to human-readable output.
func setupLogging() {
	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("LOG_FORMAT") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
