package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "gw-secret")
	t.Setenv("DOWNSTREAM_JWT_SECRET", "ds-secret")
	t.Setenv("DOWNSTREAM_JWT_REFRESH_SECRET", "ds-refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredSecrets(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenPort, cfg.ListenPort)
	assert.Equal(t, DefaultChatBackendURL, cfg.ChatBackendURL)
	assert.Equal(t, DefaultAssetServerURL, cfg.AssetServerURL)
	assert.Equal(t, DefaultTenantAPIURL, cfg.TenantAPIURL)
	assert.Equal(t, DefaultCookieName, cfg.CookieName)
	assert.Equal(t, DefaultMongoDatabase, cfg.MongoDatabase)
	assert.Equal(t, []byte("gw-secret"), cfg.GatewaySecret)
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DOWNSTREAM_JWT_SECRET", "x")
	t.Setenv("DOWNSTREAM_JWT_REFRESH_SECRET", "y")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadFileOverrides(t *testing.T) {
	setRequiredSecrets(t)

	path := filepath.Join(t.TempDir(), "chatgate.yaml")
	content := "listen_port: \"8443\"\nchat_backend: http://chat:3080\ntimeouts:\n  shutdown: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CHATGATE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8443", cfg.ListenPort)
	assert.Equal(t, "http://chat:3080", cfg.ChatBackendURL)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace)
	// Untouched settings keep env/defaults.
	assert.Equal(t, DefaultAssetServerURL, cfg.AssetServerURL)
}

func TestDatabaseFromURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"with database", "mongodb://localhost:27017/chat", "chat"},
		{"with options", "mongodb://localhost:27017/history?retryWrites=true", "history"},
		{"no database", "mongodb://localhost:27017", DefaultMongoDatabase},
		{"trailing slash", "mongodb://localhost:27017/", DefaultMongoDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := databaseFromURI(tt.uri); got != tt.want {
				t.Errorf("databaseFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}
