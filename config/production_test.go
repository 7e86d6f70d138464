package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", strings.Repeat("k", 32))
	t.Setenv("PAYOS_CLIENT_ID", "client")
	t.Setenv("PAYOS_API_KEY", "api-key")
	t.Setenv("PAYOS_CHECKSUM_KEY", "checksum")
}

func TestLoadProductionConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "https://api-merchant.payos.vn", cfg.Gateway.BaseURL)
		assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
		assert.Equal(t, int64(1), cfg.IDGen.NodeID)
		assert.Equal(t, 8, cfg.Settlement.RelayMaxAttempts)
		assert.Equal(t, 5*time.Minute, cfg.Settlement.RelayLease)
		assert.False(t, cfg.Broker.Enabled)
	})

	t.Run("OverridesFromEnvironment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("SETTLEMENT_RELAY_INTERVAL", "5m")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 5*time.Minute, cfg.Settlement.RelayInterval)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	})

	t.Run("EnvFileDoesNotOverrideEnvironment", func(t *testing.T) {
		setRequiredEnv(t)
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("SERVER_PORT=7000\nPAYOS_CLIENT_ID=from-file\n"), 0o600))
		t.Setenv("ENV_FILE", envFile)
		t.Setenv("SERVER_PORT", "7100")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)

		assert.Equal(t, 7100, cfg.Server.Port)
		assert.Equal(t, "client", cfg.Gateway.ClientID)
	})

	t.Run("MissingGatewaySecrets", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PAYOS_CHECKSUM_KEY", "")

		_, err := LoadProductionConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PAYOS_CHECKSUM_KEY is required")
	})

	t.Run("InvalidNodeIDAndTimezone", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("IDGEN_NODE_ID", "99")
		t.Setenv("SETTLEMENT_TIMEZONE", "Mars/Olympus")

		_, err := LoadProductionConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "IDGEN_NODE_ID must be between 0 and 15")
		assert.Contains(t, err.Error(), "SETTLEMENT_TIMEZONE must be a valid IANA timezone")
	})
}
