package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://dev.api.supplierx.aeonx.digital", cfg.SupplierX.BaseURL)
	assert.Equal(t, "bedrock", cfg.NLU.Provider)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Logging.Enabled)
	assert.Equal(t, 30*time.Second, cfg.SupplierXTimeout())
	assert.Equal(t, 60*time.Second, cfg.NLUTimeout())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SupplierX.BaseURL, cfg.SupplierX.BaseURL)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
supplierx:
  base_url: https://staging.example.com
  timeout: 5s
nlu:
  provider: anthropic
  model: claude-3-5-sonnet-20240620
server:
  addr: ":9090"
logging:
  enabled: true
  level: debug
  dir: /tmp/logs
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", cfg.SupplierX.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.SupplierXTimeout())
	assert.Equal(t, "anthropic", cfg.NLU.Provider)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Logging.Enabled)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("supplierx: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SUPPLIERX_BASE_URL", "https://env.example.com")
	t.Setenv("SUPPLIERX_API_TOKEN", "env-token")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("PO_AGENT_ADDR", ":7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.SupplierX.BaseURL)
	assert.Equal(t, "env-token", cfg.SupplierX.APIToken)
	assert.Equal(t, "env-key", cfg.NLU.APIKey)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestInvalidTimeoutFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupplierX.Timeout = "soon"
	assert.Equal(t, 30*time.Second, cfg.SupplierXTimeout())
}
