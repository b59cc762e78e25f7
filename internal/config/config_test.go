package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, 5, cfg.Retry.MaxRetries)
	require.Contains(t, cfg.Presets, "fast")
	require.Contains(t, cfg.Presets, "thorough")
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "promptlab.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
rate_limit:
  requests_per_second: 10
retry:
  max_retries: 2
  initial_backoff_seconds: 0.5
`), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, 2, cfg.Retry.MaxRetries)
}

func TestEnvOverridesVendorCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("PROMPTLAB_RATE_LIMIT_RPS", "7.5")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.Vendors["anthropic"].APIKey)
	require.Equal(t, 7.5, cfg.RateLimit.RequestsPerSecond)
}
