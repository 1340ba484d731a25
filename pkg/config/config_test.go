package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAPIURL, EnvToken, EnvNATSURL, EnvConfigPath} {
		t.Setenv(key, "")
	}
}

func TestParse_AppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte("api:\n  base_url: https://api.example.com\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Polling.OperationInterval)
	assert.Equal(t, 60*time.Second, cfg.Polling.EnvironmentInterval)
	assert.Equal(t, 4, cfg.Provisioning.MaxParallel)
	assert.Equal(t, "aptible.in", cfg.Dependencies.ProviderDomain)
	assert.Equal(t, "opsdeck", cfg.Telemetry.Metrics.Namespace)

	_, enabled := cfg.Store()
	assert.False(t, enabled, "journal is off without a path")
	assert.True(t, cfg.Policy.Enabled)
	assert.Empty(t, cfg.Policy.Paths)
}

func TestParse_PolicySection(t *testing.T) {
	clearEnv(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	doc := `api:
  base_url: https://api.example.com
policy:
  enabled: false
  paths: [~/policies, /etc/opsdeck/policies]
  disabled: [scale-limits]
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.False(t, cfg.Policy.Enabled)
	assert.Equal(t, []string{filepath.Join(home, "policies"), "/etc/opsdeck/policies"}, cfg.Policy.Paths)
	assert.Equal(t, []string{"scale-limits"}, cfg.Policy.Disabled)

	_, err = Parse([]byte("api:\n  base_url: https://api.example.com\npolicy:\n  paths: [\"\"]\n"))
	assert.ErrorContains(t, err, "policy.paths[0] is required")
}

func TestParse_OverridesFromFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`
api:
  base_url: https://api.example.com
  token: secret
  timeout: 5s
polling:
  operation_interval: 2s
  wait_interval: 1s
provisioning:
  max_parallel: 8
dependencies:
  provider_domain: db.internal
journal:
  path: /tmp/opsdeck.db
actions:
  nats_url: nats://127.0.0.1:4222
telemetry:
  logging:
    level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.HAL().Token)
	assert.Equal(t, 5*time.Second, cfg.HAL().Timeout)

	wf := cfg.Workflows()
	assert.Equal(t, 8, wf.MaxParallel)
	assert.Equal(t, 2*time.Second, wf.OperationPollInterval)
	assert.Equal(t, time.Second, wf.WaitInterval)

	store, enabled := cfg.Store()
	assert.True(t, enabled)
	assert.Equal(t, "/tmp/opsdeck.db", store.Path)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Actions.NATSURL)
	assert.Equal(t, "debug", cfg.Telemetry.Logging.Level)
	assert.Equal(t, "console", cfg.Telemetry.Logging.Format, "unset nested fields keep defaults")
	assert.Len(t, cfg.DependencyOptions(), 1)
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIURL, "https://override.example.com")
	t.Setenv(EnvToken, "from-env")

	cfg, err := Parse([]byte("api:\n  base_url: https://api.example.com\n  token: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.API.BaseURL)
	assert.Equal(t, "from-env", cfg.API.Token)
}

func TestParse_EnvironmentSuppliesMissingURL(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIURL, "https://api.example.com")

	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing base url",
			yaml:    "polling:\n  operation_interval: 5s\n",
			wantErr: "api.base_url is required",
		},
		{
			name:    "base url without scheme",
			yaml:    "api:\n  base_url: api.example.com\n",
			wantErr: "api.base_url must be a URL",
		},
		{
			name:    "non-http base url",
			yaml:    "api:\n  base_url: ftp://api.example.com\n",
			wantErr: "base URL must be http or https",
		},
		{
			name:    "parallelism out of range",
			yaml:    "api:\n  base_url: https://api.example.com\nprovisioning:\n  max_parallel: 0\n",
			wantErr: "provisioning.max_parallel must be at least 1",
		},
		{
			name:    "zero interval",
			yaml:    "api:\n  base_url: https://api.example.com\npolling:\n  operation_interval: 0s\n",
			wantErr: "polling.operation_interval must be greater than 0",
		},
		{
			name:    "bad nats url",
			yaml:    "api:\n  base_url: https://api.example.com\nactions:\n  nats_url: not a url\n",
			wantErr: "actions.nats_url must be a URL",
		},
		{
			name:    "bad log level",
			yaml:    "api:\n  base_url: https://api.example.com\ntelemetry:\n  logging:\n    level: loud\n",
			wantErr: "invalid log level",
		},
		{
			name:    "malformed yaml",
			yaml:    "api: [",
			wantErr: "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteThenLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)

	cfg := Default()
	cfg.API.BaseURL = "https://api.example.com"
	cfg.API.Token = "secret"
	cfg.Provisioning.MaxParallel = 2
	require.NoError(t, Write(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.API.Token)
	assert.Equal(t, 2, loaded.Provisioning.MaxParallel)
	assert.Equal(t, cfg.Polling, loaded.Polling)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultFileName, DefaultPath())

	t.Setenv(EnvConfigPath, "/etc/opsdeck.yaml")
	assert.Equal(t, "/etc/opsdeck.yaml", DefaultPath())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".opsdeck", "journal.db"), expandHome("~/.opsdeck/journal.db"))
	assert.Equal(t, "/var/lib/journal.db", expandHome("/var/lib/journal.db"))
	assert.Equal(t, "", expandHome(""))
}
