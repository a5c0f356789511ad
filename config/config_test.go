package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, client.DefaultTimeout, cfg.Flowise.Timeout)
	assert.Equal(t, client.DefaultMaxRetries, cfg.Flowise.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.HasRemote())
	assert.NoError(t, cfg.Validate())
}

func TestParseYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
flowise:
  endpoint: http://localhost:3000
  timeout: 5s
catalog:
  refresh: "@every 10m"
log:
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.Flowise.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Flowise.Timeout)
	assert.Equal(t, client.DefaultMaxRetries, cfg.Flowise.MaxRetries)
	assert.Equal(t, "@every 10m", cfg.Catalog.Refresh)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.HasRemote())
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"flowise": {"api_key": "k", "max_retries": 4}, "http": {"addr": ":9000", "cors": true}}`))
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Flowise.APIKey)
	assert.Equal(t, 4, cfg.Flowise.MaxRetries)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.True(t, cfg.HTTP.CORS)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("flowise: [unterminated"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigParse, flowise.ErrorCode(err))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		EnvEndpoint: " http://flowise:3000 ",
		EnvAPIKey:   "secret",
		EnvTimeout:  "12",
		EnvLogLevel: "DEBUG",
	})))
	assert.Equal(t, "http://flowise:3000", cfg.Flowise.Endpoint)
	assert.Equal(t, "secret", cfg.Flowise.APIKey)
	assert.Equal(t, 12*time.Second, cfg.Flowise.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{EnvTimeout: "1m30s"})))
	assert.Equal(t, 90*time.Second, cfg.Flowise.Timeout)

	err := cfg.ApplyEnv(envMap(map[string]string{EnvTimeout: "soon"}))
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigInvalid, flowise.ErrorCode(err))
}

func TestValidateReportsFields(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "xml"
	cfg.Flowise.MaxRetries = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigInvalid, flowise.ErrorCode(err))
	msg := flowise.ErrorMessage(err)
	assert.Contains(t, msg, "Config.Log.Format")
	assert.Contains(t, msg, "Config.Flowise.MaxRetries")
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvTimeout, "")
	t.Setenv(EnvLogLevel, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "flowise.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flowise:\n  endpoint: http://localhost:3000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.Flowise.Endpoint)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigRead, flowise.ErrorCode(err))
}

func TestClientOptionsBuildClient(t *testing.T) {
	cfg := Default()
	cfg.Flowise.Endpoint = "http://localhost:3000"
	cfg.Flowise.APIKey = "k"

	c, err := client.New(cfg.Flowise.Endpoint, cfg.ClientOptions(nil)...)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", c.Endpoint())
}
