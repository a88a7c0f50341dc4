package config_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/finbotd/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.DefaultK)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FINBOT_SERVER_PORT", "9999")
	t.Setenv("FINBOT_PROVIDER_EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("FINBOT_PROVIDER_API_KEY", "sk-test")
	t.Setenv("FINBOT_SESSION_TTL", "30m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "text-embedding-3-large", cfg.Provider.EmbeddingModel)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey.Value())
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 8123\nchunking:\n  size: 400\n  overlap: 80\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, 400, cfg.Chunking.Size)
	assert.Equal(t, 80, cfg.Chunking.Overlap)
	// Untouched sections keep defaults.
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadWithFileEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0o600))
	t.Setenv("FINBOT_SERVER_PORT", "8321")

	cfg, err := config.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8321, cfg.Server.Port)
}

func TestLoadWithFileMissingIsOK(t *testing.T) {
	cfg, err := config.LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Server.Port, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *config.Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "overlap equals size",
			mutate:  func(c *config.Config) { c.Chunking.Overlap = c.Chunking.Size },
			wantErr: "chunk overlap",
		},
		{
			name:    "overlap exceeds size",
			mutate:  func(c *config.Config) { c.Chunking.Size = 100; c.Chunking.Overlap = 150 },
			wantErr: "chunk overlap",
		},
		{
			name:    "zero default k",
			mutate:  func(c *config.Config) { c.Retrieval.DefaultK = 0 },
			wantErr: "default k",
		},
		{
			name:    "max k below default",
			mutate:  func(c *config.Config) { c.Retrieval.MaxK = 1 },
			wantErr: "max k",
		},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "logfmt" },
			wantErr: "invalid log format",
		},
		{
			name:    "zero session ttl",
			mutate:  func(c *config.Config) { c.Session.TTL = 0 },
			wantErr: "session TTL",
		},
		{
			name:    "zero provider timeout",
			mutate:  func(c *config.Config) { c.Provider.Timeout = 0 },
			wantErr: "provider timeout",
		},
		{
			name: "bad telemetry protocol",
			mutate: func(c *config.Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "udp"
			},
			wantErr: "telemetry protocol",
		},
		{
			name: "telemetry sampling rate out of range",
			mutate: func(c *config.Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SamplingRate = 1.5
			},
			wantErr: "sampling rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := config.Secret("sk-super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(data))

	var empty config.Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}
