package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
remote:
  kind: git
  git_url: https://example.com/plant.git
session:
  max_active: 3
  duration_minutes: 30
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "git", cfg.Remote.Kind)
	assert.Equal(t, "main", cfg.Remote.Branch)
	assert.Equal(t, 3, cfg.Session.MaxActive)
	assert.Equal(t, 30*time.Minute, cfg.Session.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Workbook.RefreshInterval)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Session.MaxActive)
	assert.Equal(t, time.Hour, cfg.Session.Duration)
	assert.Equal(t, "admin", cfg.Session.AdminUser)
	assert.Equal(t, "machines.xlsx", cfg.Remote.Path)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.NotEmpty(t, cfg.Server.TokenSecret)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CMMS_REMOTE_TOKEN", "ghp_secret")
	t.Setenv("CMMS_TOKEN_SECRET", "signing")

	cfg := Config{Remote: RemoteConfig{Token: "from-file", Repository: "acme/plant"}}
	ApplyEnv(&cfg, viper.New())

	assert.Equal(t, "ghp_secret", cfg.Remote.Token)
	assert.Equal(t, "signing", cfg.Server.TokenSecret)
	assert.Equal(t, "acme/plant", cfg.Remote.Repository)
}
