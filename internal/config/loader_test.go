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

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file doesn't exist", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("BEACON_DATA_DIR", dir)

		cfg, err := NewLoader(filepath.Join(dir, "missing.json")).Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.HTTP.Port)
		assert.Equal(t, dir, cfg.DataDir)
		assert.Equal(t, filepath.Join(dir, "users.json"), cfg.UsersFile)
		assert.Equal(t, filepath.Join(dir, "locations.json"), cfg.Snapshot.File)
	})

	t.Run("load config from file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "beacon.json")

		content := `{
			"http": {"port": 4100},
			"auth": {"jwt_secret": "file-secret-0123456789", "token_ttl": "2h"},
			"gateway": {"auth_timeout": "5s"},
			"location": {"read_policy": "lazy"},
			"data_dir": "` + filepath.ToSlash(dir) + `"
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, 4100, cfg.HTTP.Port)
		assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
		assert.Equal(t, "file-secret-0123456789", cfg.Auth.JWTSecret)
		assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
		assert.Equal(t, 5*time.Second, cfg.Gateway.AuthTimeout)
		assert.Equal(t, 64, cfg.Gateway.QueueSize)
		assert.Equal(t, "lazy", cfg.Location.ReadPolicy)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "beacon.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"http": {"port": 4100}}`), 0o600))

		t.Setenv("BEACON_HTTP_PORT", "4200")
		t.Setenv("BEACON_AUTH_JWT_SECRET", "env-secret-0123456789")
		t.Setenv("BEACON_DATA_DIR", dir)

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, 4200, cfg.HTTP.Port)
		assert.Equal(t, "env-secret-0123456789", cfg.Auth.JWTSecret)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "beacon.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"http": `), 0o600))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save and reload", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "nested", "beacon.json")

		cfg := validConfig()
		cfg.DataDir = dir
		cfg.HTTP.Port = 4300
		cfg.Auth.TokenTTL = 90 * time.Minute

		loader := NewLoader(configPath)
		require.NoError(t, loader.Save(cfg))

		info, err := os.Stat(configPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, 4300, loaded.HTTP.Port)
		assert.Equal(t, 90*time.Minute, loaded.Auth.TokenTTL)
		assert.Equal(t, cfg.Auth.JWTSecret, loaded.Auth.JWTSecret)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		assert.Equal(t, "/custom/path.json", NewLoader("/custom/path.json").GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		path := NewLoader("").GetConfigPath()
		assert.True(t, strings.HasSuffix(path, filepath.Join(".beacon", "beacon.json")))
	})
}
