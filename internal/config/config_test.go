package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexilist/flexisync/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "flexisync.db", cfg.DB.Path)
	require.Equal(t, "info", cfg.Log.Level)
	require.Empty(t, cfg.Auth.Token)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server:\n  port: 9000\ndb:\n  path: /tmp/file.db\nauth:\n  token: from-file\n",
	), 0o644))

	t.Setenv("FLEXISYNC_CONFIG_PATH", path)
	t.Setenv("FLEXISYNC_DB_PATH", "/tmp/env.db")
	t.Setenv("FLEXISYNC_AUTH_TOKEN", "from-env")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "/tmp/env.db", cfg.DB.Path)
	require.Equal(t, "from-env", cfg.Auth.Token)
}

func TestLoad_ExplicitPathWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.yaml")
	flagPath := filepath.Join(dir, "flag.yaml")
	require.NoError(t, os.WriteFile(envPath, []byte("server:\n  port: 9000\n"), 0o644))
	require.NoError(t, os.WriteFile(flagPath, []byte("server:\n  port: 9100\n"), 0o644))
	t.Setenv("FLEXISYNC_CONFIG_PATH", envPath)

	cfg, err := config.Load(flagPath)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("FLEXISYNC_SERVER_PORT", "not-a-port")
	_, err := config.Load("")
	require.Error(t, err)
}
