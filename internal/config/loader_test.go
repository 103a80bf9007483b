package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "http://localhost:8080", cfg.Backend.URL)
	require.Equal(t, "operator", cfg.Backend.UserID)
	require.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	require.Equal(t, 10, cfg.Email.HistoryLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.URL = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Backend.URL = "localhost:8080"
	require.Error(t, cfg.Validate(), "scheme required")

	cfg = DefaultConfig()
	cfg.Backend.Timeout = 10 * time.Millisecond
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Email.HistoryLimit = 0
	require.Error(t, cfg.Validate())
}

func TestDatabasePathDerivedFromDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/var/lib/opsdesk"
	require.Equal(t, filepath.Join("/var/lib/opsdesk", "opsdesk.db"), cfg.DatabasePath())

	cfg.Database.Path = "/tmp/explicit.db"
	require.Equal(t, "/tmp/explicit.db", cfg.DatabasePath())
}

func TestLoaderReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("backend:\n  url: https://support.example.com\n  user_id: alice\nemail:\n  history_limit: 25\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	loader := NewLoader()
	loader.SetConfigFile(path)

	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "https://support.example.com", cfg.Backend.URL)
	require.Equal(t, "alice", cfg.Backend.UserID)
	require.Equal(t, 25, cfg.Email.HistoryLimit)
	require.Equal(t, "info", cfg.Logging.Level, "unset values keep defaults")
	require.Equal(t, path, loader.ConfigFileUsed())
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  url: http://from-file\n"), 0o644))

	t.Setenv("OPSDESK_BACKEND_URL", "http://from-env")

	loader := NewLoader()
	loader.SetConfigFile(path)

	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "http://from-env", cfg.Backend.URL)
}

func TestLoaderExplicitMissingFileFails(t *testing.T) {
	loader := NewLoader()
	loader.SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoaderValidatesResult(t *testing.T) {
	t.Setenv("OPSDESK_BACKEND_URL", "not-a-url")

	_, err := NewLoader().Load()
	require.Error(t, err)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.Equal(t, filepath.Join(home, "x"), expandTilde("~/x"))
	require.Equal(t, home, expandTilde("~"))
	require.Equal(t, "/abs/path", expandTilde("/abs/path"))
	require.Equal(t, "", expandTilde(""))
}
