package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.History.MaxSnapshots)
	assert.Equal(t, 5*time.Second, cfg.History.QuietPeriod)
	assert.Equal(t, 10, cfg.History.MinDistance)
	assert.Equal(t, 1500*time.Millisecond, cfg.Preview.QuietPeriod)
	assert.Equal(t, 24*time.Hour, cfg.Generation.CacheTTL)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := isolate(t)

	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
backend:
  base_url: https://api.example.com
  token: from-file
history:
  max_snapshots: 5
server:
  port: 9000
`), 0o644))

	t.Setenv("APPLYDESK_BACKEND_TOKEN", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int(FlagName("server.port"), 0, "")
	require.NoError(t, fs.Parse([]string{"--server-port=7000"}))

	cfg, err := Load(Options{File: file, Flags: fs})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "from-env", cfg.Backend.Token)
	assert.Equal(t, 5, cfg.History.MaxSnapshots)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_UnchangedFlagKeepsFileValue(t *testing.T) {
	dir := isolate(t)

	file := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"server":{"port":9001}}`), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int(FlagName("server.port"), 1234, "")
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(Options{File: file, Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)

	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("APPLYDESK_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("APPLYDESK_LOG_LEVEL") })

	cfg, err := Load(Options{EnvFile: env})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(Options{File: filepath.Join(dir, "nope.yaml")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.History.MaxSnapshots = 0
	cfg.Store.Path = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_snapshots")
	assert.Contains(t, err.Error(), "store.path")
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "backend-base-url", FlagName("backend.base_url"))
	assert.Equal(t, "log-level", FlagName("log.level"))
}
