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

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Discovery.MaxAge)
	assert.Equal(t, []string{"./platforms"}, cfg.Platforms.SearchPaths)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
database:
  host: db
  database: moku
  user: moku
  password: secret
discovery:
  interface: eth0
  max_age: 2m
instruments:
  search_paths: [/opt/instruments]
`), 0644))

	t.Setenv("MOKU_DISCOVERY_BROWSE_INTERVAL", "1m")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--http-port", "9100", "--no-discovery"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.HTTPPort)
	assert.Equal(t, "eth0", cfg.Discovery.Interface)
	assert.Equal(t, 2*time.Minute, cfg.Discovery.MaxAge)
	assert.Equal(t, time.Minute, cfg.Discovery.BrowseInterval)
	assert.False(t, cfg.Discovery.Enabled)
	assert.Equal(t, []string{"/opt/instruments"}, cfg.Instruments.SearchPaths)
	assert.Equal(t, "postgres://moku:secret@db:5432/moku?sslmode=disable", cfg.Database.DSN())
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("MOKU_SERVER_HTTP_PORT", "70000")
	_, err := Load("", nil)
	assert.Error(t, err)
}

func TestJWTSecretFallback(t *testing.T) {
	a := AuthConfig{JWTSecretEnv: "MOKU_TEST_JWT"}
	assert.False(t, a.IsProductionReady())

	t.Setenv("MOKU_TEST_JWT", "0123456789abcdef0123456789abcdef")
	assert.Equal(t, "0123456789abcdef0123456789abcdef", a.GetJWTSecret())
	assert.True(t, a.IsProductionReady())
}
