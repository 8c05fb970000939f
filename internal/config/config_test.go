package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes())
	assert.False(t, cfg.AuthEnabled())
	assert.Empty(t, cfg.Server.CORSOrigin)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
log:
  level: debug
storage:
  driver: sqlite
  sqlite_path: /tmp/reports.db
analysis:
  workers: 2
`), 0o600))

	t.Setenv("PSYMETRICS_SERVER_ADDR", ":9100")
	t.Setenv("PSYMETRICS_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("PSYMETRICS_ANALYSIS_MAX_UPLOAD_MB", "8")
	t.Setenv("PSYMETRICS_SERVER_CORS_ORIGIN", "https://survey.example.org")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr, "environment overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/reports.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 2, cfg.Analysis.Workers)
	assert.Equal(t, 8, cfg.Analysis.MaxUploadMB)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, "https://survey.example.org", cfg.Server.CORSOrigin)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":     func(c *Config) { c.Server.Addr = "" },
		"bad level":      func(c *Config) { c.Log.Level = "trace" },
		"bad format":     func(c *Config) { c.Log.Format = "xml" },
		"bad driver":     func(c *Config) { c.Storage.Driver = "postgres" },
		"sqlite no path": func(c *Config) { c.Storage.Driver = "sqlite"; c.Storage.SQLitePath = "" },
		"zero workers":   func(c *Config) { c.Analysis.Workers = 0 },
		"zero upload":    func(c *Config) { c.Analysis.MaxUploadMB = 0 },
		"origin no host": func(c *Config) { c.Server.CORSOrigin = "https://" },
		"origin path":    func(c *Config) { c.Server.CORSOrigin = "https://example.org/app" },
		"origin scheme":  func(c *Config) { c.Server.CORSOrigin = "ftp://example.org" },
		"origin bare":    func(c *Config) { c.Server.CORSOrigin = "example.org" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())

	for _, origin := range []string{"*", "https://example.org", "http://localhost:5173"} {
		cfg := Default()
		cfg.Server.CORSOrigin = origin
		assert.NoError(t, cfg.Validate(), origin)
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("PSYMETRICS_SERVER_ADDR"))
	assert.Equal(t, "storage.sqlite_path", envKey("PSYMETRICS_STORAGE_SQLITE_PATH"))
	assert.Equal(t, "debug", envKey("PSYMETRICS_DEBUG"))
}
