// Package config loads runtime settings for the server and the CLI.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before mapping them to keys.
const EnvPrefix = "PSYMETRICS_"

const maxConfigFileSize = 1 << 20

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Storage  StorageConfig  `koanf:"storage"`
	Auth     AuthConfig     `koanf:"auth"`
	Analysis AnalysisConfig `koanf:"analysis"`
}

// ServerConfig configures the HTTP server. An empty CORSOrigin disables
// cross-origin access; "*" allows any origin.
type ServerConfig struct {
	Addr       string `koanf:"addr"`
	StaticDir  string `koanf:"static_dir"`
	CORSOrigin string `koanf:"cors_origin"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

type StorageConfig struct {
	Driver        string `koanf:"driver"`
	SQLitePath    string `koanf:"sqlite_path"`
	MigrationsDir string `koanf:"migrations_dir"`
}

// AuthConfig enables bearer-token auth on the API when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type AnalysisConfig struct {
	MaxUploadMB int `koanf:"max_upload_mb"`
	Workers     int `koanf:"workers"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Log:      LogConfig{Level: "info", Format: "console"},
		Storage:  StorageConfig{Driver: "memory", SQLitePath: "data/psymetrics.db"},
		Analysis: AnalysisConfig{MaxUploadMB: 32, Workers: 4},
	}
}

// Load resolves configuration in order of increasing precedence: defaults,
// the optional YAML file at path, then PSYMETRICS_* environment variables.
// A .env file in the working directory is loaded into the environment first.
//
//	PSYMETRICS_SERVER_ADDR        -> server.addr
//	PSYMETRICS_STORAGE_SQLITE_PATH -> storage.sqlite_path
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps PSYMETRICS_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config file %s is not a regular file", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return io.ReadAll(f)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if err := validateOrigin(c.Server.CORSOrigin); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be memory or sqlite", c.Storage.Driver))
	}
	if c.Analysis.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("analysis.max_upload_mb must be positive"))
	}
	if c.Analysis.Workers <= 0 {
		errs = append(errs, errors.New("analysis.workers must be positive"))
	}
	return errors.Join(errs...)
}

// validateOrigin accepts "", "*" or a bare scheme://host[:port] origin.
func validateOrigin(origin string) error {
	if origin == "" || origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" ||
		(u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("server.cors_origin %q must be * or an http(s) origin such as https://example.org", origin)
	}
	return nil
}

// MaxUploadBytes is the request body limit for uploaded raw data.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Analysis.MaxUploadMB) << 20
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}
