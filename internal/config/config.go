// ABOUTME: Configuration loading and management for the insights server
// ABOUTME: Supports YAML files, .env files, and environment variable overrides

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kyhei/local-dev-insights/internal/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const sqliteScheme = "sqlite://"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Project  ProjectConfig  `mapstructure:"project" yaml:"project"`
	Stats    StatsConfig    `mapstructure:"stats" yaml:"stats"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	v *viper.Viper
}

type ServerConfig struct {
	Name            string `mapstructure:"name" yaml:"name"`
	Version         string `mapstructure:"version" yaml:"version"`
	ProtocolVersion string `mapstructure:"protocol_version" yaml:"protocol_version"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type ProjectConfig struct {
	Root    string `mapstructure:"root" yaml:"root"`
	EnvFile string `mapstructure:"env_file" yaml:"env_file"`
}

type StatsConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval" yaml:"sample_interval"`
}

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type LogConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// Source answers key lookups for collaborators that only need a single value.
type Source interface {
	Lookup(key string) (string, bool)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "local-dev-insights")
	v.SetDefault("server.version", "0.1.0")
	v.SetDefault("server.protocol_version", "2024-11-05")
	v.SetDefault("database.url", sqliteScheme+"dev_insights.db")
	v.SetDefault("project.root", ".")
	v.SetDefault("project.env_file", ".env")
	v.SetDefault("stats.sample_interval", 200*time.Millisecond)
	v.SetDefault("audit.enabled", false)
	v.SetDefault("log.verbose", false)
}

// Load reads configuration. An empty path falls back to the XDG config file,
// which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("insights")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", "DATABASE_URL", "INSIGHTS_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database url env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = xdg.DefaultConfigFile()
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	// .env values feed the env lookups below; real environment variables win.
	envFile := resolveEnvFile(v.GetString("project.root"), v.GetString("project.env_file"))
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.v = v

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("invalid server.name: must not be empty")
	}
	if !strings.HasPrefix(c.Database.URL, sqliteScheme) {
		return fmt.Errorf("invalid database.url: %s (must start with %s)", c.Database.URL, sqliteScheme)
	}
	if strings.TrimPrefix(c.Database.URL, sqliteScheme) == "" {
		return fmt.Errorf("invalid database.url: missing path")
	}
	if c.Stats.SampleInterval < 0 {
		return fmt.Errorf("invalid stats.sample_interval: %s (must not be negative)", c.Stats.SampleInterval)
	}
	return nil
}

// DatabasePath returns the sqlite file path behind database.url.
func (c *Config) DatabasePath() string {
	return xdg.ExpandPath(strings.TrimPrefix(c.Database.URL, sqliteScheme))
}

// ProjectRoot returns the directory the file and env capabilities are confined to.
func (c *Config) ProjectRoot() string {
	return xdg.ExpandPath(c.Project.Root)
}

// EnvFilePath returns the project .env file, resolved against the project root.
func (c *Config) EnvFilePath() string {
	return resolveEnvFile(c.Project.Root, c.Project.EnvFile)
}

// Lookup returns the configured value for a dotted key or an environment variable.
func (c *Config) Lookup(key string) (string, bool) {
	if c.v != nil && c.v.IsSet(key) {
		return c.v.GetString(key), true
	}
	return os.LookupEnv(key)
}

// Render returns the effective configuration as YAML.
func (c *Config) Render() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return data, nil
}

func resolveEnvFile(root, envFile string) string {
	root = xdg.ExpandPath(root)
	envFile = xdg.ExpandPath(envFile)
	if filepath.IsAbs(envFile) {
		return envFile
	}
	return filepath.Join(root, envFile)
}
