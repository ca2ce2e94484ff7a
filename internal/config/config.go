package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Platforms   SearchConfig    `mapstructure:"platforms"`
	Instruments SearchConfig    `mapstructure:"instruments"`
	Discovery   DiscoveryConfig `mapstructure:"discovery"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig is optional: with an empty host the server runs without
// persistence.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// Auth Configuration
type AuthConfig struct {
	JWTSecretEnv   string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type SearchConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

type DiscoveryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interface      string        `mapstructure:"interface"`
	BrowseInterval time.Duration `mapstructure:"browse_interval"`
	BrowseTimeout  time.Duration `mapstructure:"browse_timeout"`
	MaxAge         time.Duration `mapstructure:"max_age"`
	CacheFile      string        `mapstructure:"cache_file"`
}

// Flags registers the command line flags Load understands.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to the YAML configuration file")
	fs.Int("http-port", 0, "HTTP port (overrides server.http_port)")
	fs.Bool("no-discovery", false, "disable mDNS discovery")
}

func setDefaults(v *viper.Viper) {
	// Defaults setzen
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	v.SetDefault("auth.access_token_ttl", "60m")

	v.SetDefault("platforms.search_paths", []string{"./platforms"})
	v.SetDefault("instruments.search_paths", []string{"./instruments"})

	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.browse_interval", "30s")
	v.SetDefault("discovery.browse_timeout", "5s")
	v.SetDefault("discovery.max_age", "10m")
	v.SetDefault("discovery.cache_file", "")
}

// Load reads the configuration file at path (optional), environment
// variables with the MOKU_ prefix and, when fs is not nil, command line flags.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment Variables automatisch binden (MOKU_SERVER_HTTP_PORT, ...)
	v.SetEnvPrefix("MOKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if fs != nil {
		if f := fs.Lookup("http-port"); f != nil && f.Changed {
			if err := v.BindPFlag("server.http_port", f); err != nil {
				return nil, fmt.Errorf("failed to bind flag: %w", err)
			}
		}
		if f := fs.Lookup("no-discovery"); f != nil && f.Changed {
			v.Set("discovery.enabled", false)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.Discovery.Enabled && c.Discovery.BrowseInterval <= 0 {
		return fmt.Errorf("discovery.browse_interval must be positive")
	}
	if c.Discovery.MaxAge <= 0 {
		return fmt.Errorf("discovery.max_age must be positive")
	}
	return nil
}

func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// JWT Secret aus Environment Variable laden
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET" // Fallback
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development Fallback
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}

// Helper um zu prüfen ob Production-Ready
func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != "dev-secret-change-in-production-min-32-chars" && len(secret) >= 32
}
