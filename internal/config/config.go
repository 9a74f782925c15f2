package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PIOVERRIDE_RCON_ADDRESS.
const EnvPrefix = "PIOVERRIDE"

// Config holds the service configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	RCON    RCONConfig    `mapstructure:"rcon"`
	Health  HealthConfig  `mapstructure:"health"`
	Audit   AuditConfig   `mapstructure:"audit"`

	v *viper.Viper
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RCONConfig describes how to reach the game server's remote console
type RCONConfig struct {
	Transport string        `mapstructure:"transport"` // "rcon" or "webrcon"
	Address   string        `mapstructure:"address"`
	Password  string        `mapstructure:"password"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// HealthConfig controls the optional gRPC health endpoint
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// AuditConfig controls the optional PostgreSQL audit log
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// Load reads configuration from path, overlays environment variables and applies defaults.
// An unreadable or malformed file is returned as an error; callers treat it as fatal.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return fromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.RCON.Transport = strings.ToLower(strings.TrimSpace(cfg.RCON.Transport))
	return cfg, nil
}

// Source returns the key/value view used to read plugin settings.
func (c *Config) Source() Source {
	if c.v == nil {
		return NewSource(viper.New())
	}
	return NewSource(c.v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "[", "_", "]", ""))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("rcon.transport", "rcon")
	v.SetDefault("rcon.address", "127.0.0.1:27015")
	v.SetDefault("rcon.password", "")
	v.SetDefault("rcon.timeout", 5*time.Second)
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.address", "127.0.0.1:9090")
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.dsn", "")
}
