// Package config loads server settings from an optional config file,
// a .env file and EVIDENCA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. EVIDENCA_SERVER_ADDR.
const EnvPrefix = "EVIDENCA"

// Config holds all server settings.
type Config struct {
	Server struct {
		Addr               string        `mapstructure:"addr"`
		CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
		ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	// Auth.Secret signs tokens. Empty means the secret stored in the
	// database is used.
	Auth struct {
		Secret    string        `mapstructure:"secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
		AdminUser string        `mapstructure:"admin_user"`
	} `mapstructure:"auth"`

	Log struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"log"`

	// Redis is optional. Without an address barcode allocation is
	// serialized in process only.
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		LockTTL  time.Duration `mapstructure:"lock_ttl"`
	} `mapstructure:"redis"`

	Barcode struct {
		MaxAttempts int `mapstructure:"max_attempts"`
	} `mapstructure:"barcode"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("database.path", "evidenca.sqlite3")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.admin_user", "Admin")
	v.SetDefault("log.path", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 10*time.Second)
	v.SetDefault("barcode.max_attempts", 1000)
	v.SetDefault("metrics.enabled", true)
}

// Load reads the configuration. path may be empty, in which case only
// defaults, .env and the environment apply.
func Load(path string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must be set"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must be set"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Barcode.MaxAttempts <= 0 {
		errs = append(errs, errors.New("barcode.max_attempts must be positive"))
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("redis.lock_ttl must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
