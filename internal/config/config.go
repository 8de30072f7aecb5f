// Package config loads settings from the environment and an optional .env
// file. Environment variables win over the file; the file wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds every setting the server reads. Keys match the environment
// variable names.
type Config struct {
	AppName     string `mapstructure:"app_name" validate:"required"`
	AppVersion  string `mapstructure:"app_version" validate:"required"`
	AppEnv      string `mapstructure:"app_env" validate:"required"`
	AppDebug    bool   `mapstructure:"app_debug"`
	AppTimezone string `mapstructure:"app_timezone"`

	Port     int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	DBDriver   string `mapstructure:"db_driver" validate:"oneof=sqlite postgres"`
	DBPath     string `mapstructure:"db_path" validate:"required_if=DBDriver sqlite"`
	DBDSN      string `mapstructure:"db_dsn"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port" validate:"gte=0,lt=65536"`
	DBDatabase string `mapstructure:"db_database"`
	DBUsername string `mapstructure:"db_username"`
	DBPassword string `mapstructure:"db_password"`
	DBSSLMode  string `mapstructure:"db_sslmode"`

	JWTSecret            string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	JWTTTL               time.Duration `mapstructure:"jwt_ttl" validate:"gte=0"`
	AuthMasterKeyEnabled bool          `mapstructure:"auth_master_key_enabled"`
	BcryptCost           int           `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

var defaults = map[string]any{
	"app_name":                "usuarios-api",
	"app_version":             "1.0.0",
	"app_env":                 "development",
	"app_debug":               false,
	"app_timezone":            "UTC",
	"port":                    8080,
	"log_level":               "info",
	"db_driver":               "sqlite",
	"db_path":                 "data/usuarios.db",
	"db_dsn":                  "",
	"db_host":                 "localhost",
	"db_port":                 5432,
	"db_database":             "usuarios",
	"db_username":             "",
	"db_password":             "",
	"db_sslmode":              "disable",
	"jwt_secret":              "",
	"jwt_ttl":                 "24h",
	"auth_master_key_enabled": false,
	"bcrypt_cost":             12,
}

// Load reads the configuration. envFile may be empty; a missing file is not
// an error.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// DSN returns the data source name for the configured driver. For postgres
// an explicit DB_DSN wins; otherwise one is built from the DB_* parts.
func (c *Config) DSN() string {
	if c.DBDriver != "postgres" {
		return c.DBPath
	}
	if c.DBDSN != "" {
		return c.DBDSN
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBDatabase,
	}
	if c.DBUsername != "" {
		u.User = url.UserPassword(c.DBUsername, c.DBPassword)
	}
	if c.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DBSSLMode}}.Encode()
	}
	return u.String()
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
