package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Evaluator   Evaluator   `mapstructure:"evaluator"`
	Logger      Logger      `mapstructure:"logger"`
	Server      Server      `mapstructure:"server"`
	Database    Database    `mapstructure:"database"`
	Persistence Persistence `mapstructure:"persistence"`
}

// Evaluator holds the configuration for the remote scoring service.
type Evaluator struct {
	BaseURL        string  `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"gte=1"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gt=0"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" validate:"gte=1"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
}

// Database holds the configuration for the key-value store.
type Database struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

// Persistence controls the background flush of unsaved slots.
type Persistence struct {
	FlushSchedule string `mapstructure:"flush_schedule" validate:"required"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("evaluator.base_url", "http://localhost:5000")
	v.SetDefault("evaluator.timeout_seconds", 30)
	v.SetDefault("evaluator.rate_limit", 2)       // requests per second
	v.SetDefault("evaluator.rate_limit_burst", 1) // burst size
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "screener.db")
	v.SetDefault("persistence.flush_schedule", "@every 30s")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and the environment still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	v.SetEnvPrefix("SCREENER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	SetDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	err = Validate(&config)
	return
}

// Validate checks the loaded values against their struct constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
