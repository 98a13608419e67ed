package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// CARDFORGE_ prefix with underscores for nesting (e.g.
// CARDFORGE_SERVER_PORT) and take precedence over file values.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CARDFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars may carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every knob that has a sensible one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Secrets default to empty so the keys are known to viper and can be
	// supplied purely through the environment; validation rejects empties.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("generation.gemini_api_key", "")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("generation.model_name", "gemini-2.0-flash")
	v.SetDefault("generation.max_retries", 3)
	v.SetDefault("generation.retry_delay_seconds", 2)
	v.SetDefault("generation.session_timeout", 5*time.Minute)

	v.SetDefault("limits.rate_window", time.Hour)
	v.SetDefault("limits.max_requests_per_window", 20)
	v.SetDefault("limits.max_concurrent", 2)

	v.SetDefault("gateway.ack_timeout", 5*time.Second)
	v.SetDefault("gateway.require_ack", true)
	v.SetDefault("gateway.write_timeout", 10*time.Second)

	v.SetDefault("sweeper.interval", 10*time.Minute)
	v.SetDefault("sweeper.max_age", 30*time.Minute)
}
