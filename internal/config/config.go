package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Limits     LimitsConfig     `mapstructure:"limits"     validate:"required"`
	Gateway    GatewayConfig    `mapstructure:"gateway"    validate:"required"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"    validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// GenerationConfig contains content-provider integration settings.
type GenerationConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string `mapstructure:"model_name"     validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"            validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"    validate:"gte=0"`
	// SessionTimeout is the ceiling for a session to reach a terminal state
	// before it is forcibly failed. Non-production environments may raise it.
	SessionTimeout time.Duration `mapstructure:"session_timeout" validate:"required"`
}

// LimitsConfig contains per-user admission settings.
type LimitsConfig struct {
	// RateWindow is the fixed rate-limit window length.
	RateWindow time.Duration `mapstructure:"rate_window" validate:"required"`
	// MaxRequestsPerWindow is the request budget within one window.
	MaxRequestsPerWindow int `mapstructure:"max_requests_per_window" validate:"required,gt=0"`
	// MaxConcurrent is the cap on simultaneous active generations per user.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`
}

// GatewayConfig contains duplex-channel delivery settings.
type GatewayConfig struct {
	// AckTimeout bounds how long an emitted event may wait for the client's
	// application-level acknowledgment before delivery is reported failed.
	AckTimeout time.Duration `mapstructure:"ack_timeout" validate:"required"`
	// RequireAck toggles acknowledgment-gated delivery. Disabling it keeps
	// ordered delivery but stops a single missed ack from aborting a stream.
	RequireAck bool `mapstructure:"require_ack"`
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required"`
}

// SweeperConfig contains stale-session sweep settings.
type SweeperConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration `mapstructure:"interval" validate:"required"`
	// MaxAge is the threshold beyond which a non-terminal session is
	// considered orphaned and purged.
	MaxAge time.Duration `mapstructure:"max_age" validate:"required"`
}
