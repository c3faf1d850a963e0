package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Events   EventsConfig   `mapstructure:"events"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int      `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string   `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url"                       validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"            validate:"gt=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"            validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gt=0"`
	MigrateOnStart         bool   `mapstructure:"migrate_on_start"`
}

// RedisConfig points at the Redis instance used by the job queue and the
// status event bus.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0,lt=44640"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0,lt=525600,gtfield=TokenLifetimeMinutes"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"gte=4,lte=31"`
}

// LLMConfig contains the text generation provider settings.
type LLMConfig struct {
	DefaultProvider       string `mapstructure:"default_provider"        validate:"required,oneof=gemini openai"`
	GeminiAPIKey          string `mapstructure:"gemini_api_key"`
	GeminiModel           string `mapstructure:"gemini_model"            validate:"required"`
	GeminiBaseURL         string `mapstructure:"gemini_base_url"         validate:"omitempty,url"`
	OpenAIAPIKey          string `mapstructure:"openai_api_key"`
	OpenAIModel           string `mapstructure:"openai_model"            validate:"required"`
	OpenAIBaseURL         string `mapstructure:"openai_base_url"         validate:"omitempty,url"`
	MaxConcurrentCalls    int    `mapstructure:"max_concurrent_calls"    validate:"gte=0"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gt=0"`
}

// QueueConfig controls the job queue and the worker pool consuming it.
type QueueConfig struct {
	Backend              string `mapstructure:"backend"                validate:"required,oneof=redis memory"`
	Name                 string `mapstructure:"name"                   validate:"required"`
	DelayMS              int    `mapstructure:"delay_ms"               validate:"gte=0"`
	MaxAttempts          int    `mapstructure:"max_attempts"           validate:"gte=1,lte=20"`
	BackoffBaseMS        int    `mapstructure:"backoff_base_ms"        validate:"gt=0"`
	WorkerEnabled        bool   `mapstructure:"worker_enabled"`
	WorkerCount          int    `mapstructure:"worker_count"           validate:"gt=0"`
	PollIntervalMS       int    `mapstructure:"poll_interval_ms"       validate:"gt=0"`
	LeaseTTLSeconds      int    `mapstructure:"lease_ttl_seconds"      validate:"gt=0"`
	StuckAfterMinutes    int    `mapstructure:"stuck_after_minutes"    validate:"gt=0"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds" validate:"gt=0"`
}

// EventsConfig controls the status event bus.
type EventsConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=redis memory"`
	Topic   string `mapstructure:"topic"   validate:"required"`
}

// Delay returns the pre-execution delay applied to every enqueued job.
func (q QueueConfig) Delay() time.Duration {
	return time.Duration(q.DelayMS) * time.Millisecond
}

// BackoffBase returns the first retry delay.
func (q QueueConfig) BackoffBase() time.Duration {
	return time.Duration(q.BackoffBaseMS) * time.Millisecond
}

// PollInterval returns how often an idle worker checks for due jobs.
func (q QueueConfig) PollInterval() time.Duration {
	return time.Duration(q.PollIntervalMS) * time.Millisecond
}

// LeaseTTL returns how long a claimed job stays leased without a heartbeat.
func (q QueueConfig) LeaseTTL() time.Duration {
	return time.Duration(q.LeaseTTLSeconds) * time.Second
}

// StuckAfter returns the age after which a non-terminal record is reconciled.
func (q QueueConfig) StuckAfter() time.Duration {
	return time.Duration(q.StuckAfterMinutes) * time.Minute
}

// SweepInterval returns how often the reconciliation sweep runs.
func (q QueueConfig) SweepInterval() time.Duration {
	return time.Duration(q.SweepIntervalSeconds) * time.Second
}

// RequestTimeout bounds a single provider call.
func (l LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(l.RequestTimeoutSeconds) * time.Second
}

// UsesRedis reports whether any configured backend needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Queue.Backend == "redis" || c.Events.Backend == "redis"
}
