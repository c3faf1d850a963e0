package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the service reads,
// e.g. INKWELL_SERVER_PORT for server.port.
const EnvPrefix = "INKWELL"

// defaults lists every known key. Keys must be registered with viper for
// AutomaticEnv to apply during Unmarshal, so secrets default to "".
var defaults = map[string]any{
	"server.port":                     8080,
	"server.log_level":                "info",
	"server.shutdown_timeout_seconds": 10,
	"server.allowed_origins":          []string{},

	"database.url":                       "",
	"database.max_open_conns":            25,
	"database.max_idle_conns":            25,
	"database.conn_max_lifetime_minutes": 5,
	"database.migrate_on_start":          false,

	"redis.url": "redis://localhost:6379/0",

	"auth.jwt_secret":                     "",
	"auth.token_lifetime_minutes":         15,
	"auth.refresh_token_lifetime_minutes": 10080,
	"auth.bcrypt_cost":                    10,

	"llm.default_provider":        "gemini",
	"llm.gemini_api_key":          "",
	"llm.gemini_model":            "gemini-2.5-flash",
	"llm.gemini_base_url":         "",
	"llm.openai_api_key":          "",
	"llm.openai_model":            "gpt-3.5-turbo",
	"llm.openai_base_url":         "",
	"llm.max_concurrent_calls":    4,
	"llm.request_timeout_seconds": 60,

	"queue.backend":                "redis",
	"queue.name":                   "content-generation",
	"queue.delay_ms":               60000,
	"queue.max_attempts":           3,
	"queue.backoff_base_ms":        5000,
	"queue.worker_enabled":         true,
	"queue.worker_count":           2,
	"queue.poll_interval_ms":       1000,
	"queue.lease_ttl_seconds":      120,
	"queue.stuck_after_minutes":    30,
	"queue.sweep_interval_seconds": 300,

	"events.backend": "redis",
	"events.topic":   "job-status",
}

// Load configuration from environment variables and optionally config files.
// An optional .env file is loaded into the process environment first; it never
// overrides variables that are already set. Environment variables take
// precedence over values from config.yaml.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-section rules that tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	switch c.LLM.DefaultProvider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("config validation failed: llm.gemini_api_key is required when gemini is the default provider")
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return errors.New("config validation failed: llm.openai_api_key is required when openai is the default provider")
		}
	}

	if c.UsesRedis() && c.Redis.URL == "" {
		return errors.New("config validation failed: redis.url is required by the redis queue or event backend")
	}

	return nil
}
