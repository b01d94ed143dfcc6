package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads,
// e.g. RAP_DATABASE_URL.
const EnvPrefix = "RAP"

// Options customizes Load.
type Options struct {
	// ConfigFile is an explicit path to a YAML config file. When empty,
	// config.yaml is looked up in the working directory and is optional.
	ConfigFile string
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts ...Options) (*Config, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	v := viper.New()
	setDefaults(v)

	if o.ConfigFile != "" {
		v.SetConfigFile(o.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct-level constraints on a populated Config.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Services))
	for _, s := range cfg.Services {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("config validation failed: duplicate service name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal, including keys that have no meaningful default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")

	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("auth.callback_secret", "")
	v.SetDefault("auth.callback_token_ttl", 24*time.Hour)

	v.SetDefault("dispatch.worker_count", 4)
	v.SetDefault("dispatch.queue_size", 100)
	v.SetDefault("dispatch.max_attempts", 3)
	v.SetDefault("dispatch.retry_backoff", 60*time.Second)
	v.SetDefault("dispatch.submit_timeout", 30*time.Second)
	v.SetDefault("dispatch.extended_timeout", 300*time.Second)
	v.SetDefault("dispatch.cancel_timeout", 30*time.Second)
	v.SetDefault("dispatch.stuck_task_age", time.Hour)
	v.SetDefault("dispatch.maintenance_interval", 5*time.Minute)
	v.SetDefault("dispatch.callback_base_url", "")

	v.SetDefault("health.interval", 5*time.Minute)
	v.SetDefault("health.timeout", 5*time.Second)
	v.SetDefault("health.concurrency", 8)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.task_types", []string{})
}
