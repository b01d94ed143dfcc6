package config

import (
	"time"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Dispatch DispatchConfig  `mapstructure:"dispatch" validate:"required"`
	Health   HealthConfig    `mapstructure:"health"   validate:"required"`
	LLM      LLMConfig       `mapstructure:"llm"`
	Services []ServiceConfig `mapstructure:"services" validate:"dive"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// Driver selects the SQL dialect; sqlite is intended for single-node
// deployments and tests.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL    string `mapstructure:"url"    validate:"required"`
}

// AuthConfig contains the caller API key and the callback token settings.
type AuthConfig struct {
	// APIKeyHash is a bcrypt hash of the key callers present in X-API-Key.
	// An empty hash disables caller authentication.
	APIKeyHash string `mapstructure:"api_key_hash"`
	// CallbackSecret signs the per-task tokens remote services present
	// when posting results back.
	CallbackSecret   string        `mapstructure:"callback_secret"    validate:"omitempty,min=32"`
	CallbackTokenTTL time.Duration `mapstructure:"callback_token_ttl" validate:"gt=0"`
}

// DispatchConfig controls the task runner and the retry policy.
type DispatchConfig struct {
	WorkerCount         int           `mapstructure:"worker_count"         validate:"gt=0"`
	QueueSize           int           `mapstructure:"queue_size"           validate:"gt=0"`
	MaxAttempts         int           `mapstructure:"max_attempts"         validate:"gt=0"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"        validate:"gte=0"`
	SubmitTimeout       time.Duration `mapstructure:"submit_timeout"       validate:"gt=0"`
	ExtendedTimeout     time.Duration `mapstructure:"extended_timeout"     validate:"gt=0"`
	CancelTimeout       time.Duration `mapstructure:"cancel_timeout"       validate:"gt=0"`
	StuckTaskAge        time.Duration `mapstructure:"stuck_task_age"       validate:"gte=0"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval" validate:"gt=0"`
	// CallbackBaseURL is the externally reachable base of this service. When
	// set, submissions carry a callback URL and token.
	CallbackBaseURL string `mapstructure:"callback_base_url" validate:"omitempty,url"`
}

// HealthConfig controls the periodic service health sweep.
type HealthConfig struct {
	Interval    time.Duration `mapstructure:"interval"    validate:"gt=0"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
}

// LLMConfig contains the in-process Gemini backend settings.
type LLMConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	GeminiAPIKey string   `mapstructure:"gemini_api_key" validate:"required_if=Enabled true"`
	ModelName    string   `mapstructure:"model_name"     validate:"required_if=Enabled true"`
	TaskTypes    []string `mapstructure:"task_types"     validate:"dive,oneof=literature_review trend_analysis gap_analysis paper_analysis"`
}

// ServiceConfig registers one remote analysis service.
type ServiceConfig struct {
	Name    string `mapstructure:"name"     validate:"required"`
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	APIKey  string `mapstructure:"api_key"`
	// Active defaults to true when omitted.
	Active *bool `mapstructure:"active"`
	// TaskTypes lists the task types routed to this service. Empty means all.
	TaskTypes []string `mapstructure:"task_types" validate:"dive,oneof=literature_review trend_analysis gap_analysis paper_analysis"`
}

// IsActive reports whether the service should receive work and health probes.
func (s ServiceConfig) IsActive() bool {
	return s.Active == nil || *s.Active
}

// Handles reports whether the service accepts the given task type.
func (s ServiceConfig) Handles(taskType string) bool {
	if len(s.TaskTypes) == 0 {
		return true
	}
	for _, t := range s.TaskTypes {
		if t == taskType {
			return true
		}
	}
	return false
}
