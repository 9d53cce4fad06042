// Package config provides configuration management for the sweep service.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Sweep    SweepConfig    `mapstructure:"sweep" validate:"required"`
	Webhook  WebhookConfig  `mapstructure:"webhook" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"required,gt=0"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Port                 int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	APIKeys              []string `mapstructure:"api_keys" validate:"required,min=1"`
	SessionTTLSeconds    int      `mapstructure:"session_ttl_seconds" validate:"required,gt=0"`
	MaxStreamsPerSession int      `mapstructure:"max_streams_per_session" validate:"required,gt=0"`
	SubmitRatePerMinute  int      `mapstructure:"submit_rate_per_minute" validate:"required,gt=0"`
	ReadTimeoutSeconds   int      `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	WriteTimeoutSeconds  int      `mapstructure:"write_timeout_seconds" validate:"gte=0"`
}

// SweepConfig represents executor tuning
type SweepConfig struct {
	Workers                   int `mapstructure:"workers" validate:"gte=0"`
	PersistBatchSize          int `mapstructure:"persist_batch_size" validate:"required,gt=0"`
	CheckpointIntervalSeconds int `mapstructure:"checkpoint_interval_seconds" validate:"required,gt=0"`
	MaxJobDurationMinutes     int `mapstructure:"max_job_duration_minutes" validate:"required,gt=0"`
	TopicRetentionMinutes     int `mapstructure:"topic_retention_minutes" validate:"required,gt=0"`
	SubscriberBuffer          int `mapstructure:"subscriber_buffer" validate:"required,gt=0"`
}

// WebhookConfig represents terminal webhook delivery configuration
type WebhookConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// CheckpointInterval returns the progress checkpoint cadence as a duration
func (c *SweepConfig) CheckpointInterval() time.Duration {
	return time.Duration(c.CheckpointIntervalSeconds) * time.Second
}

// MaxJobDuration returns the wall-clock budget for a single job
func (c *SweepConfig) MaxJobDuration() time.Duration {
	return time.Duration(c.MaxJobDurationMinutes) * time.Minute
}

// TopicRetention returns how long terminal broadcast topics are kept around
func (c *SweepConfig) TopicRetention() time.Duration {
	return time.Duration(c.TopicRetentionMinutes) * time.Minute
}

// SessionTTL returns the stream-session lifetime
func (c *ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
