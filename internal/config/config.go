// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, and watches the file for changes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete service configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"oneof=development staging production"`

	Database   Database   `yaml:"database"`
	AWS        AWS        `yaml:"aws"`
	Cache      Cache      `yaml:"cache"`
	Logging    Logging    `yaml:"logging"`
	AI         AI         `yaml:"ai"`
	Events     Events     `yaml:"events"`
	Tracing    Tracing    `yaml:"tracing"`
	Admin      Admin      `yaml:"admin"`
	Resilience Resilience `yaml:"resilience"`
}

// Database describes the table and how calls to it are bounded.
type Database struct {
	TableName    string        `yaml:"table_name" validate:"required"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"gte=0"`
}

// AWS holds region and endpoint overrides.
type AWS struct {
	Region   string `yaml:"region" validate:"required"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// Cache configures the client list cache.
type Cache struct {
	ClientListTTL time.Duration `yaml:"client_list_ttl" validate:"gte=0"`
}

// Logging configures the zap logger.
type Logging struct {
	Level       string        `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool          `yaml:"development"`
	SlowCall    time.Duration `yaml:"slow_call" validate:"gte=0"`
}

// AI selects the summary provider.
type AI struct {
	Provider string `yaml:"provider" validate:"oneof=none anthropic openai gemini"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key" validate:"required_unless=Provider none"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
}

// Events configures change publishing. An empty bus disables it.
type Events struct {
	BusName string `yaml:"bus_name"`
	Source  string `yaml:"source"`
}

// Tracing configures the OpenTelemetry exporter.
type Tracing struct {
	Endpoint   string  `yaml:"endpoint"`
	Insecure   bool    `yaml:"insecure"`
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Admin configures the admin HTTP server.
type Admin struct {
	Address         string        `yaml:"address" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Resilience configures the store circuit breaker.
type Resilience struct {
	CircuitBreaker bool          `yaml:"circuit_breaker"`
	FailureRatio   float64       `yaml:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests    uint32        `yaml:"min_requests" validate:"gt=0"`
	OpenTimeout    time.Duration `yaml:"open_timeout" validate:"gt=0"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Environment: Development,
		Database: Database{
			TableName:    "workbench-dev",
			Timeout:      5 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 50 * time.Millisecond,
		},
		AWS:     AWS{Region: "us-east-1"},
		Cache:   Cache{ClientListTTL: 5 * time.Minute},
		Logging: Logging{Level: "info", SlowCall: 500 * time.Millisecond},
		AI:      AI{Provider: "none"},
		Tracing: Tracing{SampleRate: 1},
		Admin:   Admin{Address: ":8080", ShutdownTimeout: 10 * time.Second},
		Resilience: Resilience{
			CircuitBreaker: true,
			FailureRatio:   0.6,
			MinRequests:    5,
			OpenTimeout:    30 * time.Second,
		},
	}
}

var validate = validator.New()

// Validate checks the configuration and reports every invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
