package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration. Sources, lowest priority first: defaults,
// the YAML file at path (skipped when path is empty or the file is missing),
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := loadEnvironmentVariables(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// loadEnvironmentVariables overlays environment variables on cfg.
func loadEnvironmentVariables(cfg *Config, lookup lookupFunc) error {
	str := func(key string, target *string) {
		if v, ok := lookup(key); ok && v != "" {
			*target = v
		}
	}
	dur := func(key string, target *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*target = d
		return nil
	}
	boolean := func(key string, target *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*target = b
		return nil
	}

	if v, ok := lookup("ENVIRONMENT"); ok && v != "" {
		cfg.Environment = Environment(v)
	}
	str("TABLE_NAME", &cfg.Database.TableName)
	str("AWS_REGION", &cfg.AWS.Region)
	str("DYNAMODB_ENDPOINT", &cfg.AWS.Endpoint)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("AI_PROVIDER", &cfg.AI.Provider)
	str("AI_MODEL", &cfg.AI.Model)
	str("AI_API_KEY", &cfg.AI.APIKey)
	str("AI_BASE_URL", &cfg.AI.BaseURL)
	str("EVENT_BUS_NAME", &cfg.Events.BusName)
	str("EVENT_SOURCE", &cfg.Events.Source)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	str("ADMIN_ADDRESS", &cfg.Admin.Address)

	if v, ok := lookup("OTEL_TRACES_SAMPLER_ARG"); ok && v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG: %w", err)
		}
		cfg.Tracing.SampleRate = rate
	}

	for key, target := range map[string]*time.Duration{
		"STORE_TIMEOUT":         &cfg.Database.Timeout,
		"CLIENT_LIST_CACHE_TTL": &cfg.Cache.ClientListTTL,
		"SLOW_CALL_THRESHOLD":   &cfg.Logging.SlowCall,
	} {
		if err := dur(key, target); err != nil {
			return err
		}
	}
	for key, target := range map[string]*bool{
		"LOG_DEVELOPMENT":        &cfg.Logging.Development,
		"OTEL_EXPORTER_INSECURE": &cfg.Tracing.Insecure,
		"CIRCUIT_BREAKER":        &cfg.Resilience.CircuitBreaker,
	} {
		if err := boolean(key, target); err != nil {
			return err
		}
	}
	return nil
}
