package main

import (
	"fmt"
	"os"
	"time"

	responsetransformer "github.com/always-cache/httpsim/pkg/response-transformer"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port int `yaml:"port"`
	// Mode is "mock" or "live".
	Mode     string `yaml:"mode"`
	Protocol string `yaml:"protocol"`
	// Realtime makes the mock transport take as long as its timeline says.
	Realtime bool          `yaml:"realtime"`
	Timeout  time.Duration `yaml:"timeout"`
	// Cache backend, "memory" or "sqlite".
	Cache           string                    `yaml:"cache"`
	DefaultMaxAge   time.Duration             `yaml:"defaultMaxAge"`
	SessionLifetime time.Duration             `yaml:"sessionLifetime"`
	CleanupInterval time.Duration             `yaml:"cleanupInterval"`
	HistoryTTL      time.Duration             `yaml:"historyTTL"`
	HistorySize     uint64                    `yaml:"historySize"`
	Rules           responsetransformer.Rules `yaml:"rules"`
}

func defaultConfig() Config {
	return Config{
		Port:            8080,
		Mode:            "mock",
		Protocol:        "http1",
		Timeout:         30 * time.Second,
		Cache:           "memory",
		DefaultMaxAge:   time.Hour,
		SessionLifetime: 24 * time.Hour,
		CleanupInterval: time.Minute,
		HistoryTTL:      10 * time.Minute,
		HistorySize:     100,
	}
}

// getConfig reads a YAML config file on top of the defaults.
func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("could not parse %s: %w", filename, err)
	}
	return config, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Mode != "mock" && c.Mode != "live" {
		return fmt.Errorf("mode must be mock or live, not %q", c.Mode)
	}
	if c.Cache != "memory" && c.Cache != "sqlite" {
		return fmt.Errorf("cache must be memory or sqlite, not %q", c.Cache)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("cleanup interval must not be negative")
	}
	return nil
}
