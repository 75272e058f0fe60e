package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the CLI's file-based configuration. Flags override file values.
type Config struct {
	Service     string        `yaml:"service"`
	User        string        `yaml:"user"`
	Module      string        `yaml:"module"`
	MinVersion  string        `yaml:"min_version"`
	Workers     int           `yaml:"workers"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	ChatTimeout time.Duration `yaml:"chat_timeout"`
	Logging     LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Service:     "login",
		Workers:     1,
		SendTimeout: 5 * time.Second,
		ChatTimeout: 60 * time.Second,
		Logging:     LoggingConfig{Level: "warn"},
	}
}

func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Workers <= 0 {
		return fmt.Errorf("workers must be positive: %d", config.Workers)
	}

	if config.SendTimeout < 0 || config.ChatTimeout < 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
