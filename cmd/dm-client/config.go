package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config holds the client configuration. Command-line flags override
// values from the YAML file.
type config struct {
	DeviceID       string `yaml:"device_id"`
	ServerURL      string `yaml:"server_url"`
	ServerID       string `yaml:"server_id"`
	ServerPassword string `yaml:"server_password"`
	RegisterURL    string `yaml:"register_url"`
	LogLevel       string `yaml:"log_level"`
	EventLog       string `yaml:"event_log"`
}

// loadConfig reads the YAML file (if given) and applies flag overrides.
func loadConfig(path string, flags config) (config, error) {
	var cfg config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if flags.DeviceID != "" {
		cfg.DeviceID = flags.DeviceID
	}
	if flags.ServerURL != "" {
		cfg.ServerURL = flags.ServerURL
	}
	if flags.RegisterURL != "" {
		cfg.RegisterURL = flags.RegisterURL
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if flags.EventLog != "" {
		cfg.EventLog = flags.EventLog
	}

	if cfg.DeviceID == "" {
		return config{}, errors.New("device identity is required (--device-id or device_id in config)")
	}
	return cfg, nil
}
