package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/drblury/queueflow/internal/runtime/jsoncodec"
)

// Environment variables read by FromEnv.
const (
	EnvDisableSubscriptions = "QUEUEFLOW_DISABLE_SUBSCRIPTIONS"
	EnvRegion               = "QUEUEFLOW_REGION"
	EnvMetricsPort          = "QUEUEFLOW_METRICS_PORT"
)

// Load reads a configuration file. Files ending in .json are decoded as JSON,
// everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return Parse(data)
}

// Parse decodes a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ParseJSON decodes a JSON document.
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := jsoncodec.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// FromEnv overlays environment variables onto cfg.
//
// QUEUEFLOW_DISABLE_SUBSCRIPTIONS set to true, 1 or * disables every
// subscription; any other non-empty value is a comma-separated list of
// logical queue names to disable.
func FromEnv(cfg *Config) error {
	if raw, ok := os.LookupEnv(EnvDisableSubscriptions); ok {
		applyDisabled(cfg, raw)
	}
	if region := strings.TrimSpace(os.Getenv(EnvRegion)); region != "" {
		cfg.Region = region
	}
	if raw := strings.TrimSpace(os.Getenv(EnvMetricsPort)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMetricsPort, err)
		}
		cfg.MetricsPort = port
		cfg.MetricsEnabled = true
	}
	return nil
}

func applyDisabled(cfg *Config, raw string) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "":
		return
	case "true", "1", "*":
		cfg.DisableSubscriptions = true
		return
	case "false", "0":
		return
	}
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.DisabledQueues = append(cfg.DisabledQueues, name)
		}
	}
}
