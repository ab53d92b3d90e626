// Package config holds the PO agent configuration: SupplierX gateway
// credentials, the advisory NLU provider, the HTTP listen address and
// logging. Configuration is loaded from a YAML file with environment
// variables taking precedence for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all PO agent configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// SupplierX catalog/procurement gateway
	SupplierX SupplierXConfig `yaml:"supplierx"`

	// Advisory NLU (LLM entity extraction)
	NLU NLUConfig `yaml:"nlu"`

	// HTTP chat transport
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SupplierXConfig configures the procurement API gateway.
type SupplierXConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIToken   string `yaml:"api_token"`
	SessionKey string `yaml:"session_key"`
	Timeout    string `yaml:"timeout"`
}

// NLUConfig configures the advisory LLM extractor.
type NLUConfig struct {
	Provider string `yaml:"provider"` // bedrock, anthropic, none
	Region   string `yaml:"region"`   // bedrock only
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"` // anthropic only
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// ServerConfig configures the chat HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug, info, warn, error
	Dir     string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "supplierx-po-agent",
		Version: "1.0.0",
		SupplierX: SupplierXConfig{
			BaseURL: "https://dev.api.supplierx.aeonx.digital",
			Timeout: "30s",
		},
		NLU: NLUConfig{
			Provider: "bedrock",
			Region:   "ap-south-1",
			Model:    "anthropic.claude-3-5-sonnet-20240620-v1:0",
			Timeout:  "60s",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Dir:     "logs",
		},
	}
}

// Load reads configuration from a YAML file, starting from defaults.
// A missing file is not an error; defaults plus environment overrides
// are returned instead.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays environment variables on top of the loaded config.
// Secrets are expected to come from the environment in deployments.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SUPPLIERX_BASE_URL"); v != "" {
		c.SupplierX.BaseURL = v
	}
	if v := os.Getenv("SUPPLIERX_API_TOKEN"); v != "" {
		c.SupplierX.APIToken = v
	}
	if v := os.Getenv("SUPPLIERX_SESSION_KEY"); v != "" {
		c.SupplierX.SessionKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.NLU.Region = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL_ID"); v != "" {
		c.NLU.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.NLU.APIKey = v
	}
	if v := os.Getenv("PO_AGENT_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// SupplierXTimeout returns the gateway request timeout, defaulting to 30s.
func (c *Config) SupplierXTimeout() time.Duration {
	return parseDuration(c.SupplierX.Timeout, 30*time.Second)
}

// NLUTimeout returns the advisory NLU timeout, defaulting to 60s.
func (c *Config) NLUTimeout() time.Duration {
	return parseDuration(c.NLU.Timeout, 60*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
