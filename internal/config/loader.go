package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr               string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel           string `json:"log_level" yaml:"log_level" toml:"log_level"`
	DefaultProvider    string `json:"default_provider" yaml:"default_provider" toml:"default_provider"`
	MaxBodyBytes       int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ChatTimeoutSeconds int64  `json:"chat_timeout_seconds" yaml:"chat_timeout_seconds" toml:"chat_timeout_seconds"`

	CORS    CORS    `json:"cors" yaml:"cors" toml:"cors"`
	Foundry Foundry `json:"foundry" yaml:"foundry" toml:"foundry"`
	Ollama  Ollama  `json:"ollama" yaml:"ollama" toml:"ollama"`
}

// CORS is opt-in; empty lists use the HTTP layer defaults.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Foundry configures the Foundry Local provider. An empty Endpoint enables
// auto-discovery.
type Foundry struct {
	Endpoint                string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	CLIPath                 string `json:"cli_path" yaml:"cli_path" toml:"cli_path"`
	DisableCLI              bool   `json:"disable_cli" yaml:"disable_cli" toml:"disable_cli"`
	ProbePorts              []int  `json:"probe_ports" yaml:"probe_ports" toml:"probe_ports"`
	DiscoveryTimeoutSeconds int    `json:"discovery_timeout_seconds" yaml:"discovery_timeout_seconds" toml:"discovery_timeout_seconds"`
	DownloadTimeoutMinutes  int    `json:"download_timeout_minutes" yaml:"download_timeout_minutes" toml:"download_timeout_minutes"`
}

// Ollama configures the optional Ollama provider.
type Ollama struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
}

// Defaults used by ApplyDefaults.
const (
	DefaultAddr            = ":8080"
	DefaultLogLevel        = "info"
	DefaultProvider        = "foundry"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultOllamaEndpoint  = "http://localhost:11434"
	defaultDownloadMinutes = 240
)

// ApplyDefaults fills unspecified fields. Foundry discovery and probe
// settings left at zero are defaulted by the provider itself.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = DefaultProvider
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ChatTimeoutSeconds < 0 {
		c.ChatTimeoutSeconds = 0
	}
	if c.Foundry.DownloadTimeoutMinutes <= 0 {
		c.Foundry.DownloadTimeoutMinutes = defaultDownloadMinutes
	}
	if c.Ollama.Enabled && c.Ollama.Endpoint == "" {
		c.Ollama.Endpoint = DefaultOllamaEndpoint
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
