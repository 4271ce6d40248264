package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models stagelink.yml.
type Config struct {
	Gateway struct {
		URL            string `yaml:"url"`
		Secret         string `yaml:"secret"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"gateway"`
	Worker struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		Batch           int `yaml:"batch"`
		MaxAttempts     int `yaml:"max_attempts"`
	} `yaml:"worker"`
	Auth struct {
		AllowLegacyActorHeader bool `yaml:"allow_legacy_actor_header"`
	} `yaml:"auth"`
	Notifications struct {
		DeepLinkBase string `yaml:"deep_link_base"`
	} `yaml:"notifications"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with slk config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Worker.IntervalSeconds < 0 {
		return fmt.Errorf("config.worker.interval_seconds must not be negative")
	}
	if c.Worker.Batch < 0 {
		return fmt.Errorf("config.worker.batch must not be negative")
	}
	if c.Worker.MaxAttempts < 0 {
		return fmt.Errorf("config.worker.max_attempts must not be negative")
	}
	if c.Gateway.TimeoutSeconds < 0 {
		return fmt.Errorf("config.gateway.timeout_seconds must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "stagelink.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `gateway:
  url: ""
  secret: ""
  timeout_seconds: 5

worker:
  interval_seconds: 2
  batch: 100
  max_attempts: 5

auth:
  allow_legacy_actor_header: false

notifications:
  deep_link_base: "stagelink://"
`
