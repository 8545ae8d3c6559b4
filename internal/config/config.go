package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "feedbackfast.yml"

// Config models feedbackfast.yml. Every field can also come from flags or
// FEEDBACKFAST_* environment variables.
type Config struct {
	APIKey string `yaml:"api_key,omitempty" json:"-"`
	AI     struct {
		Model   string        `yaml:"model" json:"model"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"ai" json:"ai"`
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
	} `yaml:"server" json:"server"`
	Session struct {
		DefaultTesterID string        `yaml:"default_tester_id" json:"default_tester_id"`
		ToastTTL        time.Duration `yaml:"toast_ttl" json:"toast_ttl"`
	} `yaml:"session" json:"session"`
	Seed struct {
		File string `yaml:"file,omitempty" json:"file,omitempty"`
	} `yaml:"seed" json:"seed"`
	Log struct {
		Level string `yaml:"level" json:"level"`
	} `yaml:"log" json:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty" json:"-"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// IsEnabled defaults to true when the field is omitted.
func (w WebhookConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.AI.Model = "gemini-2.5-flash"
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	cfg.Session.DefaultTesterID = "t1"
	cfg.Session.ToastTTL = 3 * time.Second
	cfg.Log.Level = "info"
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.AI.Model == "" {
		return fmt.Errorf("config.ai.model is required")
	}
	if c.AI.Timeout < 0 {
		return fmt.Errorf("config.ai.timeout must not be negative")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Session.DefaultTesterID == "" {
		return fmt.Errorf("config.session.default_tester_id is required")
	}
	if c.Session.ToastTTL <= 0 {
		return fmt.Errorf("config.session.toast_ttl must be positive")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("webhooks[%d].url %q is not an absolute URL", i, hook.URL)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("webhooks[%d] has an empty event type", i)
			}
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, FileName)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}
