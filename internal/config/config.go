package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models planline.yml.
type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		KeyEnv  string `yaml:"key_env"`
	} `yaml:"api"`
	UI struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"ui"`
	Server struct {
		Listen string `yaml:"listen"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with pl init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
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

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config.api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.UI.PageSize < 0 {
		return fmt.Errorf("config.ui.page_size must not be negative (0 uses the default)")
	}
	return nil
}

// APIKey resolves the key from the environment variable named by
// api.key_env, defaulting to PLANLINE_API_KEY.
func (c *Config) APIKey() string {
	env := c.API.KeyEnv
	if env == "" {
		env = "PLANLINE_API_KEY"
	}
	return os.Getenv(env)
}

// PageSize returns the configured list page size. Zero or unset falls
// back to 10.
func (c *Config) PageSize() int {
	if c.UI.PageSize > 0 {
		return c.UI.PageSize
	}
	return 10
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "planline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(baseURL string) string {
	return fmt.Sprintf(defaultTemplate, baseURL)
}

// Default returns the default Config struct.
func Default(baseURL string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(baseURL)), &cfg)
	return &cfg
}

const defaultTemplate = `api:
  base_url: %s
  key_env: PLANLINE_API_KEY

ui:
  page_size: 10

server:
  listen: 127.0.0.1:8787
  api_key: dev-key
`
