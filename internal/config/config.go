// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the engine's full runtime configuration. Values load from a YAML
// file first; secrets and deploy-specific settings may be overridden through
// environment variables (a .env file is honored when present).
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Quiz struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"quiz"`
}

// Load reads the YAML file at path (optional), then applies env overrides.
func Load(path string) (Config, error) {
	// Missing .env is fine; env vars may come from the process environment.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Server.Addr, "SERVER_ADDR")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Postgres.URL, "DATABASE_URL")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Quiz.BaseURL, "OPENAI_BASE_URL")
	override(&c.Quiz.APIKey, "OPENAI_API_KEY")
	override(&c.Quiz.Model, "OPENAI_MODEL")
	if os.Getenv("REDIS_ADDR") != "" {
		c.Redis.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Quiz.BaseURL == "" {
		c.Quiz.BaseURL = "https://api.openai.com/v1"
	}
	if c.Quiz.Model == "" {
		c.Quiz.Model = "gpt-4o-mini"
	}
}

// Validate checks the settings the engine cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("config: postgres.url (DATABASE_URL) is required")
	}
	if c.Quiz.APIKey == "" {
		return fmt.Errorf("config: quiz.api_key (OPENAI_API_KEY) is required")
	}
	return nil
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
