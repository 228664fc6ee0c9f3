// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"` // bearer token for the control surface; empty disables auth
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Backend           string        `yaml:"backend"` // redis | memory
	KeyPrefix         string        `yaml:"key_prefix"`
	Workers           int           `yaml:"workers"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

type SchedulerConfig struct {
	ScanInterval   time.Duration `yaml:"scan_interval"`
	QuotaResetCron string        `yaml:"quota_reset_cron"`
	Timezone       string        `yaml:"timezone"` // IANA name; empty uses server local time
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // ollama | openai | gemini; empty selects by configured keys
	OllamaBaseURL   string `yaml:"ollama_base_url"`
	OllamaModel     string `yaml:"ollama_model"`
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIModel     string `yaml:"openai_model"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	GeminiModel     string `yaml:"gemini_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent generation calls
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

type FreshdeskConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	DomainSuffix string        `yaml:"domain_suffix"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	AI        AIConfig        `yaml:"ai"`
	Freshdesk FreshdeskConfig `yaml:"freshdesk"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded
// from the environment before parsing so secrets can stay out of the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = "redis"
	}
	if c.Queue.KeyPrefix == "" {
		c.Queue.KeyPrefix = "freshdesk"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	c.Queue.PollInterval = normalizeDuration(c.Queue.PollInterval, 500*time.Millisecond)
	c.Queue.VisibilityTimeout = normalizeDuration(c.Queue.VisibilityTimeout, 5*time.Minute)
	c.Scheduler.ScanInterval = normalizeDuration(c.Scheduler.ScanInterval, 10*time.Second)
	if c.Scheduler.QuotaResetCron == "" {
		c.Scheduler.QuotaResetCron = "0 0 * * *"
	}
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if c.AI.OllamaModel == "" {
		c.AI.OllamaModel = "mistral:latest"
	}
	if c.AI.OpenAIModel == "" {
		c.AI.OpenAIModel = "gpt-3.5-turbo"
	}
	if c.AI.GeminiModel == "" {
		c.AI.GeminiModel = "gemini-2.0-flash"
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 4
	}
	if c.AI.MaxPromptTokens <= 0 {
		c.AI.MaxPromptTokens = 3000
	}
	c.Freshdesk.Timeout = normalizeDuration(c.Freshdesk.Timeout, 30*time.Second)
	if c.Freshdesk.DomainSuffix == "" {
		c.Freshdesk.DomainSuffix = "freshdesk.com"
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	switch c.Queue.Backend {
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis queue backend")
		}
	case "memory":
	default:
		return fmt.Errorf("queue.backend %q is not supported", c.Queue.Backend)
	}
	switch c.AI.Provider {
	case "", "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("ai.provider %q is not supported", c.AI.Provider)
	}
	return nil
}

func normalizeDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
