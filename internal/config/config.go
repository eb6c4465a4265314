// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type WorkerConfig struct {
	ID                   string        `yaml:"id"` // defaults to hostname-pid
	Concurrency          int           `yaml:"concurrency"`
	MaxJobsPerMinute     int           `yaml:"max_jobs_per_minute"` // static fallback limit
	FallbackPollInterval time.Duration `yaml:"fallback_poll_interval"`
	VideoPollInterval    time.Duration `yaml:"video_poll_interval"`
	BaseRetryDelay       time.Duration `yaml:"base_retry_delay"`
	MaxAttempts          int           `yaml:"max_attempts"`
	EnableNotify         bool          `yaml:"enable_notify"` // false = pure polling
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	OpenAIKey       string `yaml:"openai_key"`
	ImageModel      string `yaml:"image_model"`
	EditModel       string `yaml:"edit_model"`
	VideoModel      string `yaml:"video_model"`
	DefaultProvider string `yaml:"default_provider"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent provider calls
}

type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Worker.ID == "" {
		host, _ := os.Hostname()
		cfg.Worker.ID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.MaxJobsPerMinute <= 0 {
		cfg.Worker.MaxJobsPerMinute = 10
	}
	if cfg.Worker.FallbackPollInterval <= 0 {
		cfg.Worker.FallbackPollInterval = 5 * time.Second
	}
	if cfg.Worker.VideoPollInterval <= 0 {
		cfg.Worker.VideoPollInterval = 10 * time.Second
	}
	if cfg.Worker.BaseRetryDelay <= 0 {
		cfg.Worker.BaseRetryDelay = 5 * time.Second
	}
	if cfg.Worker.MaxAttempts <= 0 {
		cfg.Worker.MaxAttempts = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 8
	}
	if cfg.AI.ImageModel == "" {
		cfg.AI.ImageModel = "imagen-3.0-generate-002"
	}
	if cfg.AI.EditModel == "" {
		cfg.AI.EditModel = "gemini-2.0-flash-preview-image-generation"
	}
	if cfg.AI.VideoModel == "" {
		cfg.AI.VideoModel = "veo-2.0-generate-001"
	}
	if cfg.AI.DefaultProvider == "" {
		cfg.AI.DefaultProvider = "gemini"
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
