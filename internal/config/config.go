package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/promoloop/reelpipe/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Auth      AuthConfig      `yaml:"auth"`
	TikTok    TikTokConfig    `yaml:"tiktok"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Video     VideoConfig     `yaml:"video"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type AuthConfig struct {
	APIKey     string `yaml:"api_key"`
	CronSecret string `yaml:"cron_secret"`
}

type TikTokConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type HooksConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type VideoConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type CatalogConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type NotifierConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type PipelineConfig struct {
	DailyMaxPosts   int    `yaml:"daily_max_posts"`
	MinPostInterval string `yaml:"min_post_interval"`
	BestHours       []int  `yaml:"best_hours"`
	BatchSize       int    `yaml:"batch_size"`
	MaxRetries      int    `yaml:"max_retries"`
	RetryBackoff    string `yaml:"retry_backoff"`
	ProcessingGrace string `yaml:"processing_grace"`
	Timezone        string `yaml:"timezone"`
}

type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CycleInterval string `yaml:"cycle_interval"`
	LeaseTTL      string `yaml:"lease_ttl"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5641
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Pipeline.DailyMaxPosts == 0 {
		cfg.Pipeline.DailyMaxPosts = 15
	}
	if cfg.Pipeline.MinPostInterval == "" {
		cfg.Pipeline.MinPostInterval = "90m"
	}
	if len(cfg.Pipeline.BestHours) == 0 {
		cfg.Pipeline.BestHours = []int{9, 12, 18, 21}
	}
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 3
	}
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = 3
	}
	if cfg.Pipeline.RetryBackoff == "" {
		cfg.Pipeline.RetryBackoff = "10m"
	}
	if cfg.Pipeline.ProcessingGrace == "" {
		cfg.Pipeline.ProcessingGrace = "30m"
	}
	if cfg.Pipeline.Timezone == "" {
		cfg.Pipeline.Timezone = "Local"
	}
	if cfg.Scheduler.CycleInterval == "" {
		cfg.Scheduler.CycleInterval = "5m"
	}
	if cfg.Scheduler.LeaseTTL == "" {
		cfg.Scheduler.LeaseTTL = "4m"
	}

	return cfg, nil
}
