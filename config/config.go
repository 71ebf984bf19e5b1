package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	JWT        JWTConfig        `yaml:"jwt"`
	Share      ShareConfig      `yaml:"share"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail"`
	Pagination PaginationConfig `yaml:"pagination"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	LogLevel   string           `yaml:"log_level"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	BasePath         string `yaml:"base_path"`
	MaxFileSize      int64  `yaml:"max_file_size"`
	DefaultUserQuota int64  `yaml:"default_user_quota"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// ShareConfig governs public download-link behaviour.
type ShareConfig struct {
	// DefaultTTLHours is applied when an upload does not ask for a TTL.
	// Zero means links only expire when the uploader asks for it.
	DefaultTTLHours int `yaml:"default_ttl_hours"`
	// DeleteOnExhaust makes the cleanup worker reclaim objects whose
	// download quota has been fully consumed.
	DeleteOnExhaust bool `yaml:"delete_on_exhaust"`
	// RegenerateRetries bounds the conditional-update retry loop when
	// rotating a download token under concurrent mutation.
	RegenerateRetries int `yaml:"regenerate_retries"`
	// ConsumeRetries bounds the compare-and-swap retry loop on the
	// download counter before the request fails with a conflict.
	ConsumeRetries int `yaml:"consume_retries"`
}

type CleanupConfig struct {
	IntervalSeconds        int `yaml:"interval_seconds"`
	TombstoneRetentionDays int `yaml:"tombstone_retention_days"`
	BatchSize              int `yaml:"batch_size"`
}

type ThumbnailConfig struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Quality int `yaml:"quality"`
}

type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

type RateLimitConfig struct {
	Enabled       bool `yaml:"enabled"`
	PublicPerWin  int  `yaml:"public_per_window"`
	WindowSeconds int  `yaml:"window_seconds"`
}

var AppConfig *Config

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data"
	}
	if cfg.Storage.MaxFileSize == 0 {
		cfg.Storage.MaxFileSize = 100 << 20
	}
	if cfg.Storage.DefaultUserQuota == 0 {
		cfg.Storage.DefaultUserQuota = 10 << 30
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 24
	}
	if cfg.Share.RegenerateRetries == 0 {
		cfg.Share.RegenerateRetries = 3
	}
	if cfg.Share.ConsumeRetries == 0 {
		cfg.Share.ConsumeRetries = 8
	}
	if cfg.Cleanup.IntervalSeconds == 0 {
		cfg.Cleanup.IntervalSeconds = 3600
	}
	if cfg.Cleanup.TombstoneRetentionDays == 0 {
		cfg.Cleanup.TombstoneRetentionDays = 30
	}
	if cfg.Cleanup.BatchSize == 0 {
		cfg.Cleanup.BatchSize = 200
	}
	if cfg.Thumbnail.Width == 0 {
		cfg.Thumbnail.Width = 320
	}
	if cfg.Thumbnail.Height == 0 {
		cfg.Thumbnail.Height = 320
	}
	if cfg.Thumbnail.Quality == 0 {
		cfg.Thumbnail.Quality = 80
	}
	if cfg.Pagination.DefaultPageSize == 0 {
		cfg.Pagination.DefaultPageSize = 20
	}
	if cfg.Pagination.MaxPageSize == 0 {
		cfg.Pagination.MaxPageSize = 100
	}
	if cfg.RateLimit.PublicPerWin == 0 {
		cfg.RateLimit.PublicPerWin = 60
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
}
