package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	AgentID   string           `json:"agent_id"`
	Port      int              `json:"port"`
	Database  DatabaseConfig   `json:"database"`
	AI        AIConfig         `json:"ai"`
	Sync      SyncConfig       `json:"sync"`
	Chunking  ChunkingConfig   `json:"chunking"`
	Search    SearchConfig     `json:"search"`
	Breaker   BreakerConfig    `json:"breaker"`
	FileStore FileStoreConfig  `json:"file_store"`
	LogConfig logger.LogConfig `json:"log_config"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"` // postgres or sqlite
	DSN      string `json:"dsn"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type SyncConfig struct {
	Enabled         bool   `json:"enabled"`
	SourceURL       string `json:"source_url"`
	SourceToken     string `json:"source_token"`
	Owner           string `json:"owner"`
	IntervalSeconds int    `json:"interval_seconds"`
	PageSize        int    `json:"page_size"`
}

type ChunkingConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
}

type SearchConfig struct {
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

type BreakerConfig struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	CooldownSeconds  int `json:"cooldown_seconds"`
}

type FileStoreConfig struct {
	Dir string `json:"dir"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8410
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return nil, fmt.Errorf("database.dsn or database.host is required for postgres")
		}
	case "sqlite", "":
		cfg.Database.Driver = "sqlite"
		if cfg.Database.Path == "" {
			return nil, fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return nil, fmt.Errorf("database.driver must be postgres or sqlite")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.Sync.Enabled {
		if cfg.Sync.SourceURL == "" {
			return nil, fmt.Errorf("sync.source_url is required when sync is enabled")
		}
		if cfg.Sync.Owner == "" {
			return nil, fmt.Errorf("sync.owner is required when sync is enabled")
		}
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 60
	}
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.Chunking.Size <= 0 {
		cfg.Chunking.Size = 1200
	}
	if cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		cfg.Chunking.Overlap = cfg.Chunking.Size / 6
	}
	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = 10
	}
	if cfg.Search.Threshold <= 0 {
		cfg.Search.Threshold = 0.3
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.SuccessThreshold <= 0 {
		cfg.Breaker.SuccessThreshold = 2
	}
	if cfg.Breaker.CooldownSeconds <= 0 {
		cfg.Breaker.CooldownSeconds = 30
	}
	if cfg.FileStore.Dir == "" {
		return nil, fmt.Errorf("file_store.dir is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	return &cfg, nil
}
