package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrNoConfig    = errors.New("config file not found")
	ErrInvalidJSON = errors.New("invalid config JSON")
	ErrBadPairs    = errors.New("history_pairs must be positive")
)

// Config holds the global parley configuration.
type Config struct {
	BackendURL            string `json:"backend_url"`
	HistoryPairs          *int   `json:"history_pairs"`           // user/assistant pairs kept as request context (default: 5)
	UploadThresholdBytes  *int64 `json:"upload_threshold_bytes"`  // text files above this are offloaded via /api/upload (default: 256 KiB)
	RequestTimeoutSeconds *int   `json:"request_timeout_seconds"` // per-request timeout for backend calls (default: 60)
}

// Load reads the config from ~/.config/parley/config.json.
// A missing file yields a default config; PARLEY_BACKEND_URL overrides
// backend_url either way.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "parley", "config.json")
	cfg, err := LoadFrom(configPath)
	if errors.Is(err, ErrNoConfig) {
		cfg, err = applyDefaults(&Config{})
	}
	if err != nil {
		return nil, err
	}

	if url := os.Getenv("PARLEY_BACKEND_URL"); url != "" {
		cfg.BackendURL = url
	}
	return cfg, nil
}

// LoadFrom reads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrInvalidJSON
	}

	return applyDefaults(&cfg)
}

func applyDefaults(cfg *Config) (*Config, error) {
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:8000"
	}
	if cfg.HistoryPairs == nil {
		p := 5
		cfg.HistoryPairs = &p
	}
	if cfg.UploadThresholdBytes == nil {
		t := int64(256 * 1024)
		cfg.UploadThresholdBytes = &t
	}
	if cfg.RequestTimeoutSeconds == nil {
		s := 60
		cfg.RequestTimeoutSeconds = &s
	}
	if *cfg.HistoryPairs <= 0 {
		return nil, ErrBadPairs
	}
	return cfg, nil
}
