package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
		if !errors.Is(err, ErrNoConfig) {
			t.Errorf("err = %v, want ErrNoConfig", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeConfig(t, "{not json")
		_, err := LoadFrom(path)
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("err = %v, want ErrInvalidJSON", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		path := writeConfig(t, "{}")
		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BackendURL != "http://localhost:8000" {
			t.Errorf("BackendURL = %q, want default", cfg.BackendURL)
		}
		if *cfg.HistoryPairs != 5 {
			t.Errorf("HistoryPairs = %d, want 5", *cfg.HistoryPairs)
		}
		if *cfg.UploadThresholdBytes != 256*1024 {
			t.Errorf("UploadThresholdBytes = %d, want 256 KiB", *cfg.UploadThresholdBytes)
		}
		if *cfg.RequestTimeoutSeconds != 60 {
			t.Errorf("RequestTimeoutSeconds = %d, want 60", *cfg.RequestTimeoutSeconds)
		}
	})

	t.Run("explicit values kept", func(t *testing.T) {
		path := writeConfig(t, `{"backend_url": "http://example.com", "history_pairs": 3}`)
		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BackendURL != "http://example.com" {
			t.Errorf("BackendURL = %q", cfg.BackendURL)
		}
		if *cfg.HistoryPairs != 3 {
			t.Errorf("HistoryPairs = %d, want 3", *cfg.HistoryPairs)
		}
	})

	t.Run("invalid history pairs", func(t *testing.T) {
		path := writeConfig(t, `{"history_pairs": 0}`)
		_, err := LoadFrom(path)
		if !errors.Is(err, ErrBadPairs) {
			t.Errorf("err = %v, want ErrBadPairs", err)
		}
	})
}
