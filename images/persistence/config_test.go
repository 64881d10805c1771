package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lxl66566/img-server/images/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "data")
	}
	if cfg.MaxSizeMB != 20 {
		t.Errorf("MaxSizeMB = %d, want 20", cfg.MaxSizeMB)
	}
	if cfg.ThumbnailPixels != 50000 {
		t.Errorf("ThumbnailPixels = %d, want 50000", cfg.ThumbnailPixels)
	}
	if cfg.MaxSizeBytes() != 20<<20 {
		t.Errorf("MaxSizeBytes = %d, want %d", cfg.MaxSizeBytes(), 20<<20)
	}
}

func TestConfig_Dirs(t *testing.T) {
	cfg := &Config{DataDir: filepath.Join("some", "root")}

	tests := []struct {
		name   string
		dir    string
		suffix string
	}{
		{name: "images", dir: cfg.ImagesDir(), suffix: "images"},
		{name: "thumbs", dir: cfg.ThumbsDir(), suffix: "thumbs"},
		{name: "staging", dir: cfg.StagingDir(), suffix: "temp"},
		{name: "logs", dir: cfg.LogsDir(), suffix: "logs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := filepath.Join(cfg.DataDir, tt.suffix)
			if tt.dir != want {
				t.Errorf("dir = %q, want %q", tt.dir, want)
			}
		})
	}
}

func TestConfig_StoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Tokens = []string{"token-a"}
	cfg.Blacklist = []string{"203.0.113.7"}
	cfg.Images = []domain.ImageRecord{
		{
			Name:        "a.png",
			Description: "first",
			Hash:        strings.Repeat("ab", 32),
			CreatedAt:   time.Now().UTC().Truncate(time.Second),
		},
	}

	if err := StoreConfig(path, cfg); err != nil {
		t.Fatalf("Failed to store config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.DataDir != cfg.DataDir {
		t.Errorf("DataDir = %q, want %q", loaded.DataDir, cfg.DataDir)
	}
	if len(loaded.Tokens) != 1 || loaded.Tokens[0] != "token-a" {
		t.Errorf("Tokens = %v, want [token-a]", loaded.Tokens)
	}
	if len(loaded.Blacklist) != 1 || loaded.Blacklist[0] != "203.0.113.7" {
		t.Errorf("Blacklist = %v, want [203.0.113.7]", loaded.Blacklist)
	}
	if len(loaded.Images) != 1 {
		t.Fatalf("Images length = %d, want 1", len(loaded.Images))
	}
	got, want := loaded.Images[0], cfg.Images[0]
	if got.Name != want.Name || got.Description != want.Description || got.Hash != want.Hash {
		t.Errorf("Record = %+v, want %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}

	// Loading must have created the storage roots.
	for _, d := range []string{loaded.ImagesDir(), loaded.ThumbsDir(), loaded.StagingDir(), loaded.LogsDir()} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("Expected directory %s to exist: %v", d, err)
		}
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := "data_dir = " + tomlQuote(filepath.Join(dir, "data")) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.MaxSizeMB != 20 {
		t.Errorf("MaxSizeMB = %d, want default 20", cfg.MaxSizeMB)
	}
	if cfg.ThumbnailPixels != 50000 {
		t.Errorf("ThumbnailPixels = %d, want default 50000", cfg.ThumbnailPixels)
	}
}

// tomlQuote quotes a path as a TOML string literal, escaping backslashes.
func tomlQuote(path string) string {
	return `"` + strings.ReplaceAll(path, `\`, `\\`) + `"`
}
