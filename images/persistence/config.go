package persistence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/lxl66566/img-server/images/domain"
)

// Config is the single persisted state of the process: storage settings,
// access control sets and the full image record list. It is written back to
// disk as a whole snapshot after every mutating operation.
type Config struct {
	DataDir   string   `toml:"data_dir"`
	MaxSizeMB int      `toml:"max_size_mb"`
	Tokens    []string `toml:"tokens"`
	Blacklist []string `toml:"blacklist"`

	// ThumbnailPixels is the target area of derived thumbnails. Zero
	// disables thumbnail derivation entirely.
	ThumbnailPixels int `toml:"thumbnail_pixels"`

	Images []domain.ImageRecord `toml:"images"`
}

// DefaultConfig returns the settings used when no config file exists yet.
func DefaultConfig() *Config {
	return &Config{
		DataDir:         "data",
		MaxSizeMB:       20,
		ThumbnailPixels: 50000,
	}
}

func (c *Config) ImagesDir() string  { return filepath.Join(c.DataDir, "images") }
func (c *Config) ThumbsDir() string  { return filepath.Join(c.DataDir, "thumbs") }
func (c *Config) StagingDir() string { return filepath.Join(c.DataDir, "temp") }
func (c *Config) LogsDir() string    { return filepath.Join(c.DataDir, "logs") }

// MaxSizeBytes returns the upload body limit in bytes.
func (c *Config) MaxSizeBytes() int64 { return int64(c.MaxSizeMB) << 20 }

// EnsureDirs creates the storage roots. Creation is idempotent.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.ImagesDir(), c.ThumbsDir(), c.StagingDir(), c.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// LoadConfig reads the snapshot at path, falling back to defaults when the
// file does not exist yet, and makes sure the storage roots exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run; defaults apply.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoreConfig writes the full snapshot to path.
func StoreConfig(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// DefaultConfigPath resolves <user config dir>/img-server/config.toml.
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve user config dir: %w", err)
	}
	return filepath.Join(base, "img-server", "config.toml"), nil
}
