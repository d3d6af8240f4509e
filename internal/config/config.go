// Package config loads shelfscan settings. Later sources win:
// built-in defaults, the YAML config file, SHELFSCAN_* environment variables
// (a .env file in the working directory is read first), then command flags.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/shelfscan/shelfscan/internal/validation"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "SHELFSCAN_"

	DefaultAPIBaseURL     = "http://localhost:5000"
	DefaultRequestTimeout = 15 * time.Second
	// DefaultRemovalTimeout bounds one background-removal request.
	DefaultRemovalTimeout = 30 * time.Second
	// DefaultMaxBatchSize is the number of photos one product can carry.
	DefaultMaxBatchSize = 5
)

type Config struct {
	APIBaseURL     string        `yaml:"api_url" env:"API_URL, overwrite" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT, overwrite" validate:"gt=0"`
	RemovalTimeout time.Duration `yaml:"removal_timeout" env:"REMOVAL_TIMEOUT, overwrite" validate:"gt=0"`
	MaxBatchSize   int           `yaml:"max_batch_size" env:"MAX_BATCH_SIZE, overwrite" validate:"min=1,max=20"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL, overwrite" validate:"oneof=debug info warn error"`
	LogFormat      string        `yaml:"log_format" env:"LOG_FORMAT, overwrite" validate:"oneof=text json"`

	Storage Storage `yaml:"storage" env:", prefix=STORAGE_"`
	Remover Remover `yaml:"remover" env:", prefix=REMOVER_"`
}

type Storage struct {
	Backend    string `yaml:"backend" env:"BACKEND, overwrite" validate:"oneof=file sqlite memory"`
	Path       string `yaml:"path" env:"PATH, overwrite" validate:"required_unless=Backend memory"`
	Passphrase string `yaml:"passphrase" env:"PASSPHRASE, overwrite"`
}

type Remover struct {
	Provider         string `yaml:"provider" env:"PROVIDER, overwrite" validate:"oneof=backend backgroundcut"`
	BackgroundCutURL string `yaml:"backgroundcut_url" env:"BACKGROUNDCUT_URL, overwrite" validate:"omitempty,url"`
	BackgroundCutKey string `yaml:"backgroundcut_key" env:"BACKGROUNDCUT_KEY, overwrite" validate:"required_if=Provider backgroundcut"`
}

// Dir is the per-user directory for the config file and session storage.
func Dir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "shelfscan")
	}
	return ".shelfscan"
}

// DefaultPath is where Load looks for a config file when none is named.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func Default() Config {
	return Config{
		APIBaseURL:     DefaultAPIBaseURL,
		RequestTimeout: DefaultRequestTimeout,
		RemovalTimeout: DefaultRemovalTimeout,
		MaxBatchSize:   DefaultMaxBatchSize,
		LogLevel:       "info",
		LogFormat:      "text",
		Storage: Storage{
			Backend: "file",
			Path:    filepath.Join(Dir(), "session.json"),
		},
		Remover: Remover{Provider: "backend"},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment seen through lookuper. An empty path falls back to
// SHELFSCAN_CONFIG, then to DefaultPath if it exists; a named file that is
// missing is an error. The result is not
// validated so flags can still be applied.
func Load(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if path == "" {
		path, _ = lookuper.Lookup(EnvPrefix + "CONFIG")
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	return validation.Struct(c)
}

// StoragePassphrase returns the configured passphrase, or one derived from
// the host and account so an unattended CLI can still reopen its own store.
func (c *Config) StoragePassphrase() string {
	if c.Storage.Passphrase != "" {
		return c.Storage.Passphrase
	}
	host, _ := os.Hostname()
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return "shelfscan:" + host + ":" + name
}
