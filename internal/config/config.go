package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvConfig   = "PAGECACHE_CONFIG"
	EnvSocket   = "PAGECACHE_SOCK"
	EnvDB       = "PAGECACHE_DB"
	EnvLog      = "PAGECACHE_LOG"
	EnvLogLevel = "PAGECACHE_LOG_LEVEL"
	EnvTTL      = "PAGECACHE_TTL"
	EnvMongoURI = "PAGECACHE_MONGO_URI"
)

type Config struct {
	// Path the file was loaded from; empty when only defaults and env apply.
	Source string `yaml:"-"`

	Cache CacheConfig `yaml:"cache"`
	Fetch FetchConfig `yaml:"fetch"`
	Log   LogConfig   `yaml:"log"`
	Mongo MongoConfig `yaml:"mongo"`
}

type CacheConfig struct {
	// Unix socket of the cache daemon.
	Socket string `yaml:"socket"`
	// Bolt database file used by the daemon (or directly with --db).
	DB     string `yaml:"db"`
	Bucket string `yaml:"bucket"`
	// Lifetime of a cached page.
	TTL time.Duration `yaml:"ttl"`
	// How often the daemon reclaims expired entries.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// Pause between two requests to the same domain.
	Delay time.Duration `yaml:"delay"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	base := defaultBaseDir()
	return Config{
		Cache: CacheConfig{
			Socket:        filepath.Join(base, "cache.sock"),
			DB:            filepath.Join(base, "cache.bbolt"),
			Bucket:        "pages",
			TTL:           10 * time.Second,
			SweepInterval: time.Minute,
		},
		Fetch: FetchConfig{Timeout: 20 * time.Second},
		Log:   LogConfig{Path: defaultLogPath(), Level: "info"},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "logs",
			Collection: "nginx",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (or $PAGECACHE_CONFIG,
// or the default location) and environment overrides, then validates it.
// A missing file at the default location is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.Source = path
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// defaults only
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvSocket); v != "" {
		c.Cache.Socket = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.Cache.DB = v
	}
	if v := os.Getenv(EnvLog); v != "" {
		c.Log.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvMongoURI); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv(EnvTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTTL, err)
		}
		c.Cache.TTL = d
	}
	return nil
}

// DaemonEnv returns the environment entries that make a cache daemon started
// from this process resolve the same config file, database and log settings.
func (c Config) DaemonEnv() []string {
	var env []string
	if c.Source != "" {
		env = append(env, EnvConfig+"="+c.Source)
	}
	return append(env,
		EnvSocket+"="+c.Cache.Socket,
		EnvDB+"="+c.Cache.DB,
		EnvLog+"="+c.Log.Path,
		EnvLogLevel+"="+c.Log.Level,
	)
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.Cache.Socket == "":
		return errors.New("cache.socket must not be empty")
	case c.Cache.DB == "":
		return errors.New("cache.db must not be empty")
	case c.Cache.TTL <= 0:
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	case c.Cache.SweepInterval <= 0:
		return fmt.Errorf("cache.sweep_interval must be positive, got %s", c.Cache.SweepInterval)
	case c.Fetch.Timeout <= 0:
		return fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	case c.Fetch.Delay < 0:
		return fmt.Errorf("fetch.delay must not be negative, got %s", c.Fetch.Delay)
	case c.Log.Path == "":
		return errors.New("log.path must not be empty")
	}
	return nil
}

func defaultBaseDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "page-cache")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, "page-cache", "config.yaml")
}

func defaultLogPath() string {
	// Default to the directory where the executable is located
	if exePath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exePath), "page-cache.log")
	}
	return "./page-cache.log"
}
