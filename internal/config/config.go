// Package config loads settings from defaults, an optional YAML file and
// TADA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path is given and it exists.
const DefaultFile = "tada.yaml"

type Config struct {
	Storage  Storage       `yaml:"storage"`
	Throttle time.Duration `yaml:"throttle"`
	Watch    bool          `yaml:"watch"`
	Theme    string        `yaml:"theme"`
	Log      Log           `yaml:"log"`
	HTTP     HTTP          `yaml:"http"`
	AuthDir  string        `yaml:"auth_dir"`
}

type Storage struct {
	Backend   string `yaml:"backend"` // "file" | "sqlite"
	Dir       string `yaml:"dir"`     // file backend
	Path      string `yaml:"path"`    // sqlite backend
	Namespace string `yaml:"namespace"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Storage: Storage{
			Backend:   "file",
			Dir:       ".",
			Path:      "tada.db",
			Namespace: "todos-tada",
		},
		Throttle: 30 * time.Millisecond,
		Watch:    true,
		Theme:    "classic",
		Log:      Log{Level: "info"},
		HTTP:     HTTP{Addr: "localhost:8080"},
		AuthDir:  defaultAuthDir(),
	}
}

func defaultAuthDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tada"
	}
	return filepath.Join(home, ".tada")
}

// Load builds a Config. An explicit path must exist; the default file is
// optional.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Backend = getenv("TADA_STORAGE", c.Storage.Backend)
	c.Storage.Dir = getenv("TADA_DATA_DIR", c.Storage.Dir)
	c.Storage.Path = getenv("TADA_DB_PATH", c.Storage.Path)
	c.Storage.Namespace = getenv("TADA_NAMESPACE", c.Storage.Namespace)
	c.Throttle = getenvDuration("TADA_THROTTLE", c.Throttle)
	c.Watch = getenvBool("TADA_WATCH", c.Watch)
	c.Theme = getenv("TADA_THEME", c.Theme)
	c.Log.Level = getenv("TADA_LOG_LEVEL", c.Log.Level)
	c.Log.File = getenv("TADA_LOG_FILE", c.Log.File)
	c.HTTP.Addr = getenv("TADA_ADDR", c.HTTP.Addr)
	c.AuthDir = getenv("TADA_AUTH_DIR", c.AuthDir)
}

// Validate rejects settings the program cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Namespace == "" {
		return errors.New("config: empty storage namespace")
	}
	if c.Throttle <= 0 {
		return fmt.Errorf("config: throttle must be positive, got %s", c.Throttle)
	}
	return nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
