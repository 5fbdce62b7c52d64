package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config drives the serve command. Loaded from a YAML file, with
// environment variables (optionally via .env) overriding individual
// fields.
type Config struct {
	Static   StaticConfig   `yaml:"static"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
}

type StaticConfig struct {
	URL string `yaml:"url" validate:"required,url"`
}

// Duration parses "30s" style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type RealtimeConfig struct {
	URL             string   `yaml:"url" validate:"omitempty,url"`
	RefreshInterval Duration `yaml:"refreshInterval" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

type StorageConfig struct {
	// memory, sqlite or postgres
	Driver    string `yaml:"driver" validate:"required,oneof=memory sqlite postgres"`
	DSN       string `yaml:"dsn"`
	Directory string `yaml:"directory"`
}

// Loads config from path, applies env overrides and validates. A
// missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Realtime: RealtimeConfig{RefreshInterval: Duration(time.Minute)},
		Server:   ServerConfig{Addr: ":8080"},
		Storage:  StorageConfig{Driver: "memory"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARRIVALS_STATIC_URL"); v != "" {
		cfg.Static.URL = v
	}
	if v := os.Getenv("ARRIVALS_REALTIME_URL"); v != "" {
		cfg.Realtime.URL = v
	}
	if v := os.Getenv("ARRIVALS_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Realtime.RefreshInterval = Duration(d)
		}
	}
	if v := os.Getenv("ARRIVALS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ARRIVALS_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("ARRIVALS_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("ARRIVALS_STORAGE_DIR"); v != "" {
		cfg.Storage.Directory = v
	}
}
