// Package config assembles the daemon's configuration: defaults, overlaid by
// an optional YAML config file, overlaid by environment variables. Every
// koanf key doubles as its environment variable name in upper case.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`

	ScanIntervalMinutes int  `koanf:"scan_interval_minutes"`
	WorkerProcesses     int  `koanf:"worker_processes"`
	AllowSlowProviders  bool `koanf:"allow_slow_providers"`

	Hostname string `koanf:"-"`
}

const configFileENV = "CONFIG_FILE"

func defaults() *Config {
	return &Config{
		DatabaseMaxRetries:        5,
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		ScanIntervalMinutes:       60,
		WorkerProcesses:           2,
	}
}

func New() (*Config, error) {
	cfg := defaults()

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = "/config/config.yaml"
	}
	err := k.Load(file.Provider(path), yaml.Parser())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WithStack(err)
	}

	// Environment variables are the koanf keys upper-cased, so
	// DATABASE_FILE_PATH overrides database_file_path. Unknown variables are
	// ignored by Unmarshal.
	err = k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = k.Unmarshal("", cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = validateRequired(cfg)
	if err != nil {
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cfg.Hostname = hostname

	return cfg, nil
}

// NewForTest returns a config suitable for tests: in-memory database, no
// config file, no environment.
func NewForTest() *Config {
	cfg := defaults()
	cfg.DatabaseFilePath = ":memory:"
	cfg.Hostname = "test"
	return cfg
}

func validateRequired(cfg *Config) error {
	t := reflect.TypeOf(*cfg)
	v := reflect.ValueOf(*cfg)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("required") != "true" {
			continue
		}
		if !v.Field(i).IsZero() {
			continue
		}
		key := field.Tag.Get("koanf")
		if key == "" || key == "-" {
			key = toSnakeCase(field.Name)
		}
		return errors.Errorf("missing required config: %s (%s)", strings.ToUpper(key), key)
	}

	return nil
}

// toSnakeCase converts a Go field name to its koanf key.
func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// String renders the effective configuration for startup logging, masking
// nothing because nothing here is secret.
func (cfg *Config) String() string {
	return fmt.Sprintf("db=%s debug=%t workers=%d scan_interval=%dm", cfg.DatabaseFilePath, cfg.DatabaseDebug, cfg.WorkerProcesses, cfg.ScanIntervalMinutes)
}
