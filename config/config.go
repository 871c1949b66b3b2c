// Package config loads the demo runner configuration from YAML or TOML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/viant/sqlite-facade/db"
	"github.com/viant/sqlite-facade/storage"
)

// Config is the runner configuration.
type Config struct {
	Storage              Storage    `yaml:"storage" toml:"storage"`
	Databases            []Database `yaml:"databases" toml:"databases"`
	BusyTimeout          string     `yaml:"busy_timeout" toml:"busy_timeout"`
	JournalMode          string     `yaml:"journal_mode" toml:"journal_mode"`
	Concurrency          int        `yaml:"concurrency" toml:"concurrency"`
	ClearBindingsOnReset bool       `yaml:"clear_bindings_on_reset" toml:"clear_bindings_on_reset"`
}

// Storage locates database files.
type Storage struct {
	Root string `yaml:"root" toml:"root"`
}

// Database is one logical database driven by the runner.
type Database struct {
	Name string `yaml:"name" toml:"name"`
	Mode string `yaml:"mode" toml:"mode"`
}

// Default returns the configuration used without a config file: two databases
// "filename" and "filename2" created on demand under ./data.
func Default() *Config {
	return &Config{
		Storage: Storage{Root: "data"},
		Databases: []Database{
			{Name: "filename", Mode: "c"},
			{Name: "filename2", Mode: "c"},
		},
		BusyTimeout: "5s",
		Concurrency: 2,
	}
}

// Load reads path, choosing the format by extension: .yml/.yaml (or no
// extension) as YAML, .toml as TOML. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint
	if err != nil {
		return nil, fmt.Errorf("can't read config %s: %w", path, err)
	}
	res := Default()
	res.Databases = nil
	switch {
	case strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml") || !strings.Contains(path, "."):
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(res); err != nil {
			return nil, fmt.Errorf("can't unmarshal yaml config %s: %w", path, err)
		}
	case strings.HasSuffix(path, ".toml"):
		if err := toml.Unmarshal(data, res); err != nil {
			return nil, fmt.Errorf("can't unmarshal toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %s", path)
	}
	if len(res.Databases) == 0 {
		res.Databases = Default().Databases
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	errs := new(multierror.Error)
	if c.Storage.Root == "" {
		errs = multierror.Append(errs, fmt.Errorf("storage.root is empty"))
	}
	if len(c.Databases) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("no databases configured"))
	}
	seen := map[string]bool{}
	for i, d := range c.Databases {
		if d.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("databases[%d]: name is empty", i))
		}
		if seen[d.Name] {
			errs = multierror.Append(errs, fmt.Errorf("databases[%d]: duplicate name %q", i, d.Name))
		}
		seen[d.Name] = true
		if _, err := storage.ParseMode(d.Mode); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("databases[%d]: %w", i, err))
		}
	}
	if _, err := c.busyTimeout(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.Concurrency < 0 {
		errs = multierror.Append(errs, fmt.Errorf("concurrency %d is negative", c.Concurrency))
	}
	return errs.ErrorOrNil()
}

func (c *Config) busyTimeout() (time.Duration, error) {
	if c.BusyTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(c.BusyTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid busy_timeout %q: %w", c.BusyTimeout, err)
	}
	return d, nil
}

// Options returns the connection options for database d, backed by backend.
func (c *Config) Options(d Database, backend storage.Backend) []db.Option {
	timeout, _ := c.busyTimeout()
	opts := []db.Option{db.WithBackend(backend), db.WithMode(d.Mode), db.WithBusyTimeout(timeout)}
	if c.JournalMode != "" {
		opts = append(opts, db.WithJournalMode(c.JournalMode))
	}
	if c.ClearBindingsOnReset {
		opts = append(opts, db.WithClearBindingsOnReset())
	}
	return opts
}
