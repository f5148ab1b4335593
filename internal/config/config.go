// Package config provides configuration management for kubecmdb.
//
// Config file locations (priority order):
//  1. $KUBECMDB_CONFIG
//  2. ./kubecmdb.yaml
//  3. ~/.config/kubecmdb/config.yaml
//  4. /etc/kubecmdb/config.yaml
//
// Environment variables override file values: KUBECMDB_SOURCE,
// KUBECMDB_GATEWAY_TYPE, KUBECMDB_GATEWAY_ADDRESS and KUBECMDB_DB_PATH.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvSource         = "KUBECMDB_SOURCE"
	EnvGatewayType    = "KUBECMDB_GATEWAY_TYPE"
	EnvGatewayAddress = "KUBECMDB_GATEWAY_ADDRESS"
	EnvDatabasePath   = "KUBECMDB_DB_PATH"
)

// Defaults
const (
	DefaultDatabasePath   = "./kubecmdb.db"
	DefaultGatewayAddress = "http://localhost:9090"
	DefaultGatewayTimeout = 30 * time.Second
	DefaultSyncInterval   = 5 * time.Minute
	DefaultWorkers        = 8
	DefaultServerAddr     = "127.0.0.1:8080"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load finds and loads the config file, or returns defaults if none found.
// Environment overrides apply either way.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns defaults for a new installation. Source has no
// default and must be set.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Gateway.Type == "" {
		c.Gateway.Type = GatewayPrometheus
	}
	if c.Gateway.Address == "" {
		c.Gateway.Address = DefaultGatewayAddress
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = Duration(DefaultGatewayTimeout)
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = Duration(DefaultSyncInterval)
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = DefaultWorkers
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSource); v != "" {
		c.Source = v
	}
	if v := os.Getenv(EnvGatewayType); v != "" {
		c.Gateway.Type = GatewayType(strings.ToLower(v))
	}
	if v := os.Getenv(EnvGatewayAddress); v != "" {
		c.Gateway.Address = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
}

// Validate checks the config against its field rules and reports every
// violation
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var errs error
	for _, fe := range verrs {
		errs = multierr.Append(errs, fmt.Errorf("%s: failed %q check (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value()))
	}
	return errs
}

// fieldPath turns "Config.Gateway.Address" into "gateway.address"
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = toSnake(p)
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Summary returns a one-line config summary for logs
func (c *Config) Summary() string {
	return fmt.Sprintf("source=%s gateway=%s(%s) db=%s interval=%s workers=%d prune=%v",
		c.Source, c.Gateway.Type, c.Gateway.Address, c.Database.Path,
		c.Sync.Interval.Duration(), c.Sync.Workers, c.Sync.PruneAssociations)
}
