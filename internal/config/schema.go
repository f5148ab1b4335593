package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// GatewayType selects the telemetry backend
type GatewayType string

const (
	GatewayPrometheus GatewayType = "prometheus"
	GatewayClickHouse GatewayType = "clickhouse"
)

// Config is the root configuration structure
type Config struct {
	Version int `yaml:"version"`
	// Source identifies the cluster; it scopes every collected entity
	Source       string         `yaml:"source" validate:"required"`
	Organization []int64        `yaml:"organization,omitempty"`
	Database     DatabaseConfig `yaml:"database"`
	Gateway      GatewayConfig  `yaml:"gateway"`
	Sync         SyncConfig     `yaml:"sync"`
	Models       ModelsConfig   `yaml:"models"`
	Server       ServerConfig   `yaml:"server"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// GatewayConfig selects and addresses the metric query backend
type GatewayConfig struct {
	Type    GatewayType `yaml:"type" validate:"oneof=prometheus clickhouse"`
	Address string      `yaml:"address" validate:"required,url"`
	Timeout Duration    `yaml:"timeout" validate:"gt=0"`
	// Table is the ClickHouse gauge table
	Table string `yaml:"table,omitempty"`
}

// SyncConfig tunes reconciliation
type SyncConfig struct {
	Interval          Duration `yaml:"interval" validate:"gt=0"`
	Workers           int      `yaml:"workers" validate:"min=1,max=64"`
	PruneAssociations bool     `yaml:"prune_associations"`
	EnsureCluster     bool     `yaml:"ensure_cluster"`
	UniqueKeys        []string `yaml:"unique_keys,omitempty" validate:"omitempty,dive,required"`
}

// ModelsConfig points at the model schema seed file
type ModelsConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ServerConfig holds the status server settings
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
