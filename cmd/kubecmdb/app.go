package main

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"kubecmdb/internal/config"
	"kubecmdb/internal/domain"
	"kubecmdb/internal/loader"
	"kubecmdb/internal/reconcile"
	"kubecmdb/internal/repository/sqlite"
	"kubecmdb/internal/telemetry"
)

// loadConfig reads the config from --config or the search path and
// validates it
func loadConfig() (*config.Config, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if path == "" {
		path = "(defaults)"
	}
	klog.InfoS("Loaded config", "path", path, "summary", cfg.Summary())
	return cfg, nil
}

// openStore opens the database and seeds the model schemas
func openStore(ctx context.Context, cfg *config.Config) (*sqlite.Repository, error) {
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	models, err := modelSchemas(cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}
	if err := loader.Seed(ctx, repo, models); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func modelSchemas(cfg *config.Config) ([]domain.ModelSpec, error) {
	if cfg.Models.Path == "" {
		return loader.DefaultModels(), nil
	}
	return loader.LoadYAML(cfg.Models.Path)
}

// newGateway builds the configured telemetry backend
func newGateway(cfg *config.Config) (telemetry.Gateway, error) {
	timeout := cfg.Gateway.Timeout.Duration()
	switch cfg.Gateway.Type {
	case config.GatewayPrometheus:
		return telemetry.NewPrometheusGateway(cfg.Gateway.Address, timeout)
	case config.GatewayClickHouse:
		return telemetry.NewClickHouseGateway(cfg.Gateway.Address, cfg.Gateway.Table, timeout), nil
	}
	return nil, fmt.Errorf("unsupported gateway type %q", cfg.Gateway.Type)
}

func controllerOptions(cfg *config.Config) reconcile.Options {
	return reconcile.Options{
		Organization:      cfg.Organization,
		UniqueKeys:        cfg.Sync.UniqueKeys,
		Workers:           cfg.Sync.Workers,
		PruneAssociations: cfg.Sync.PruneAssociations,
		EnsureCluster:     cfg.Sync.EnsureCluster,
	}
}
