// Package loader reads model attribute schemas from YAML and seeds them into
// a schema store.
package loader

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
)

//go:embed models.yaml
var defaultModels []byte

// ModelsYAML represents the models file structure
type ModelsYAML struct {
	Version string             `yaml:"version"`
	Models  []domain.ModelSpec `yaml:"models"`
}

// LoadYAML reads and validates a models file
func LoadYAML(path string) ([]domain.ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML parses and validates models YAML
func ParseYAML(data []byte) ([]domain.ModelSpec, error) {
	var y ModelsYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}
	if err := validateModels(y.Models); err != nil {
		return nil, err
	}
	return y.Models, nil
}

// DefaultModels returns the built-in schemas of the cluster and every
// collected model
func DefaultModels() []domain.ModelSpec {
	models, err := ParseYAML(defaultModels)
	if err != nil {
		panic(fmt.Sprintf("embedded models.yaml: %v", err))
	}
	return models
}

// ExportYAML renders models in the file format
func ExportYAML(models []domain.ModelSpec) ([]byte, error) {
	return yaml.Marshal(ModelsYAML{Version: "1", Models: models})
}

// Seed saves every model into store
func Seed(ctx context.Context, store repository.SchemaStore, models []domain.ModelSpec) error {
	for _, m := range models {
		if err := store.SaveModel(ctx, m); err != nil {
			return fmt.Errorf("seed %s: %w", m.ModelID, err)
		}
		klog.V(1).InfoS("Seeded model", "model", m.ModelID, "attrs", len(m.Attributes))
	}
	return nil
}

func validateModels(models []domain.ModelSpec) error {
	var errs error
	seen := sets.New[string]()
	for i, m := range models {
		if m.ModelID == "" {
			errs = multierr.Append(errs, fmt.Errorf("models[%d]: model_id is required", i))
			continue
		}
		if seen.Has(m.ModelID) {
			errs = multierr.Append(errs, fmt.Errorf("model %s: duplicate model", m.ModelID))
		}
		seen.Insert(m.ModelID)

		attrs := sets.New[string]()
		hasIdentity := false
		for j, a := range m.Attributes {
			if a.AttrID == "" {
				errs = multierr.Append(errs, fmt.Errorf("model %s: attrs[%d]: attr_id is required", m.ModelID, j))
				continue
			}
			if attrs.Has(a.AttrID) {
				errs = multierr.Append(errs, fmt.Errorf("model %s: duplicate attribute %s", m.ModelID, a.AttrID))
			}
			attrs.Insert(a.AttrID)
			if a.AttrID == domain.AttrInstName && a.IsUnique {
				hasIdentity = true
			}
		}
		if !hasIdentity {
			errs = multierr.Append(errs, fmt.Errorf("model %s: %s must be declared unique", m.ModelID, domain.AttrInstName))
		}
	}
	return errs
}
