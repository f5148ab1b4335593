package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec exports snapshots as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

type yamlSnapshot struct {
	Source       string            `yaml:"source"`
	Entities     []yamlEntity      `yaml:"entities"`
	Associations []yamlAssociation `yaml:"associations"`
}

type yamlEntity struct {
	ID         int64          `yaml:"id"`
	ModelID    string         `yaml:"model_id"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

type yamlAssociation struct {
	ID         int64  `yaml:"id"`
	RelationID string `yaml:"model_asst_id"`
	Kind       string `yaml:"asst_id"`
	FromModel  string `yaml:"src_model_id"`
	FromID     int64  `yaml:"src_inst_id"`
	ToModel    string `yaml:"dst_model_id"`
	ToID       int64  `yaml:"dst_inst_id"`
}

// Export writes the snapshot as YAML
func (c *YAMLCodec) Export(s *Snapshot, w io.Writer) error {
	ys := yamlSnapshot{
		Source:       s.Source,
		Entities:     make([]yamlEntity, 0, len(s.Entities)),
		Associations: make([]yamlAssociation, 0, len(s.Associations)),
	}
	for _, e := range s.Entities {
		ys.Entities = append(ys.Entities, yamlEntity{
			ID:         e.ID,
			ModelID:    e.ModelID,
			Attributes: e.Attributes,
		})
	}
	for _, a := range s.Associations {
		ys.Associations = append(ys.Associations, yamlAssociation{
			ID:         a.ID,
			RelationID: a.RelationID,
			Kind:       string(a.Kind),
			FromModel:  a.SourceModel,
			FromID:     a.SourceID,
			ToModel:    a.TargetModel,
			ToID:       a.TargetID,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&ys); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
