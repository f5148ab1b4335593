package domain

// AttributeSpec describes one attribute of a model's schema
type AttributeSpec struct {
	AttrID     string `json:"attr_id" yaml:"attr_id"`
	AttrName   string `json:"attr_name" yaml:"attr_name"`
	AttrType   string `json:"attr_type,omitempty" yaml:"attr_type,omitempty"`
	IsUnique   bool   `json:"is_only" yaml:"is_only"`
	IsRequired bool   `json:"is_required" yaml:"is_required"`
	Editable   bool   `json:"editable" yaml:"editable"`
}

// ModelSpec is a model and its attribute schema
type ModelSpec struct {
	ModelID    string          `json:"model_id" yaml:"model_id"`
	ModelName  string          `json:"model_name" yaml:"model_name"`
	Attributes []AttributeSpec `json:"attrs" yaml:"attrs"`
}
