// Package schema derives attribute validators from a model's attribute
// schema. A Validator is built once per model per reconciliation run and
// consulted by the graph store's write path before every mutation.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"kubecmdb/internal/domain"
)

var (
	// ErrRequiredMissing is returned when a required attribute is absent or empty
	ErrRequiredMissing = errors.New("required attribute missing")
	// ErrUniqueViolation is returned when a unique attribute value is already taken
	ErrUniqueViolation = errors.New("unique attribute already exists")
	// ErrNotEditable is returned when an update changes a non-editable attribute
	ErrNotEditable = errors.New("attribute is not editable")
)

// Validator holds the unique, required and editable attribute sets of a model
type Validator struct {
	modelID  string
	names    map[string]string
	unique   sets.Set[string]
	required sets.Set[string]
	editable sets.Set[string]
	known    sets.Set[string]
}

// New builds a validator from a model's attribute schema
func New(modelID string, attrs []domain.AttributeSpec) *Validator {
	v := &Validator{
		modelID:  modelID,
		names:    make(map[string]string, len(attrs)),
		unique:   sets.New[string](),
		required: sets.New[string](),
		editable: sets.New[string](),
		known:    sets.New[string](),
	}
	for _, a := range attrs {
		v.known.Insert(a.AttrID)
		v.names[a.AttrID] = a.AttrName
		if a.IsUnique {
			v.unique.Insert(a.AttrID)
		}
		if a.IsRequired {
			v.required.Insert(a.AttrID)
		}
		if a.Editable {
			v.editable.Insert(a.AttrID)
		}
	}
	return v
}

// ModelID returns the model the validator was built for
func (v *Validator) ModelID() string { return v.modelID }

// UniqueAttrs returns the unique attribute ids, sorted
func (v *Validator) UniqueAttrs() []string { return sets.List(v.unique) }

// RequiredAttrs returns the required attribute ids, sorted
func (v *Validator) RequiredAttrs() []string { return sets.List(v.required) }

// EditableAttrs returns the editable attribute ids, sorted
func (v *Validator) EditableAttrs() []string { return sets.List(v.editable) }

func (v *Validator) IsUnique(attrID string) bool   { return v.unique.Has(attrID) }
func (v *Validator) IsRequired(attrID string) bool { return v.required.Has(attrID) }

// IsEditable reports whether attrID may change on update. Attributes the
// schema does not describe are free-form and always editable.
func (v *Validator) IsEditable(attrID string) bool {
	return v.editable.Has(attrID) || !v.known.Has(attrID)
}

// CheckRequired verifies every required attribute is present and non-empty
func (v *Validator) CheckRequired(attrs domain.Attributes) error {
	var missing []string
	for _, id := range sets.List(v.required) {
		if isEmpty(attrs[id]) {
			missing = append(missing, v.label(id))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrRequiredMissing, strings.Join(missing, ", "))
	}
	return nil
}

// CheckUnique verifies no other entity already holds attrs' unique values.
// The entity with selfID is ignored, so an update does not collide with its
// own stored state.
func (v *Validator) CheckUnique(attrs domain.Attributes, existing []domain.StoredEntity, selfID int64) error {
	for _, id := range sets.List(v.unique) {
		value, ok := attrs[id]
		if !ok || isEmpty(value) {
			continue
		}
		for _, e := range existing {
			if e.ID == selfID {
				continue
			}
			if other, ok := e.Attributes[id]; ok && fmt.Sprint(other) == fmt.Sprint(value) {
				return fmt.Errorf("%w: %s=%v", ErrUniqueViolation, v.label(id), value)
			}
		}
	}
	return nil
}

// CheckEditable verifies an update only changes editable attributes
func (v *Validator) CheckEditable(current, next domain.Attributes) error {
	var locked []string
	for id, value := range next {
		if v.IsEditable(id) {
			continue
		}
		if old, ok := current[id]; ok && fmt.Sprint(old) != fmt.Sprint(value) {
			locked = append(locked, v.label(id))
		}
	}
	if len(locked) > 0 {
		sort.Strings(locked)
		return fmt.Errorf("%w: %s", ErrNotEditable, strings.Join(locked, ", "))
	}
	return nil
}

// ValidateCreate runs the checks for a new entity
func (v *Validator) ValidateCreate(attrs domain.Attributes, existing []domain.StoredEntity) error {
	if err := v.CheckRequired(attrs); err != nil {
		return err
	}
	return v.CheckUnique(attrs, existing, 0)
}

// ValidateUpdate runs the checks for replacing the attributes of entity id
func (v *Validator) ValidateUpdate(id int64, current, next domain.Attributes, existing []domain.StoredEntity) error {
	if err := v.CheckRequired(next); err != nil {
		return err
	}
	if err := v.CheckEditable(current, next); err != nil {
		return err
	}
	return v.CheckUnique(next, existing, id)
}

func (v *Validator) label(id string) string {
	if name := v.names[id]; name != "" && name != id {
		return fmt.Sprintf("%s(%s)", name, id)
	}
	return id
}

func isEmpty(value any) bool {
	switch t := value.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	return false
}
