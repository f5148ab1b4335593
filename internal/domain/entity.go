package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Attribute names shared by every collected model
const (
	AttrInstName     = "inst_name"
	AttrName         = "name"
	AttrModelID      = "model_id"
	AttrOrganization = "organization"
	AttrCollectTask  = "collect_task"
	AttrAutoCollect  = "auto_collect"
	AttrCollectTime  = "collect_time"
)

// Attributes is the storage representation of an entity's fields
type Attributes map[string]any

// Clone returns a shallow copy of the attribute map
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// String returns the attribute as a string, or "" if absent or not a string
func (a Attributes) String(key string) string {
	if a == nil {
		return ""
	}
	if s, ok := a[key].(string); ok {
		return s
	}
	return ""
}

// Keys returns the attribute names in sorted order
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StoredEntity is an entity as held by the graph store
type StoredEntity struct {
	ID         int64      `json:"_id"`
	ModelID    string     `json:"model_id"`
	Attributes Attributes `json:"attributes"`
}

// InstName returns the entity's inst_name attribute
func (e StoredEntity) InstName() string {
	return e.Attributes.String(AttrInstName)
}

// IdentityKey is the composite of a model's unique-key attribute values
type IdentityKey string

const identitySep = "\x1f"

// IdentityOf builds the identity key of attrs over keys. It reports false
// when any key is missing or empty, since a partial identity can never be
// matched safely.
func IdentityOf(attrs Attributes, keys []string) (IdentityKey, bool) {
	if len(keys) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok || v == nil {
			return "", false
		}
		s := fmt.Sprint(v)
		if s == "" {
			return "", false
		}
		parts = append(parts, s)
	}
	return IdentityKey(strings.Join(parts, identitySep)), true
}

// String renders the key for logs and reports
func (k IdentityKey) String() string {
	return strings.ReplaceAll(string(k), identitySep, ",")
}
