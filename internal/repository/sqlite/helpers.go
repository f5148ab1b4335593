package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"kubecmdb/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt stores a bool as SQLite's 0/1
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// encodeAttributes marshals attributes for the data column. Floats always
// carry a fraction or exponent so a whole-number float reads back as float64.
func encodeAttributes(attrs domain.Attributes) ([]byte, error) {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = markFloats(v)
	}
	return json.Marshal(out)
}

// jsonFloat marshals as a JSON number that always looks like a float
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

func markFloats(v any) any {
	switch t := v.(type) {
	case float64:
		return jsonFloat(t)
	case float32:
		return jsonFloat(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = markFloats(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = markFloats(e)
		}
		return out
	}
	return v
}

// decodeAttributes unmarshals the data column. Numbers written without a
// fraction or exponent come back as int64, all others as float64, so
// quantities keep their written type.
func decodeAttributes(data []byte) (domain.Attributes, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	attrs := make(domain.Attributes, len(raw))
	for k, v := range raw {
		attrs[k] = normalizeNumber(v)
	}
	return attrs, nil
}

func normalizeNumber(v any) any {
	switch t := v.(type) {
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if i, err := t.Int64(); err == nil {
				return i
			}
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeNumber(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeNumber(e)
		}
		return out
	}
	return v
}

// ============================================================================
// Entity Row Scanner
// ============================================================================

const entityColumns = "id, model_id, data"

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (domain.StoredEntity, error) {
	var (
		e    domain.StoredEntity
		data []byte
	)
	if err := s.Scan(&e.ID, &e.ModelID, &data); err != nil {
		return e, err
	}
	attrs, err := decodeAttributes(data)
	if err != nil {
		return e, fmt.Errorf("failed to unmarshal entity %d: %w", e.ID, err)
	}
	e.Attributes = attrs
	return e, nil
}

func scanEntities(rows *sql.Rows) ([]domain.StoredEntity, error) {
	defer rows.Close()
	var out []domain.StoredEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return out, nil
}

// ============================================================================
// Filter Helpers
// ============================================================================

var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// fieldExpr maps a filter field to a SQL expression. Attribute paths are
// bound as parameters; only the two entity columns are inlined.
func fieldExpr(field string) (string, []any, error) {
	switch field {
	case "_id":
		return "id", nil, nil
	case domain.AttrModelID:
		return "model_id", nil, nil
	}
	if !fieldPattern.MatchString(field) {
		return "", nil, fmt.Errorf("invalid filter field %q", field)
	}
	return "json_extract(data, ?)", []any{"$." + field}, nil
}
