package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"kubecmdb/internal/domain"
)

// GetAttributes returns a model's attribute schema in declaration order. A
// model without a stored schema has no attributes.
func (r *Repository) GetAttributes(ctx context.Context, modelID string) ([]domain.AttributeSpec, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT attr_id, attr_name, attr_type, is_only, is_required, editable
		FROM model_attributes WHERE model_id = ? ORDER BY position, attr_id
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query model attributes: %w", err)
	}
	defer rows.Close()

	var attrs []domain.AttributeSpec
	for rows.Next() {
		var (
			a                           domain.AttributeSpec
			attrType                    sql.NullString
			isOnly, isRequired, canEdit int
		)
		if err := rows.Scan(&a.AttrID, &a.AttrName, &attrType, &isOnly, &isRequired, &canEdit); err != nil {
			return nil, fmt.Errorf("failed to scan model attribute: %w", err)
		}
		a.AttrType = nullToString(attrType)
		a.IsUnique = isOnly != 0
		a.IsRequired = isRequired != 0
		a.Editable = canEdit != 0
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

// SaveModel upserts a model and replaces its attribute schema
func (r *Repository) SaveModel(ctx context.Context, model domain.ModelSpec) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO models (model_id, model_name) VALUES (?, ?)
		ON CONFLICT(model_id) DO UPDATE SET model_name = excluded.model_name, updated_at = CURRENT_TIMESTAMP
	`, model.ModelID, model.ModelName); err != nil {
		return fmt.Errorf("failed to upsert model %s: %w", model.ModelID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM model_attributes WHERE model_id = ?`, model.ModelID); err != nil {
		return fmt.Errorf("failed to clear attributes of %s: %w", model.ModelID, err)
	}

	for i, a := range model.Attributes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO model_attributes (model_id, attr_id, attr_name, attr_type, is_only, is_required, editable, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, model.ModelID, a.AttrID, a.AttrName, stringToNull(a.AttrType),
			boolToInt(a.IsUnique), boolToInt(a.IsRequired), boolToInt(a.Editable), i); err != nil {
			return fmt.Errorf("failed to insert attribute %s.%s: %w", model.ModelID, a.AttrID, err)
		}
	}

	return tx.Commit()
}

// ListModels returns every stored model id
func (r *Repository) ListModels(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT model_id FROM models ORDER BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
