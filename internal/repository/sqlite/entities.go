package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
	"kubecmdb/internal/schema"
)

// QueryEntities returns entities matching every filter, plus the total count
// before paging
func (r *Repository) QueryEntities(ctx context.Context, q repository.EntityQuery) ([]domain.StoredEntity, int, error) {
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entities: %w", err)
	}

	query := "SELECT " + entityColumns + " FROM entities" + where
	orderBy, orderArgs, err := buildOrder(q.Order)
	if err != nil {
		return nil, 0, err
	}
	query += orderBy
	args = append(args, orderArgs...)

	if q.Page != nil && q.Page.Size > 0 {
		number := q.Page.Number
		if number < 1 {
			number = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Page.Size, (number-1)*q.Page.Size)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query entities: %w", err)
	}
	entities, err := scanEntities(rows)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

// GetEntity returns one entity by id
func (r *Repository) GetEntity(ctx context.Context, id int64) (*domain.StoredEntity, error) {
	e, err := scanEntity(r.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}
	return &e, nil
}

// CreateEntity validates attrs against the model's existing entities and
// inserts them
func (r *Repository) CreateEntity(ctx context.Context, modelID string, attrs domain.Attributes, v *schema.Validator) (*domain.StoredEntity, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if v != nil {
		existing, err := modelEntities(ctx, tx, modelID)
		if err != nil {
			return nil, err
		}
		if err := v.ValidateCreate(attrs, existing); err != nil {
			return nil, err
		}
	}

	data, err := encodeAttributes(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO entities (model_id, data) VALUES (?, ?)`, modelID, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read entity id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entity: %w", err)
	}

	return &domain.StoredEntity{ID: id, ModelID: modelID, Attributes: attrs.Clone()}, nil
}

// UpdateEntity replaces the attributes of entity id
func (r *Repository) UpdateEntity(ctx context.Context, modelID string, id int64, attrs domain.Attributes, v *schema.Validator) (*domain.StoredEntity, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanEntity(tx.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ? AND model_id = ?", id, modelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s entity %d: %w", modelID, id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}

	if v != nil {
		existing, err := modelEntities(ctx, tx, modelID)
		if err != nil {
			return nil, err
		}
		if err := v.ValidateUpdate(id, current.Attributes, attrs, existing); err != nil {
			return nil, err
		}
	}

	data, err := encodeAttributes(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(data), id); err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entity: %w", err)
	}

	return &domain.StoredEntity{ID: id, ModelID: modelID, Attributes: attrs.Clone()}, nil
}

// DeleteEntity removes the entity and all edges touching it
func (r *Repository) DeleteEntity(ctx context.Context, modelID string, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ? AND model_id = ?`, id, modelID)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s entity %d: %w", modelID, id, repository.ErrNotFound)
	}

	return tx.Commit()
}

// modelEntities loads every entity of a model inside tx for unique checks
func modelEntities(ctx context.Context, tx *sql.Tx, modelID string) ([]domain.StoredEntity, error) {
	rows, err := tx.QueryContext(ctx, "SELECT "+entityColumns+" FROM entities WHERE model_id = ?", modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s entities: %w", modelID, err)
	}
	return scanEntities(rows)
}

func buildWhere(filters []repository.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		expr, exprArgs, err := fieldExpr(f.Field)
		if err != nil {
			return "", nil, err
		}
		switch f.Type {
		case repository.FilterEqual, "":
			clauses = append(clauses, expr+" = ?")
			args = append(args, exprArgs...)
			args = append(args, f.Value)
		case repository.FilterNotEqual:
			clauses = append(clauses, expr+" <> ?")
			args = append(args, exprArgs...)
			args = append(args, f.Value)
		case repository.FilterContains:
			clauses = append(clauses, expr+" LIKE ?")
			args = append(args, exprArgs...)
			args = append(args, "%"+fmt.Sprint(f.Value)+"%")
		case repository.FilterIn:
			values := toSlice(f.Value)
			if len(values) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			clauses = append(clauses, expr+" IN ("+placeholders+")")
			args = append(args, exprArgs...)
			args = append(args, values...)
		default:
			return "", nil, fmt.Errorf("unsupported filter type %q", f.Type)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func buildOrder(order string) (string, []any, error) {
	if order == "" {
		return " ORDER BY id", nil, nil
	}
	dir := "ASC"
	if strings.HasPrefix(order, "-") {
		dir = "DESC"
		order = order[1:]
	}
	expr, args, err := fieldExpr(order)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(" ORDER BY %s %s, id", expr, dir), args, nil
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	}
	return []any{v}
}
