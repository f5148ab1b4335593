package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
)

// CreateEdge inserts a directed edge, failing with repository.ErrEdgeExists
// when an edge with the same dedup key already joins the same endpoints
func (r *Repository) CreateEdge(ctx context.Context, edge domain.Association, dedupKey string) (*domain.Association, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM edges WHERE dedup_key = ? AND source_id = ? AND target_id = ?`,
		dedupKey, edge.SourceID, edge.TargetID).Scan(&existingID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s %d->%d: %w", edge.RelationID, edge.SourceID, edge.TargetID, repository.ErrEdgeExists)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check edge: %w", err)
	}

	for _, id := range []int64{edge.SourceID, edge.TargetID} {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE id = ?`, id).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to check endpoint: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("edge endpoint %d: %w", id, repository.ErrNotFound)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO edges (dedup_key, relation_id, kind, source_model, source_id, target_model, target_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, dedupKey, edge.RelationID, string(edge.Kind), edge.SourceModel, edge.SourceID, edge.TargetModel, edge.TargetID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read edge id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit edge: %w", err)
	}

	edge.ID = id
	return &edge, nil
}

// ListEdges returns the edges leaving sourceID
func (r *Repository) ListEdges(ctx context.Context, sourceID int64) ([]domain.Association, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, relation_id, kind, source_model, source_id, target_model, target_id
		FROM edges WHERE source_id = ? ORDER BY id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.Association
	for rows.Next() {
		var (
			e    domain.Association
			kind string
		)
		if err := rows.Scan(&e.ID, &e.RelationID, &kind, &e.SourceModel, &e.SourceID, &e.TargetModel, &e.TargetID); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Kind = domain.RelationKind(kind)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

// DeleteEdge removes one edge
func (r *Repository) DeleteEdge(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("edge %d: %w", id, repository.ErrNotFound)
	}
	return nil
}
