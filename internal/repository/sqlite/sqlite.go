package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"k8s.io/klog/v2"
	_ "modernc.org/sqlite"

	"kubecmdb/internal/repository"
)

var (
	_ repository.GraphStore  = (*Repository)(nil)
	_ repository.SchemaStore = (*Repository)(nil)
)

// Repository implements repository.GraphStore and repository.SchemaStore
// using SQLite
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and migrates it.
// Use ":memory:" for a throwaway store.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writes, which keeps validate-then-write
	// atomic and gives ":memory:" databases a single shared instance.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	klog.V(2).InfoS("Opened graph store", "path", dbPath)
	return repo, nil
}

// Close releases the database
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) migrate() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := r.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id TEXT NOT NULL,
		data JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dedup_key TEXT NOT NULL,
		relation_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		source_model TEXT NOT NULL,
		source_id INTEGER NOT NULL,
		target_model TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (dedup_key, source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS models (
		model_id TEXT PRIMARY KEY,
		model_name TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS model_attributes (
		model_id TEXT NOT NULL,
		attr_id TEXT NOT NULL,
		attr_name TEXT NOT NULL,
		attr_type TEXT,
		is_only INTEGER NOT NULL DEFAULT 0,
		is_required INTEGER NOT NULL DEFAULT 0,
		editable INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (model_id, attr_id),
		FOREIGN KEY (model_id) REFERENCES models(model_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entities_model ON entities(model_id);
	CREATE INDEX IF NOT EXISTS idx_entities_inst_name ON entities(model_id, json_extract(data, '$.inst_name'));
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	`

	_, err := r.db.Exec(schema)
	return err
}
