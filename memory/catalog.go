package memory

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/forgekeeper/agentcore/domain"
	_ "github.com/mattn/go-sqlite3"
)

const catalogFile = "episodic_catalog.sqlite3"

// Catalog is a small embedded-SQL accelerator index over the episodic
// store's JSONL file, the way hector's `databases` package treats a vector
// store as one pluggable provider among several. The JSONL file remains
// the source of truth (spec.md §6's persistence layout); the catalog is
// rebuilt from it whenever the store opens and is never itself durable
// across a schema change.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if needed) the sqlite catalog under dir and
// ensures its schema exists.
func OpenCatalog(dir string) (*Catalog, error) {
	path := filepath.Join(dir, catalogFile)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open catalog: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			task_type TEXT NOT NULL,
			success INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			timestamp_unix INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Rebuild replaces the catalog's contents with episodes, the on-open
// recovery path that keeps the accelerator consistent with the JSONL
// source of truth.
func (c *Catalog) Rebuild(ctx context.Context, episodes []domain.Episode) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: begin catalog rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM episodes"); err != nil {
		return fmt.Errorf("memory: clear catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO episodes (id, task_type, success, iterations, timestamp_unix)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("memory: prepare catalog insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range episodes {
		successInt := 0
		if e.Success {
			successInt = 1
		}
		if _, err := stmt.ExecContext(ctx, e.ID, string(e.TaskType), successInt, e.Iterations, e.Timestamp.Unix()); err != nil {
			return fmt.Errorf("memory: insert catalog row %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Insert adds a single episode's index row without a full rebuild, used
// on every new write after the initial Rebuild.
func (c *Catalog) Insert(ctx context.Context, e domain.Episode) error {
	successInt := 0
	if e.Success {
		successInt = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO episodes (id, task_type, success, iterations, timestamp_unix)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, string(e.TaskType), successInt, e.Iterations, e.Timestamp.Unix())
	return err
}

// MatchingIDs returns the ids of catalog rows matching the optional
// task_type/success filters, newest first.
func (c *Catalog) MatchingIDs(ctx context.Context, taskType *domain.TaskType, success *bool) ([]string, error) {
	query := "SELECT id FROM episodes WHERE 1=1"
	var args []any
	if taskType != nil {
		query += " AND task_type = ?"
		args = append(args, string(*taskType))
	}
	if success != nil {
		successInt := 0
		if *success {
			successInt = 1
		}
		query += " AND success = ?"
		args = append(args, successInt)
	}
	query += " ORDER BY timestamp_unix DESC"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: query catalog: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("memory: scan catalog row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}
