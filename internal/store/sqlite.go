package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens or creates the database file and ensures the schema.
// Embeddings are stored as JSON text and ranked in process.
func OpenSQLite(ctx context.Context, path string, dim int) (Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent ingestion.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqlStore{db: db, d: dialect{driver: driverSQLite}, dim: dim}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS knowledge (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			text TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			checksum TEXT NOT NULL DEFAULT '',
			document_id TEXT NOT NULL DEFAULT '',
			is_main INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_embeddings (
			id TEXT PRIMARY KEY,
			knowledge_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			embedding TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_agent_main ON knowledge (agent_id, is_main, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_document ON knowledge (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_embeddings_kid ON knowledge_embeddings (knowledge_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
