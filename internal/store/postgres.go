package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/skaldhq/skald/internal/config"
)

// OpenPostgres connects, ensures the pgvector extension plus the schema for
// the given embedding dimension, and returns the store. The embeddings table
// name carries the dimension so a model change lands in a fresh table instead
// of corrupting an existing one.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, dim int) (Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	dsn := cfg.DSN
	if dsn == "" {
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensurePostgresSchema(ctx, db, dim); err != nil {
		db.Close()
		return nil, err
	}
	return &sqlStore{db: db, d: dialect{driver: driverPostgres}, dim: dim}, nil
}

func ensurePostgresSchema(ctx context.Context, db *sql.DB, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS knowledge (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			text TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			checksum TEXT NOT NULL DEFAULT '',
			document_id TEXT NOT NULL DEFAULT '',
			is_main BOOLEAN NOT NULL DEFAULT FALSE,
			created_at BIGINT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_embeddings_%d (
			id TEXT PRIMARY KEY,
			knowledge_id TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, dim, dim),
		`CREATE INDEX IF NOT EXISTS idx_knowledge_agent_main ON knowledge (agent_id, is_main, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_document ON knowledge (document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_knowledge_embeddings_%d_kid ON knowledge_embeddings_%d (knowledge_id)`, dim, dim),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
