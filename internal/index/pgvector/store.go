package pgvector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/maraichr/docpipe/internal/index"
)

// Store implements index.VectorIndex on Postgres with the pgvector extension.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

var _ index.VectorIndex = (*Store)(nil)

func New(ctx context.Context, dsn string, dimension int, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgvector pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgvector: %w", err)
	}
	return &Store{pool: pool, dimension: dimension, logger: logger}, nil
}

func (s *Store) Backend() string { return "pgvector" }

func (s *Store) Close() { s.pool.Close() }

// EnsureSchema creates the vector extension and the chunk table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id                 uuid PRIMARY KEY,
			chunk_id           text NOT NULL,
			doc_id             text NOT NULL,
			chunk_text         text NOT NULL,
			source_key         text NOT NULL,
			security_clearance text NOT NULL,
			embedding          vector(%d) NOT NULL,
			updated_at         timestamptz NOT NULL DEFAULT now()
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS document_chunks_doc_id_idx ON document_chunks (doc_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure pgvector schema: %w", err)
		}
	}
	return nil
}

const upsertChunk = `
INSERT INTO document_chunks (id, chunk_id, doc_id, chunk_text, source_key, security_clearance, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	chunk_text         = EXCLUDED.chunk_text,
	source_key         = EXCLUDED.source_key,
	security_clearance = EXCLUDED.security_clearance,
	embedding          = EXCLUDED.embedding,
	updated_at         = now()`

func (s *Store) Upsert(ctx context.Context, obj index.Object) error {
	if len(obj.Vector) != s.dimension {
		return fmt.Errorf("chunk %s: vector has %d dimensions, table expects %d", obj.ChunkID, len(obj.Vector), s.dimension)
	}
	id, err := index.ObjectID(obj.ChunkID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, upsertChunk,
		id, obj.ChunkID, obj.DocID, obj.ChunkText, obj.SourceKey, obj.SecurityClearance,
		pgvector.NewVector(obj.Vector))
	if err != nil {
		return fmt.Errorf("upsert chunk %s: %w", obj.ChunkID, err)
	}
	return nil
}
