package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mberat/sonoreport/internal/models"
)

// ErrStoreEmpty is the retrieval-unavailable condition: a similarity query
// against a store with no passages. Callers must not fall through to
// generation when they see it.
var ErrStoreEmpty = errors.New("vector store contains no guideline passages")

// ErrModelMismatch means stored passages were embedded with a different
// model than the one configured for queries. Similarity scores would be
// meaningless, so the query fails fast.
var ErrModelMismatch = errors.New("stored embedding model does not match query embedding model")

type VectorStoreConfig struct {
	ConnString     string
	TableName      string
	VectorDim      int
	EmbeddingModel string
}

// VectorStore is an explicitly constructed handle around a pgvector table.
// Open it once, pass it by reference, close it on shutdown.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "guideline_passages"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			chunk_index INTEGER,
			content TEXT,
			embedding vector(%d),
			embedding_model TEXT NOT NULL
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Reset drops all stored passages, for re-ingestion from scratch.
func (vs *VectorStore) Reset(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", vs.config.TableName))
	if err != nil {
		return fmt.Errorf("failed to reset store: %v", err)
	}
	return nil
}

// Count returns the number of stored passages.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count passages: %v", err)
	}
	return n, nil
}

// Ingest upserts passages with their embeddings in one transaction.
// Passages and vectors are aligned by index.
func (vs *VectorStore) Ingest(ctx context.Context, passages []models.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("got %d passages but %d vectors", len(passages), len(vectors))
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, chunk_index, content, embedding, embedding_model)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			embedding_model = EXCLUDED.embedding_model`,
		vs.config.TableName)

	for i, p := range passages {
		_, err = tx.Exec(ctx, stmt,
			p.ID,
			sanitizeUTF8(p.Source),
			p.ChunkIndex,
			sanitizeUTF8(p.Text),
			pgvector.NewVector(vectors[i]),
			p.EmbeddingModel,
		)
		if err != nil {
			return fmt.Errorf("failed to insert passage %s: %v", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Search returns the top-K most similar passages, ranked by non-increasing
// cosine similarity. An empty store yields ErrStoreEmpty; a stored
// embedding-model tag differing from the configured one yields
// ErrModelMismatch before any result is returned.
func (vs *VectorStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]models.ScoredPassage, error) {
	query := fmt.Sprintf(`
		SELECT id, source, chunk_index, content, embedding_model,
		       1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %v", err)
	}
	defer rows.Close()

	var results []models.ScoredPassage
	for rows.Next() {
		var sp models.ScoredPassage
		err := rows.Scan(
			&sp.ID,
			&sp.Source,
			&sp.ChunkIndex,
			&sp.Text,
			&sp.EmbeddingModel,
			&sp.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		if vs.config.EmbeddingModel != "" && sp.EmbeddingModel != vs.config.EmbeddingModel {
			return nil, fmt.Errorf("%w: stored %q, configured %q",
				ErrModelMismatch, sp.EmbeddingModel, vs.config.EmbeddingModel)
		}
		results = append(results, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %v", err)
	}

	if len(results) == 0 {
		return nil, ErrStoreEmpty
	}

	return results, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
