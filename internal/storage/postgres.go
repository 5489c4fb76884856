package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/pitchside/internal/embeddings"
	"github.com/bdougie/pitchside/internal/models"
)

// PostgresStorage archives captions with their embeddings for similarity search.
type PostgresStorage struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewPostgresStorage connects to databaseURL and creates the schema if needed.
func NewPostgresStorage(ctx context.Context, databaseURL string, embedder embeddings.Embedder, logger *slog.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// AddResult stores one caption. Fallback captions are kept without an
// embedding so they never match a search.
func (s *PostgresStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, video_url, level, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO NOTHING`,
		result.RunID, result.VideoURL, result.Level, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	var embedding any
	if !result.Failed {
		vec, err := s.embedder.Embed(ctx, result.Content)
		if err != nil {
			s.logger.Warn("failed to generate embedding",
				slog.String("run_id", result.RunID.String()),
				slog.Int("frame", result.Frame),
				slog.Any("error", err),
			)
		} else {
			embedding = pgvector.NewVector(vec)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO captions
        (run_id, frame_number, offset_ms, content, failed, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, frame_number) DO UPDATE
        SET content = EXCLUDED.content, failed = EXCLUDED.failed, embedding = EXCLUDED.embedding`,
		result.RunID, result.Frame, result.OffsetMS, result.Content, result.Failed, embedding, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store caption: %w", err)
	}
	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// SearchSimilarCaptions ranks archived captions by cosine similarity to query.
func (s *PostgresStorage) SearchSimilarCaptions(ctx context.Context, query string, limit int) ([]models.CaptionSearchResult, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT c.run_id, r.video_url, c.frame_number, c.content,
        1 - (c.embedding <=> $1) AS similarity
        FROM captions c
        JOIN runs r ON c.run_id = r.id
        WHERE c.embedding IS NOT NULL
        ORDER BY c.embedding <=> $1
        LIMIT $2`,
		pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar captions: %w", err)
	}
	defer rows.Close()

	results := []models.CaptionSearchResult{}
	for rows.Next() {
		var result models.CaptionSearchResult
		if err := rows.Scan(&result.RunID, &result.VideoURL, &result.FrameNumber,
			&result.Description, &result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            video_url TEXT NOT NULL,
            level VARCHAR(32) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS captions (
            id BIGSERIAL PRIMARY KEY,
            run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
            frame_number INTEGER NOT NULL,
            offset_ms BIGINT NOT NULL,
            content TEXT NOT NULL,
            failed BOOLEAN NOT NULL DEFAULT FALSE,
            embedding vector,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(run_id, frame_number)
        );

        CREATE INDEX IF NOT EXISTS idx_captions_run_id ON captions(run_id);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}
	return nil
}
