package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrDocumentNotFound indicates a document lookup by ID found no row.
var ErrDocumentNotFound = errors.New("document not found")

// Store persists source documents and their embedded chunks in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines; all state lives
// in the connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// CreateDocument registers an uploaded document in the processing state.
// Re-uploading an existing ID resets the record and clears any previous
// error so ingestion can run again.
func (s *Store) CreateDocument(ctx context.Context, doc SourceDocument) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_documents (id, course_id, storage_location, media_type, status, chunk_count, error)
		VALUES ($1, $2, $3, $4, $5, 0, '')
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			storage_location = EXCLUDED.storage_location,
			media_type = EXCLUDED.media_type,
			status = EXCLUDED.status,
			chunk_count = 0,
			error = '',
			updated_at = now()`,
		doc.ID, doc.CourseID, doc.StorageLocation, doc.MediaType, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("creating document %q: %w", doc.ID, err)
	}
	return nil
}

// Document returns a single document by ID.
func (s *Store) Document(ctx context.Context, id string) (SourceDocument, error) {
	var doc SourceDocument
	err := s.pool.QueryRow(ctx, `
		SELECT id, course_id, storage_location, media_type, status, chunk_count, error, created_at, updated_at
		FROM source_documents
		WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.CourseID, &doc.StorageLocation, &doc.MediaType,
		&doc.Status, &doc.ChunkCount, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SourceDocument{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	if err != nil {
		return SourceDocument{}, fmt.Errorf("loading document %q: %w", id, err)
	}
	return doc, nil
}

// ListDocumentsByCourse returns all documents for a course, newest first.
func (s *Store) ListDocumentsByCourse(ctx context.Context, courseID string) ([]SourceDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, course_id, storage_location, media_type, status, chunk_count, error, created_at, updated_at
		FROM source_documents
		WHERE course_id = $1
		ORDER BY created_at DESC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents for course %q: %w", courseID, err)
	}
	defer rows.Close()

	var docs []SourceDocument
	for rows.Next() {
		var doc SourceDocument
		if err := rows.Scan(&doc.ID, &doc.CourseID, &doc.StorageLocation, &doc.MediaType,
			&doc.Status, &doc.ChunkCount, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// SetDocumentFailed marks a document as failed with a human-readable reason.
// Any chunks from a previous successful ingestion are left in place so the
// course keeps answering from the last good version.
func (s *Store) SetDocumentFailed(ctx context.Context, id, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE source_documents
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`,
		id, StatusFailed, reason,
	)
	if err != nil {
		return fmt.Errorf("marking document %q failed: %w", id, err)
	}
	return nil
}

// ReplaceChunks atomically swaps a document's chunks for a new set and marks
// the document processed. The delete and inserts run in one transaction:
// either every chunk of the new ingestion run lands, or none do and the
// previous chunks survive untouched.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("chunk transaction rollback failed", "document_id", documentID, "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting previous chunks for %q: %w", documentID, err)
	}

	for _, c := range chunks {
		if len(c.Embedding) != VectorDim {
			return fmt.Errorf("chunk %q has %d dimensions, want %d", c.ID, len(c.Embedding), VectorDim)
		}
		vec := pgvector.NewVector(c.Embedding)
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, course_id, document_id, ordinal, text, embedding, source_ref, extracted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.CourseID, c.DocumentID, c.Ordinal, c.Text, vec, c.SourceRef, c.ExtractedAt,
		); err != nil {
			return fmt.Errorf("inserting chunk %q: %w", c.ID, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE source_documents
		SET status = $2, chunk_count = $3, error = '', updated_at = now()
		WHERE id = $1`,
		documentID, StatusProcessed, len(chunks),
	); err != nil {
		return fmt.Errorf("marking document %q processed: %w", documentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk transaction: %w", err)
	}

	s.logger.Debug("replaced document chunks",
		"document_id", documentID,
		"chunk_count", len(chunks))
	return nil
}

// ListChunksByCourse loads every chunk for a course, with embeddings.
// Retrieval scans the full course corpus, so there is no pagination here;
// course corpora are bounded by what instructors upload.
func (s *Store) ListChunksByCourse(ctx context.Context, courseID string) ([]Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, course_id, document_id, ordinal, text, embedding, source_ref, extracted_at
		FROM chunks
		WHERE course_id = $1
		ORDER BY document_id, ordinal`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for course %q: %w", courseID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.CourseID, &c.DocumentID, &c.Ordinal,
			&c.Text, &vec, &c.SourceRef, &c.ExtractedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}
	return chunks, nil
}
