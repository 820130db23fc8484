// Package ingest runs the document ingestion pipeline: download, extract,
// chunk, embed, commit.
//
// The pipeline is all-or-nothing per document. Embeddings are generated
// fail-fast, so a single embedding error aborts the run before anything is
// persisted; the chunk commit itself is transactional in the store. A
// failed run marks the document failed and leaves any previously committed
// chunks serving queries.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campusmind/campusmind/internal/chunk"
	"github.com/campusmind/campusmind/internal/knowledge"
)

// BlobStore fetches raw document bytes by storage location.
type BlobStore interface {
	Download(ctx context.Context, location string) ([]byte, error)
}

// Extractor turns document bytes into plain text.
type Extractor interface {
	Text(ctx context.Context, data []byte, mediaType string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store records pipeline outcomes.
type Store interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []knowledge.Chunk) error
	SetDocumentFailed(ctx context.Context, id, reason string) error
}

// Request identifies one document to ingest.
type Request struct {
	CourseID        string
	DocumentID      string
	StorageLocation string
	MediaType       string
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	blobs     BlobStore
	extractor Extractor
	embedder  Embedder
	store     Store
	chunkOpts []chunk.Option
	logger    *slog.Logger
}

// New creates a Pipeline. chunkOpts tune the splitter; zero options use the
// package defaults.
func New(blobs BlobStore, extractor Extractor, embedder Embedder, store Store, logger *slog.Logger, chunkOpts ...chunk.Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		blobs:     blobs,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		chunkOpts: chunkOpts,
		logger:    logger,
	}
}

// Start runs ingestion in the background. The HTTP upload handler returns
// immediately; progress is tracked through the document's status column.
// A fresh background context detaches the run from the request lifecycle.
func (p *Pipeline) Start(req Request) {
	go func() {
		if err := p.Run(context.Background(), req); err != nil {
			p.logger.Error("ingestion failed",
				"document_id", req.DocumentID,
				"course_id", req.CourseID,
				"error", err)
		}
	}()
}

// Run executes the pipeline synchronously.
// Any stage failure marks the document failed with the stage's reason and
// returns the error.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	start := time.Now()

	chunks, err := p.build(ctx, req)
	if err != nil {
		p.fail(ctx, req.DocumentID, err)
		return err
	}

	if err := p.store.ReplaceChunks(ctx, req.DocumentID, chunks); err != nil {
		p.fail(ctx, req.DocumentID, err)
		return err
	}

	p.logger.Info("document ingested",
		"document_id", req.DocumentID,
		"course_id", req.CourseID,
		"chunks", len(chunks),
		"duration", time.Since(start))
	return nil
}

// build runs the non-persisting stages and returns the fully embedded
// chunk set.
func (p *Pipeline) build(ctx context.Context, req Request) ([]knowledge.Chunk, error) {
	data, err := p.blobs.Download(ctx, req.StorageLocation)
	if err != nil {
		return nil, fmt.Errorf("downloading document: %w", err)
	}
	p.logger.Debug("document downloaded",
		"document_id", req.DocumentID,
		"bytes", len(data))

	text, err := p.extractor.Text(ctx, data, req.MediaType)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	p.logger.Debug("text extracted",
		"document_id", req.DocumentID,
		"chars", len(text))

	fragments := chunk.Split(text, p.chunkOpts...)
	if len(fragments) == 0 {
		return nil, fmt.Errorf("no usable chunks after splitting")
	}
	p.logger.Debug("text split",
		"document_id", req.DocumentID,
		"fragments", len(fragments))

	// Run component keeps chunk IDs from consecutive ingestions distinct.
	run8 := uuid.NewString()[:8]
	extractedAt := time.Now().UTC()

	chunks := make([]knowledge.Chunk, 0, len(fragments))
	for i, fragment := range fragments {
		vec, err := p.embedder.Embed(ctx, fragment)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d of %d: %w", i+1, len(fragments), err)
		}
		chunks = append(chunks, knowledge.Chunk{
			ID:          knowledge.ChunkID(req.DocumentID, run8, i),
			CourseID:    req.CourseID,
			DocumentID:  req.DocumentID,
			Ordinal:     i,
			Text:        fragment,
			Embedding:   vec,
			SourceRef:   req.DocumentID,
			ExtractedAt: extractedAt,
		})
	}
	return chunks, nil
}

// fail records the failure reason on the document. A failure of the status
// write itself is only logged; the original pipeline error is what callers
// need to see.
func (p *Pipeline) fail(ctx context.Context, documentID string, cause error) {
	if err := p.store.SetDocumentFailed(ctx, documentID, cause.Error()); err != nil {
		p.logger.Error("recording ingestion failure",
			"document_id", documentID,
			"error", err)
	}
}
