// Package retrieve ranks a course's chunks against a question by cosine
// similarity.
//
// Course corpora are small enough that an exhaustive scan over the loaded
// chunks beats maintaining an approximate index; ranking is exact and the
// hot path is the embedding call, not the scan.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/campusmind/campusmind/internal/knowledge"
)

// ChunkLister loads all chunks of a course.
type ChunkLister interface {
	ListChunksByCourse(ctx context.Context, courseID string) ([]knowledge.Chunk, error)
}

// Embedder turns the question into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds the chunks most similar to a question.
type Retriever struct {
	chunks   ChunkLister
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Retriever.
func New(chunks ChunkLister, embedder Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{chunks: chunks, embedder: embedder, logger: logger}
}

// Retrieve returns up to topK chunks ranked by descending cosine similarity
// to the question. A course with no chunks yields an empty result, not an
// error. Chunks with missing or mismatched embeddings are skipped.
//
// The query embedding and the chunk load are independent, so they run
// concurrently.
func (r *Retriever) Retrieve(ctx context.Context, courseID, question string, topK int) ([]knowledge.ScoredChunk, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	var (
		query  []float32
		chunks []knowledge.Chunk
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		query, err = r.embedder.Embed(gctx, question)
		if err != nil {
			return fmt.Errorf("embedding question: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		chunks, err = r.chunks.ListChunksByCourse(gctx, courseID)
		if err != nil {
			return fmt.Errorf("loading course chunks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		r.logger.Debug("course has no chunks", "course_id", courseID)
		return nil, nil
	}

	scored := make([]knowledge.ScoredChunk, 0, len(chunks))
	skipped := 0
	for _, c := range chunks {
		if len(c.Embedding) != len(query) {
			skipped++
			continue
		}
		scored = append(scored, knowledge.ScoredChunk{
			Chunk: c,
			Score: cosineSimilarity(query, c.Embedding),
		})
	}
	if skipped > 0 {
		r.logger.Warn("skipped chunks with unusable embeddings",
			"course_id", courseID,
			"skipped", skipped)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors of
// equal length. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
