// Package knowledge defines the document and chunk types shared across the
// ingestion and retrieval pipelines, plus the pgvector-backed store.
package knowledge

import (
	"fmt"
	"time"
)

const (
	// VectorDim is the embedding dimensionality of the chunks table.
	// Must match the vector(768) column in the migration and the
	// OutputDimensionality requested from the embedder.
	VectorDim = 768
)

// Document processing states. A document enters processing on upload and
// terminates in processed or failed; re-ingestion restarts the cycle.
const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// SourceDocument is an uploaded course material tracked through ingestion.
type SourceDocument struct {
	ID              string
	CourseID        string
	StorageLocation string
	MediaType       string
	Status          string
	ChunkCount      int
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Chunk is one embedded fragment of a source document.
// ID format: <documentID>:<run8>:<ordinal>, where run8 is the first 8 hex
// characters of the ingestion run UUID. The run component keeps IDs from
// consecutive ingestions of the same document distinct.
type Chunk struct {
	ID          string
	CourseID    string
	DocumentID  string
	Ordinal     int
	Text        string
	Embedding   []float32
	SourceRef   string
	ExtractedAt time.Time
}

// ScoredChunk pairs a chunk with its cosine similarity to a query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// ChunkID builds the canonical chunk identifier for a document, ingestion
// run and ordinal position.
func ChunkID(documentID, run8 string, ordinal int) string {
	return fmt.Sprintf("%s:%s:%d", documentID, run8, ordinal)
}
