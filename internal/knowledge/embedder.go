package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// Embedder turns text into a fixed-dimensionality vector.
// Implementations must return exactly VectorDim values or an error;
// callers never receive a partial or zero-filled vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder interface.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// NewGenkitEmbedder wraps a Genkit embedder.
func NewGenkitEmbedder(embedder ai.Embedder) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder}
}

// Embed generates an embedding for a single text.
// Empty or whitespace-only input is rejected up front so a bad caller
// surfaces as an error instead of a meaningless vector.
func (g *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: empty text")
	}

	req := &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
		// gemini-embedding-001 defaults to 3072 dimensions; the chunks
		// table stores vector(768).
		Options: &genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr[int32](VectorDim),
		},
	}

	resp, err := g.embedder.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != VectorDim {
		return nil, fmt.Errorf("embedder returned %d dimensions, want %d", len(vec), VectorDim)
	}

	return vec, nil
}
