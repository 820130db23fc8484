package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/campusmind/internal/knowledge"
	"github.com/campusmind/campusmind/internal/log"
)

type stubRetriever struct {
	chunks []knowledge.ScoredChunk
	err    error
}

func (s *stubRetriever) Retrieve(_ context.Context, _, _ string, _ int) ([]knowledge.ScoredChunk, error) {
	return s.chunks, s.err
}

// stubCompleter records the prompt it received.
type stubCompleter struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func scoredChunk(text, sourceRef string) knowledge.ScoredChunk {
	return knowledge.ScoredChunk{Chunk: knowledge.Chunk{Text: text, SourceRef: sourceRef}}
}

func TestAnswer_GroundedResponse(t *testing.T) {
	retriever := &stubRetriever{chunks: []knowledge.ScoredChunk{
		scoredChunk("Osmosis is the diffusion of water across a membrane.", "doc-1"),
		scoredChunk("Water moves toward higher solute concentration.", "doc-2"),
	}}
	completer := &stubCompleter{reply: "Osmosis is water diffusion across a semipermeable membrane."}

	s := New(retriever, completer, 4, log.NewNop())
	result := s.Answer(context.Background(), "bio-101", "What is osmosis?")

	assert.Equal(t, completer.reply, result.Text)
	assert.Equal(t, []string{"doc-1", "doc-2"}, result.SourceRefs)

	// Retrieved material and the question both appear in the prompt.
	assert.Contains(t, completer.prompt, "diffusion of water")
	assert.Contains(t, completer.prompt, "What is osmosis?")
	assert.Contains(t, completer.prompt, contextSeparator)
}

func TestAnswer_EmptyRetrievalStatedInPrompt(t *testing.T) {
	completer := &stubCompleter{reply: "The materials do not cover this, but generally speaking..."}

	s := New(&stubRetriever{}, completer, 4, log.NewNop())
	result := s.Answer(context.Background(), "bio-101", "What about quantum tunneling?")

	assert.Contains(t, completer.prompt, noMaterials)
	assert.Empty(t, result.SourceRefs)
	assert.Equal(t, completer.reply, result.Text)
}

func TestAnswer_RetrieverFailureYieldsApology(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("database down")}
	completer := &stubCompleter{reply: "should not be used"}

	s := New(retriever, completer, 4, log.NewNop())
	result := s.Answer(context.Background(), "bio-101", "q")

	assert.Equal(t, Apology, result.Text)
	assert.Empty(t, result.SourceRefs)
	assert.Empty(t, completer.prompt, "completer must not run after retrieval failure")
}

func TestAnswer_CompleterFailureYieldsApology(t *testing.T) {
	completer := &stubCompleter{err: errors.New("model overloaded")}

	s := New(&stubRetriever{}, completer, 4, log.NewNop())
	result := s.Answer(context.Background(), "bio-101", "q")

	assert.Equal(t, Apology, result.Text)
	assert.Empty(t, result.SourceRefs)
}

func TestAnswer_EmptyGenerationYieldsApology(t *testing.T) {
	completer := &stubCompleter{reply: "   \n"}

	s := New(&stubRetriever{}, completer, 4, log.NewNop())
	result := s.Answer(context.Background(), "bio-101", "q")

	assert.Equal(t, Apology, result.Text)
}

func TestAnswer_SourceRefsDeduplicated(t *testing.T) {
	retriever := &stubRetriever{chunks: []knowledge.ScoredChunk{
		scoredChunk("first chunk", "doc-1"),
		scoredChunk("second chunk", "doc-1"),
		scoredChunk("third chunk", "doc-2"),
	}}
	completer := &stubCompleter{reply: "answer"}

	s := New(retriever, completer, 4, log.NewNop())
	result := s.Answer(context.Background(), "bio-101", "q")

	assert.Equal(t, []string{"doc-1", "doc-2"}, result.SourceRefs)
}

func TestBuildPrompt_ChunksInRankOrder(t *testing.T) {
	prompt := buildPrompt("q", []knowledge.ScoredChunk{
		scoredChunk("most relevant", "a"),
		scoredChunk("less relevant", "b"),
	})

	first := strings.Index(prompt, "most relevant")
	second := strings.Index(prompt, "less relevant")
	require.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, second)
}
