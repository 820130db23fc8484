package ingest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/campusmind/internal/chunk"
	"github.com/campusmind/campusmind/internal/knowledge"
	"github.com/campusmind/campusmind/internal/log"
)

type fakeBlobs struct {
	data map[string][]byte
	err  error
}

func (f *fakeBlobs) Download(_ context.Context, location string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[location]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return data, nil
}

// passthroughExtractor returns the bytes unchanged.
type passthroughExtractor struct {
	err error
}

func (p *passthroughExtractor) Text(_ context.Context, data []byte, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return string(data), nil
}

// countingEmbedder returns a constant vector and can fail at a chosen call.
type countingEmbedder struct {
	calls  int
	failAt int // 0 = never fail
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	c.calls++
	if c.failAt > 0 && c.calls >= c.failAt {
		return nil, errors.New("embedder quota exceeded")
	}
	return make([]float32, knowledge.VectorDim), nil
}

// recordingStore captures what the pipeline persisted.
type recordingStore struct {
	replaced   map[string][]knowledge.Chunk
	failed     map[string]string
	replaceErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		replaced: make(map[string][]knowledge.Chunk),
		failed:   make(map[string]string),
	}
}

func (r *recordingStore) ReplaceChunks(_ context.Context, documentID string, chunks []knowledge.Chunk) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.replaced[documentID] = chunks
	return nil
}

func (r *recordingStore) SetDocumentFailed(_ context.Context, id, reason string) error {
	r.failed[id] = reason
	return nil
}

func testRequest() Request {
	return Request{
		CourseID:        "bio-101",
		DocumentID:      "doc-1",
		StorageLocation: "bio-101/doc-1.txt",
		MediaType:       "text/plain",
	}
}

func testPipeline(blobs *fakeBlobs, ex *passthroughExtractor, em *countingEmbedder, store *recordingStore) *Pipeline {
	return New(blobs, ex, em, store, log.NewNop(),
		chunk.WithTargetSize(500), chunk.WithOverlap(50))
}

func TestRun_Success(t *testing.T) {
	text := strings.Repeat("a", 1200)
	blobs := &fakeBlobs{data: map[string][]byte{"bio-101/doc-1.txt": []byte(text)}}
	embedder := &countingEmbedder{}
	store := newRecordingStore()

	p := testPipeline(blobs, &passthroughExtractor{}, embedder, store)
	err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	chunks := store.replaced["doc-1"]
	require.NotEmpty(t, chunks)
	assert.Equal(t, embedder.calls, len(chunks))
	assert.Empty(t, store.failed)

	for i, c := range chunks {
		assert.Equal(t, "bio-101", c.CourseID)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, i, c.Ordinal)
		assert.Len(t, c.Embedding, knowledge.VectorDim)
		assert.True(t, strings.HasPrefix(c.ID, "doc-1:"), "chunk ID %q missing document prefix", c.ID)
	}
}

func TestRun_EmbeddingFailureAbortsBeforePersist(t *testing.T) {
	text := strings.Repeat("b", 2000)
	blobs := &fakeBlobs{data: map[string][]byte{"bio-101/doc-1.txt": []byte(text)}}
	embedder := &countingEmbedder{failAt: 2}
	store := newRecordingStore()

	p := testPipeline(blobs, &passthroughExtractor{}, embedder, store)
	err := p.Run(context.Background(), testRequest())
	require.Error(t, err)

	// Nothing persisted, document marked failed with the embedding reason.
	assert.Empty(t, store.replaced)
	assert.Contains(t, store.failed["doc-1"], "embedding chunk")
}

func TestRun_BlobFailure(t *testing.T) {
	blobs := &fakeBlobs{err: errors.New("bucket unreachable")}
	store := newRecordingStore()

	p := testPipeline(blobs, &passthroughExtractor{}, &countingEmbedder{}, store)
	err := p.Run(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, store.failed["doc-1"], "downloading document")
}

func TestRun_ExtractionFailure(t *testing.T) {
	blobs := &fakeBlobs{data: map[string][]byte{"bio-101/doc-1.txt": []byte("x")}}
	store := newRecordingStore()
	embedder := &countingEmbedder{}

	p := testPipeline(blobs, &passthroughExtractor{err: errors.New("text too short")}, embedder, store)
	err := p.Run(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, store.failed["doc-1"], "extracting text")
	assert.Zero(t, embedder.calls)
}

func TestRun_CommitFailureMarksDocumentFailed(t *testing.T) {
	text := strings.Repeat("c", 600)
	blobs := &fakeBlobs{data: map[string][]byte{"bio-101/doc-1.txt": []byte(text)}}
	store := newRecordingStore()
	store.replaceErr = errors.New("connection reset")

	p := testPipeline(blobs, &passthroughExtractor{}, &countingEmbedder{}, store)
	err := p.Run(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, store.failed["doc-1"], "connection reset")
}

func TestRun_LogsStageProgress(t *testing.T) {
	text := strings.Repeat("e", 1200)
	blobs := &fakeBlobs{data: map[string][]byte{"bio-101/doc-1.txt": []byte(text)}}
	store := newRecordingStore()

	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelDebug})
	p := New(blobs, &passthroughExtractor{}, &countingEmbedder{}, store, logger,
		chunk.WithTargetSize(500), chunk.WithOverlap(50))

	require.NoError(t, p.Run(context.Background(), testRequest()))

	// Every stage reports its volume under the document id.
	out := buf.String()
	assert.Contains(t, out, "document downloaded")
	assert.Contains(t, out, "bytes=1200")
	assert.Contains(t, out, "text extracted")
	assert.Contains(t, out, "chars=1200")
	assert.Contains(t, out, "text split")
	assert.Contains(t, out, "fragments=3")
	assert.Contains(t, out, "document_id=doc-1")
}

func TestRun_DistinctRunsGetDistinctChunkIDs(t *testing.T) {
	text := strings.Repeat("d", 600)
	blobs := &fakeBlobs{data: map[string][]byte{"bio-101/doc-1.txt": []byte(text)}}
	store := newRecordingStore()

	p := testPipeline(blobs, &passthroughExtractor{}, &countingEmbedder{}, store)
	require.NoError(t, p.Run(context.Background(), testRequest()))
	first := store.replaced["doc-1"][0].ID

	require.NoError(t, p.Run(context.Background(), testRequest()))
	second := store.replaced["doc-1"][0].ID

	assert.NotEqual(t, first, second)
}
