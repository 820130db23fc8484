package knowledge

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/campusmind/db"
	"github.com/campusmind/campusmind/internal/database"
	"github.com/campusmind/campusmind/internal/log"
)

// setupTestStore connects to the database named by TEST_DATABASE_URL and
// runs migrations. Tests are skipped when the variable is unset.
func setupTestStore(t *testing.T, ctx context.Context) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set - skipping integration test")
	}

	require.NoError(t, db.Migrate(dbURL))

	pool, err := database.Open(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Start from a clean slate.
	_, err = pool.Exec(ctx, `TRUNCATE chunks, source_documents`)
	require.NoError(t, err)

	return NewStore(pool, log.NewNop())
}

func testDoc(id, courseID string) SourceDocument {
	return SourceDocument{
		ID:              id,
		CourseID:        courseID,
		StorageLocation: courseID + "/" + id + ".txt",
		MediaType:       "text/plain",
	}
}

func testChunks(documentID, courseID, run8 string, n int) []Chunk {
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			ID:          ChunkID(documentID, run8, i),
			CourseID:    courseID,
			DocumentID:  documentID,
			Ordinal:     i,
			Text:        "chunk text",
			Embedding:   make([]float32, VectorDim),
			SourceRef:   documentID,
			ExtractedAt: time.Now().UTC(),
		}
	}
	return chunks
}

func TestStore_DocumentLifecycle_Integration(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, ctx)

	require.NoError(t, store.CreateDocument(ctx, testDoc("doc-1", "bio-101")))

	doc, err := store.Document(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, doc.Status)
	assert.Zero(t, doc.ChunkCount)

	require.NoError(t, store.ReplaceChunks(ctx, "doc-1", testChunks("doc-1", "bio-101", "run00001", 3)))

	doc, err = store.Document(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)

	chunks, err := store.ListChunksByCourse(ctx, "bio-101")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Embedding, VectorDim)
}

func TestStore_ReplaceChunks_SwapsPreviousRun_Integration(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, ctx)

	require.NoError(t, store.CreateDocument(ctx, testDoc("doc-1", "bio-101")))
	require.NoError(t, store.ReplaceChunks(ctx, "doc-1", testChunks("doc-1", "bio-101", "run00001", 4)))
	require.NoError(t, store.ReplaceChunks(ctx, "doc-1", testChunks("doc-1", "bio-101", "run00002", 2)))

	chunks, err := store.ListChunksByCourse(ctx, "bio-101")
	require.NoError(t, err)
	require.Len(t, chunks, 2, "previous run's chunks must be gone")
	for _, c := range chunks {
		assert.Contains(t, c.ID, "run00002")
	}
}

func TestStore_SetDocumentFailed_Integration(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, ctx)

	require.NoError(t, store.CreateDocument(ctx, testDoc("doc-1", "bio-101")))
	require.NoError(t, store.SetDocumentFailed(ctx, "doc-1", "extracted text too short"))

	doc, err := store.Document(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, doc.Status)
	assert.Equal(t, "extracted text too short", doc.Error)
}

func TestStore_Document_NotFound_Integration(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, ctx)

	_, err := store.Document(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestStore_ReingestionResetsFailure_Integration(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, ctx)

	require.NoError(t, store.CreateDocument(ctx, testDoc("doc-1", "bio-101")))
	require.NoError(t, store.SetDocumentFailed(ctx, "doc-1", "embedder quota exceeded"))

	// Re-upload resets the record to processing with a cleared error.
	require.NoError(t, store.CreateDocument(ctx, testDoc("doc-1", "bio-101")))

	doc, err := store.Document(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, doc.Status)
	assert.Empty(t, doc.Error)
}
