package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/campusmind/internal/extract"
	"github.com/campusmind/campusmind/internal/ingest"
	"github.com/campusmind/campusmind/internal/knowledge"
	"github.com/campusmind/campusmind/internal/log"
)

type stubUploader struct {
	err      error
	lastKey  string
	lastData []byte
}

func (s *stubUploader) Upload(_ context.Context, key string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.lastKey = key
	s.lastData = data
	return key, nil
}

type stubDocStore struct {
	created   []knowledge.SourceDocument
	docs      map[string]knowledge.SourceDocument
	byCourse  map[string][]knowledge.SourceDocument
	createErr error
}

func newStubDocStore() *stubDocStore {
	return &stubDocStore{
		docs:     make(map[string]knowledge.SourceDocument),
		byCourse: make(map[string][]knowledge.SourceDocument),
	}
}

func (s *stubDocStore) CreateDocument(_ context.Context, doc knowledge.SourceDocument) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, doc)
	return nil
}

func (s *stubDocStore) Document(_ context.Context, id string) (knowledge.SourceDocument, error) {
	doc, ok := s.docs[id]
	if !ok {
		return knowledge.SourceDocument{}, knowledge.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *stubDocStore) ListDocumentsByCourse(_ context.Context, courseID string) ([]knowledge.SourceDocument, error) {
	return s.byCourse[courseID], nil
}

type stubStarter struct {
	requests []ingest.Request
}

func (s *stubStarter) Start(req ingest.Request) {
	s.requests = append(s.requests, req)
}

func documentTestMux(blobs *stubUploader, store *stubDocStore, starter *stubStarter) *http.ServeMux {
	mux := http.NewServeMux()
	NewDocumentHandler(blobs, store, starter, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload_AcceptedAndIngestionStarted(t *testing.T) {
	blobs := &stubUploader{}
	store := newStubDocStore()
	starter := &stubStarter{}
	mux := documentTestMux(blobs, store, starter)

	body, contentType := multipartBody(t, "syllabus.pdf", []byte("%PDF-1.7 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/courses/bio-101/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp documentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "bio-101", resp.CourseID)
	assert.Equal(t, knowledge.StatusProcessing, resp.Status)
	assert.Equal(t, extract.MediaTypePDF, resp.MediaType)

	require.Len(t, store.created, 1)
	require.Len(t, starter.requests, 1)
	assert.Equal(t, store.created[0].ID, starter.requests[0].DocumentID)
	assert.Equal(t, blobs.lastKey, starter.requests[0].StorageLocation)
}

func TestUpload_MissingFilePart(t *testing.T) {
	mux := documentTestMux(&stubUploader{}, newStubDocStore(), &stubStarter{})

	req := httptest.NewRequest(http.MethodPost, "/api/courses/bio-101/documents", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_EmptyFile(t *testing.T) {
	mux := documentTestMux(&stubUploader{}, newStubDocStore(), &stubStarter{})

	body, contentType := multipartBody(t, "empty.txt", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/courses/bio-101/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_BlobFailure(t *testing.T) {
	blobs := &stubUploader{err: errors.New("bucket unreachable")}
	starter := &stubStarter{}
	mux := documentTestMux(blobs, newStubDocStore(), starter)

	body, contentType := multipartBody(t, "notes.txt", []byte("some notes"))
	req := httptest.NewRequest(http.MethodPost, "/api/courses/bio-101/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, starter.requests, "ingestion must not start after a failed upload")
}

func TestStatus_Found(t *testing.T) {
	store := newStubDocStore()
	store.docs["doc-1"] = knowledge.SourceDocument{
		ID:         "doc-1",
		CourseID:   "bio-101",
		Status:     knowledge.StatusProcessed,
		ChunkCount: 12,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	mux := documentTestMux(&stubUploader{}, store, &stubStarter{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp documentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, knowledge.StatusProcessed, resp.Status)
	assert.Equal(t, 12, resp.ChunkCount)
}

func TestStatus_NotFound(t *testing.T) {
	mux := documentTestMux(&stubUploader{}, newStubDocStore(), &stubStarter{})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList_ReturnsCourseDocuments(t *testing.T) {
	store := newStubDocStore()
	store.byCourse["bio-101"] = []knowledge.SourceDocument{
		{ID: "doc-2", CourseID: "bio-101", Status: knowledge.StatusProcessed},
		{ID: "doc-1", CourseID: "bio-101", Status: knowledge.StatusFailed, Error: "text too short"},
	}
	mux := documentTestMux(&stubUploader{}, store, &stubStarter{})

	req := httptest.NewRequest(http.MethodGet, "/api/courses/bio-101/documents", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Documents []documentResponse `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "text too short", resp.Documents[1].Error)
}

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		want     string
	}{
		{"pdf by extension", "slides.PDF", "application/octet-stream", extract.MediaTypePDF},
		{"pptx by extension", "deck.pptx", "", extract.MediaTypePPTX},
		{"declared wins without extension", "notes", "text/markdown; charset=utf-8", "text/markdown"},
		{"unknown falls back", "mystery", "", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectMediaType(tt.filename, tt.declared))
		})
	}
}
