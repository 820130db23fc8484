package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/campusmind/campusmind/internal/extract"
	"github.com/campusmind/campusmind/internal/ingest"
	"github.com/campusmind/campusmind/internal/knowledge"
	"github.com/campusmind/campusmind/internal/log"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 50 << 20 // 50 MiB

// Uploader stores raw document bytes and returns their storage location.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// DocumentStore is the subset of the knowledge store the handler needs.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc knowledge.SourceDocument) error
	Document(ctx context.Context, id string) (knowledge.SourceDocument, error)
	ListDocumentsByCourse(ctx context.Context, courseID string) ([]knowledge.SourceDocument, error)
}

// IngestStarter launches background ingestion for an uploaded document.
type IngestStarter interface {
	Start(req ingest.Request)
}

// DocumentHandler handles document upload, listing, and status endpoints.
type DocumentHandler struct {
	blobs    Uploader
	store    DocumentStore
	pipeline IngestStarter
	logger   log.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(blobs Uploader, store DocumentStore, pipeline IngestStarter, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{
		blobs:    blobs,
		store:    store,
		pipeline: pipeline,
		logger:   logger,
	}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/courses/{courseID}/documents", h.upload)
	mux.HandleFunc("GET /api/courses/{courseID}/documents", h.list)
	mux.HandleFunc("GET /api/documents/{documentID}", h.status)
}

// documentResponse is the JSON shape for a document.
type documentResponse struct {
	ID         string `json:"id"`
	CourseID   string `json:"course_id"`
	MediaType  string `json:"media_type"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toDocumentResponse(doc knowledge.SourceDocument) documentResponse {
	return documentResponse{
		ID:         doc.ID,
		CourseID:   doc.CourseID,
		MediaType:  doc.MediaType,
		Status:     doc.Status,
		ChunkCount: doc.ChunkCount,
		Error:      doc.Error,
		CreatedAt:  doc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  doc.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// upload accepts a multipart document upload and starts ingestion.
// The response is 202 Accepted with the document in the processing state;
// clients poll GET /api/documents/{id} for the outcome.
func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseID")
	if strings.TrimSpace(courseID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_course", "course ID is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("upload exceeds %d bytes", maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_upload", "multipart form must contain a 'file' part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "reading uploaded file failed")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_upload", "uploaded file is empty")
		return
	}

	mediaType := detectMediaType(header.Filename, header.Header.Get("Content-Type"))
	documentID := uuid.NewString()

	key := fmt.Sprintf("%s/%s%s", courseID, documentID, filepath.Ext(header.Filename))
	location, err := h.blobs.Upload(r.Context(), key, data)
	if err != nil {
		h.logger.Error("blob upload failed", "course_id", courseID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failed", "storing the document failed")
		return
	}

	doc := knowledge.SourceDocument{
		ID:              documentID,
		CourseID:        courseID,
		StorageLocation: location,
		MediaType:       mediaType,
		Status:          knowledge.StatusProcessing,
	}
	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		h.logger.Error("creating document record failed", "document_id", documentID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failed", "recording the document failed")
		return
	}

	h.pipeline.Start(ingest.Request{
		CourseID:        courseID,
		DocumentID:      documentID,
		StorageLocation: location,
		MediaType:       mediaType,
	})

	h.logger.Info("document accepted",
		"document_id", documentID,
		"course_id", courseID,
		"media_type", mediaType,
		"bytes", len(data))
	writeJSON(w, http.StatusAccepted, toDocumentResponse(doc))
}

// list returns a course's documents, newest first.
func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseID")

	docs, err := h.store.ListDocumentsByCourse(r.Context(), courseID)
	if err != nil {
		h.logger.Error("listing documents failed", "course_id", courseID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failed", "listing documents failed")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// status returns the ingestion state of one document.
func (h *DocumentHandler) status(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("documentID")

	doc, err := h.store.Document(r.Context(), documentID)
	if errors.Is(err, knowledge.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "no such document")
		return
	}
	if err != nil {
		h.logger.Error("loading document failed", "document_id", documentID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_failed", "loading the document failed")
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// detectMediaType resolves the media type from the filename extension,
// falling back to the client-declared content type. Extensions win because
// browsers often send application/octet-stream for anything unusual.
func detectMediaType(filename, declared string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extract.MediaTypePDF
	case ".pptx":
		return extract.MediaTypePPTX
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}
