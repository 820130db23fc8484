package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/campusmind/campusmind/internal/answer"
	"github.com/campusmind/campusmind/internal/log"
)

// maxQuestionBytes caps a question body.
const maxQuestionBytes = 16 << 10 // 16 KiB

// Answerer produces a grounded answer for a course question.
type Answerer interface {
	Answer(ctx context.Context, courseID, question string) answer.Result
}

// AskHandler handles the question answering endpoint.
type AskHandler struct {
	answerer Answerer
	logger   log.Logger
}

// NewAskHandler creates an ask handler.
func NewAskHandler(answerer Answerer, logger log.Logger) *AskHandler {
	return &AskHandler{answerer: answerer, logger: logger}
}

// RegisterRoutes registers the ask route on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/courses/{courseID}/ask", h.ask)
}

type askRequest struct {
	Question string `json:"question"`
}

// ask answers a question from the course materials.
// Internal failures never surface here: the synthesizer absorbs them into
// its fixed apology, so this endpoint only rejects malformed requests.
func (h *AskHandler) ask(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseID")
	if strings.TrimSpace(courseID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_course", "course ID is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBytes)
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be JSON with a 'question' field")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question must not be empty")
		return
	}

	result := h.answerer.Answer(r.Context(), courseID, req.Question)
	writeJSON(w, http.StatusOK, result)
}
