// Package answer turns a question plus retrieved course material into a
// grounded response.
//
// The interactive path never surfaces an internal error to the student: any
// retrieval or generation failure collapses into a fixed apology, and the
// failure is logged for operators instead.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campusmind/campusmind/internal/knowledge"
)

// Apology is the fixed response returned whenever an answer cannot be
// produced, for any reason.
const Apology = "I'm sorry, I couldn't find an answer to that in the course materials. Please try rephrasing your question or check with your instructor."

// noMaterials marks an empty retrieval in the prompt so the model answers
// from general knowledge while admitting the gap.
const noMaterials = "No course materials matched this question."

// contextSeparator joins retrieved chunks in the prompt.
const contextSeparator = "\n\n---\n\n"

// Retriever supplies the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, courseID, question string, topK int) ([]knowledge.ScoredChunk, error)
}

// Completer generates text from a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result is a synthesized answer with the documents it drew from.
type Result struct {
	Text       string   `json:"text"`
	SourceRefs []string `json:"source_refs,omitempty"`
}

// Synthesizer produces grounded answers.
type Synthesizer struct {
	retriever Retriever
	completer Completer
	topK      int
	logger    *slog.Logger
}

// New creates a Synthesizer retrieving topK chunks per question.
func New(retriever Retriever, completer Completer, topK int, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		retriever: retriever,
		completer: completer,
		topK:      topK,
		logger:    logger,
	}
}

// Answer responds to a question about a course.
// The returned Result always carries usable text: on any internal failure
// it is the fixed apology with no source refs, and the cause is logged.
func (s *Synthesizer) Answer(ctx context.Context, courseID, question string) Result {
	scored, err := s.retriever.Retrieve(ctx, courseID, question, s.topK)
	if err != nil {
		s.logger.Error("retrieval failed",
			"course_id", courseID,
			"error", err)
		return Result{Text: Apology}
	}

	prompt := buildPrompt(question, scored)
	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error("answer generation failed",
			"course_id", courseID,
			"error", err)
		return Result{Text: Apology}
	}
	if strings.TrimSpace(text) == "" {
		s.logger.Error("answer generation returned empty text", "course_id", courseID)
		return Result{Text: Apology}
	}

	return Result{
		Text:       text,
		SourceRefs: sourceRefs(scored),
	}
}

// buildPrompt assembles the grounding prompt. Retrieved chunks appear in
// rank order; an empty retrieval is stated explicitly rather than leaving
// the context section blank.
func buildPrompt(question string, scored []knowledge.ScoredChunk) string {
	var contextBlock string
	if len(scored) == 0 {
		contextBlock = noMaterials
	} else {
		parts := make([]string, len(scored))
		for i, sc := range scored {
			parts[i] = sc.Chunk.Text
		}
		contextBlock = strings.Join(parts, contextSeparator)
	}

	return fmt.Sprintf(`You are a helpful teaching assistant for a university course.
Answer the student's question using the course materials below. If the
materials do not cover the question, say so honestly before answering from
general knowledge.

Course materials:
%s

Question: %s`, contextBlock, question)
}

// sourceRefs returns the distinct source references of the used chunks,
// preserving rank order.
func sourceRefs(scored []knowledge.ScoredChunk) []string {
	seen := make(map[string]bool, len(scored))
	var refs []string
	for _, sc := range scored {
		ref := sc.Chunk.SourceRef
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}
