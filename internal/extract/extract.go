// Package extract turns uploaded document bytes into plain text.
//
// PDFs go through a two-stage chain: a structured OCR processor first, then
// the embedded text layer when OCR is unavailable or fails. Slide decks are
// unpacked from their OOXML container. Everything else is treated as UTF-8
// text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Media types the extractor understands beyond plain text.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// MinTextChars is the minimum trimmed length for an extraction to count as
// successful. Anything shorter is indistinguishable from a failed parse.
const MinTextChars = 50

// ErrTooShort indicates extraction produced no usable text.
var ErrTooShort = errors.New("extracted text too short")

// StructuredExtractor is an OCR-capable processor for scanned PDFs.
// Implementations return the full document text or an error; the caller
// decides whether to fall back to another extraction method.
type StructuredExtractor interface {
	ExtractPDF(ctx context.Context, data []byte) (string, error)
}

// Extractor dispatches on media type and normalises the result.
type Extractor struct {
	ocr    StructuredExtractor // nil when no OCR processor is configured
	logger *slog.Logger
}

// New creates an Extractor. ocr may be nil; PDF extraction then relies on
// the embedded text layer alone.
func New(ocr StructuredExtractor, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ocr: ocr, logger: logger}
}

// Text extracts plain text from document bytes.
// Returns ErrTooShort when the trimmed result is below MinTextChars.
func (e *Extractor) Text(ctx context.Context, data []byte, mediaType string) (string, error) {
	var (
		text string
		err  error
	)

	switch mediaType {
	case MediaTypePDF:
		text, err = e.pdfText(ctx, data)
	case MediaTypePPTX:
		text, err = pptxText(data)
	default:
		text = strings.ToValidUTF8(string(data), "")
	}
	if err != nil {
		return "", err
	}

	if len(strings.TrimSpace(text)) < MinTextChars {
		return "", fmt.Errorf("%w: %d usable characters", ErrTooShort, len(strings.TrimSpace(text)))
	}
	return text, nil
}

// pdfText runs the PDF extraction chain: OCR first when configured, the
// embedded text layer as fallback. An OCR failure is logged and absorbed;
// only the fallback's failure surfaces to the caller.
func (e *Extractor) pdfText(ctx context.Context, data []byte) (string, error) {
	if e.ocr != nil {
		text, err := e.ocr.ExtractPDF(ctx, data)
		if err == nil {
			e.logger.Debug("pdf extracted via ocr processor", "bytes", len(data))
			return text, nil
		}
		e.logger.Warn("ocr extraction failed, falling back to text layer", "error", err)
	}

	text, err := pdfTextLayer(data)
	if err != nil {
		return "", fmt.Errorf("pdf text layer extraction: %w", err)
	}
	e.logger.Debug("pdf extracted via text layer", "bytes", len(data))
	return text, nil
}
