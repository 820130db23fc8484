package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// pdfTextLayer reads the embedded text layer of a PDF.
// Scanned PDFs without a text layer yield little or no text here; the
// caller's minimum-length check catches that case.
func pdfTextLayer(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("buffering pdf text: %w", err)
	}
	return buf.String(), nil
}
