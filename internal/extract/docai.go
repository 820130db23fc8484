package extract

import (
	"context"
	"fmt"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// processTimeout bounds a single synchronous Document AI call.
const processTimeout = 3 * time.Minute

// DocAIExtractor runs PDFs through a Google Document AI OCR processor.
// It handles scanned documents that have no embedded text layer.
type DocAIExtractor struct {
	client    *documentai.DocumentProcessorClient
	processor string
}

// NewDocAIExtractor creates a Document AI client for the given processor.
// The client must be created against the processor's regional endpoint.
func NewDocAIExtractor(ctx context.Context, project, location, processorID string) (*DocAIExtractor, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("creating documentai client: %w", err)
	}

	return &DocAIExtractor{
		client:    client,
		processor: fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID),
	}, nil
}

// ExtractPDF processes raw PDF bytes synchronously and returns the
// recognised text.
func (d *DocAIExtractor) ExtractPDF(ctx context.Context, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: MediaTypePDF,
			},
		},
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return "", fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp.GetDocument() == nil {
		return "", fmt.Errorf("documentai returned no document")
	}
	return resp.GetDocument().GetText(), nil
}

// Close releases the underlying gRPC connection.
func (d *DocAIExtractor) Close() error {
	return d.client.Close()
}
