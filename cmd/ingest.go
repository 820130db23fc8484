package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/campusmind/campusmind/internal/app"
	"github.com/campusmind/campusmind/internal/config"
	"github.com/campusmind/campusmind/internal/extract"
	"github.com/campusmind/campusmind/internal/ingest"
	"github.com/campusmind/campusmind/internal/knowledge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <course-id> <file>",
	Short: "Ingest a local document into a course",
	Long: `Uploads a local file to the blob store and runs the ingestion pipeline
synchronously: extract, chunk, embed, index. The command exits non-zero if
any stage fails.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(courseID, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	mediaType := mediaTypeForFile(path)
	documentID := uuid.NewString()
	key := fmt.Sprintf("%s/%s%s", courseID, documentID, filepath.Ext(path))

	location, err := a.Blobs.Upload(ctx, key, data)
	if err != nil {
		return fmt.Errorf("uploading document: %w", err)
	}

	doc := knowledge.SourceDocument{
		ID:              documentID,
		CourseID:        courseID,
		StorageLocation: location,
		MediaType:       mediaType,
		Status:          knowledge.StatusProcessing,
	}
	if err := a.Store.CreateDocument(ctx, doc); err != nil {
		return fmt.Errorf("registering document: %w", err)
	}

	if err := a.Pipeline.Run(ctx, ingest.Request{
		CourseID:        courseID,
		DocumentID:      documentID,
		StorageLocation: location,
		MediaType:       mediaType,
	}); err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	final, err := a.Store.Document(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading final status: %w", err)
	}
	fmt.Printf("ingested %s: document %s, %d chunks\n", path, documentID, final.ChunkCount)
	return nil
}

func mediaTypeForFile(path string) string {
	switch filepath.Ext(path) {
	case ".pdf", ".PDF":
		return extract.MediaTypePDF
	case ".pptx", ".PPTX":
		return extract.MediaTypePPTX
	default:
		return "text/plain"
	}
}
