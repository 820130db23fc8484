package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/campusmind/campusmind/db"
	"github.com/campusmind/campusmind/internal/answer"
	"github.com/campusmind/campusmind/internal/blob"
	"github.com/campusmind/campusmind/internal/chunk"
	"github.com/campusmind/campusmind/internal/config"
	"github.com/campusmind/campusmind/internal/database"
	"github.com/campusmind/campusmind/internal/extract"
	"github.com/campusmind/campusmind/internal/ingest"
	"github.com/campusmind/campusmind/internal/knowledge"
	"github.com/campusmind/campusmind/internal/observability"
	"github.com/campusmind/campusmind/internal/retrieve"
)

// Setup builds the application container.
// Migrations run before the pool opens, so the schema is current by the
// time the first query executes. GEMINI_API_KEY is read by the Genkit
// plugin from the environment.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	embedder := knowledge.NewGenkitEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel))
	store := knowledge.NewStore(pool, logger)

	a := &App{
		Config: cfg,
		Logger: logger,
		Genkit: g,
		Pool:   pool,
		Store:  store,
	}

	// Genkit spans around embedding and generation calls only leave the
	// process when a collector endpoint is configured.
	if cfg.Tracing.Enabled() {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			Environment: cfg.Tracing.Environment,
			ServiceName: cfg.Tracing.ServiceName,
		}, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("setting up trace export: %w", err)
		}
		a.traceShutdown = shutdown
	}

	// OCR is optional: without a processor, PDF extraction relies on the
	// embedded text layer.
	var ocr extract.StructuredExtractor
	if cfg.DocAI.Configured() {
		docai, err := extract.NewDocAIExtractor(ctx, cfg.DocAI.Project, cfg.DocAI.Location, cfg.DocAI.ProcessorID)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating documentai extractor: %w", err)
		}
		a.docai = docai
		ocr = docai
		logger.Info("documentai ocr enabled", "processor", cfg.DocAI.ProcessorID)
	} else {
		logger.Info("documentai not configured, pdf extraction uses text layer only")
	}

	if cfg.GCSBucket != "" {
		gcs, err := blob.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating gcs blob store: %w", err)
		}
		a.gcs = gcs
		a.Blobs = gcs
		logger.Info("blob store", "backend", "gcs", "bucket", cfg.GCSBucket)
	} else {
		dir, err := blob.NewDir(cfg.BlobDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating local blob store: %w", err)
		}
		a.Blobs = dir
		logger.Info("blob store", "backend", "dir", "path", cfg.BlobDir)
	}

	extractor := extract.New(ocr, logger)
	a.Pipeline = ingest.New(a.Blobs, extractor, embedder, store, logger,
		chunk.WithTargetSize(cfg.ChunkTargetSize),
		chunk.WithOverlap(cfg.ChunkOverlap),
	)

	a.Retriever = retrieve.New(store, embedder, logger)
	completer := answer.NewGenkitCompleter(g, cfg.ModelName)
	a.Synthesizer = answer.New(a.Retriever, completer, cfg.AnswerTopK, logger)

	logger.Info("application ready",
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel,
		"top_k", cfg.AnswerTopK)
	return a, nil
}
