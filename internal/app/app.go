// Package app assembles the application components: database, AI models,
// blob storage, and the ingestion and answering pipelines.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusmind/campusmind/internal/answer"
	"github.com/campusmind/campusmind/internal/blob"
	"github.com/campusmind/campusmind/internal/config"
	"github.com/campusmind/campusmind/internal/extract"
	"github.com/campusmind/campusmind/internal/ingest"
	"github.com/campusmind/campusmind/internal/knowledge"
	"github.com/campusmind/campusmind/internal/retrieve"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit      *genkit.Genkit
	Pool        *pgxpool.Pool
	Store       *knowledge.Store
	Blobs       blob.Store
	Pipeline    *ingest.Pipeline
	Retriever   *retrieve.Retriever
	Synthesizer *answer.Synthesizer

	docai         *extract.DocAIExtractor
	gcs           *blob.GCS
	traceShutdown func(context.Context) error
}

// traceFlushTimeout bounds the final span flush during shutdown.
const traceFlushTimeout = 5 * time.Second

// Close releases all resources in reverse dependency order.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
		if err := a.traceShutdown(ctx); err != nil {
			a.Logger.Warn("flushing traces", "error", err)
		}
		cancel()
	}
	if a.docai != nil {
		if err := a.docai.Close(); err != nil {
			a.Logger.Warn("closing documentai client", "error", err)
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.Logger.Warn("closing storage client", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
