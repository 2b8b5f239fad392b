// Package app provides application initialization and dependency injection.
//
// App is the container that wires the support pipeline: configuration,
// tracing, Genkit, the embedder, the index backend, the retriever with its
// keyword fallback corpus, the generator variants, the guardrail engine and
// the orchestrator. Call Setup to construct and Close to release.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pomoc-ai/pomoc/internal/config"
	"github.com/pomoc-ai/pomoc/internal/embed"
	"github.com/pomoc-ai/pomoc/internal/index"
	"github.com/pomoc-ai/pomoc/internal/log"
	"github.com/pomoc-ai/pomoc/internal/pipeline"
	"github.com/pomoc-ai/pomoc/internal/retrieve"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder *embed.Genkit

	// Flat is set for the memory backend, DBPool for the postgres backend.
	Flat   *index.Flat
	DBPool *pgxpool.Pool

	Retriever *retrieve.Retriever
	Pipeline  *pipeline.Orchestrator

	searcher    retrieve.Searcher
	otelCleanup func()
}

// Close releases all resources acquired in Setup. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Debug("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
