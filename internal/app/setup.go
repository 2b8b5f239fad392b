package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pomoc-ai/pomoc/db"
	"github.com/pomoc-ai/pomoc/internal/chunk"
	"github.com/pomoc-ai/pomoc/internal/config"
	"github.com/pomoc-ai/pomoc/internal/embed"
	"github.com/pomoc-ai/pomoc/internal/generate"
	"github.com/pomoc-ai/pomoc/internal/guardrail"
	"github.com/pomoc-ai/pomoc/internal/index"
	"github.com/pomoc-ai/pomoc/internal/knowledge"
	"github.com/pomoc-ai/pomoc/internal/log"
	"github.com/pomoc-ai/pomoc/internal/observability"
	"github.com/pomoc-ai/pomoc/internal/pipeline"
	"github.com/pomoc-ai/pomoc/internal/retrieve"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	aiEmbedder := provideAIEmbedder(g, cfg)
	if aiEmbedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embed.NewGenkit(aiEmbedder, embed.DefaultTimeout)

	if err := provideSearcher(ctx, a); err != nil {
		return nil, err
	}

	corpus := provideFallbackCorpus(cfg, logger)
	a.Retriever = retrieve.New(a.Embedder, a.searcher,
		logger.With("component", "retriever"),
		retrieve.WithFallbackCorpus(corpus))

	generators := provideGenerators(g, cfg, logger)
	guard := guardrail.New(
		guardrail.WithConfidenceThreshold(cfg.ConfidenceThreshold),
		guardrail.WithLengthBounds(cfg.MinAnswerLength, cfg.MaxAnswerLength),
	)

	a.Pipeline = pipeline.New(a.Retriever, generators, guard,
		logger.With("component", "pipeline"),
		pipeline.WithTopK(cfg.TopK))

	return a, nil
}

// provideOtelShutdown sets up Datadog tracing before Genkit initialization
// so the TracerProvider has its span processor registered first.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Datadog.Enabled {
		return func() {}
	}

	shutdown, err := observability.SetupDatadog(ctx, observability.Config{
		AgentHost:   cfg.Datadog.AgentHost,
		Environment: cfg.Datadog.Environment,
		ServiceName: cfg.Datadog.ServiceName,
	}, logger)
	if err != nil {
		logger.Warn("setting up tracing, continuing without", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
	}

	logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
	return g, nil
}

// provideAIEmbedder looks up the embedder registered by the provider plugin.
func provideAIEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // googleai
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideSearcher sets up the configured index backend on the App. The
// memory backend tolerates a missing snapshot: searches degrade to the
// keyword fallback until `pomoc index` builds one.
func provideSearcher(ctx context.Context, a *App) error {
	cfg, logger := a.Config, a.Logger

	switch cfg.IndexBackend {
	case config.BackendPostgres:
		pool, err := provideDBPool(ctx, cfg, logger)
		if err != nil {
			return err
		}
		a.DBPool = pool
		a.searcher = index.NewPostgres(pool, logger.With("component", "index"))

	default: // memory
		flat := index.NewFlat(cfg.IndexPath, logger.With("component", "index"))
		if err := flat.Load(); err != nil {
			if !errors.Is(err, index.ErrUnavailable) {
				return fmt.Errorf("loading index snapshot: %w", err)
			}
			logger.Warn("no index snapshot found, run 'pomoc index' to build one",
				"path", cfg.IndexPath)
		}
		a.Flat = flat
		a.searcher = flat
	}
	return nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideFallbackCorpus loads and chunks the knowledge files for the
// retriever's keyword fallback. A missing data directory leaves the fallback
// empty rather than failing startup.
func provideFallbackCorpus(cfg *config.Config, logger log.Logger) []index.Entry {
	docs, err := knowledge.LoadDir(cfg.DataDir)
	if err != nil {
		logger.Warn("keyword fallback corpus unavailable", "data_dir", cfg.DataDir, "error", err)
		return nil
	}

	chunks, err := chunk.SplitAll(docs, chunk.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		logger.Warn("chunking fallback corpus", "error", err)
		return nil
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			ChunkID:     c.ID,
			Seq:         i,
			Text:        c.Text,
			DocumentID:  c.DocumentID,
			Category:    c.Category,
			SourceLabel: c.SourceLabel,
		}
	}
	return entries
}

// provideGenerators builds the generator assignment. With A/B testing off,
// every query goes to the rule-based variant; enabled, traffic is split by
// consistent hash between rule-based (A) and the model-backed variant (B).
func provideGenerators(g *genkit.Genkit, cfg *config.Config, logger log.Logger) *pipeline.Splitter {
	rule := generate.NewRule()
	if !cfg.ABTestEnabled {
		return pipeline.SingleVariant(rule)
	}

	model := generate.NewModel(g, generate.ModelConfig{
		ModelName:   cfg.ModelName,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	}, logger.With("component", "generator"))

	return pipeline.NewSplitter(rule, model, cfg.ABSplitRatio)
}
