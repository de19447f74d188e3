package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maumlab/counsel/db"
	"github.com/maumlab/counsel/internal/config"
	"github.com/maumlab/counsel/internal/dialogue"
	"github.com/maumlab/counsel/internal/knowledge"
	"github.com/maumlab/counsel/internal/learn"
	"github.com/maumlab/counsel/internal/log"
	"github.com/maumlab/counsel/internal/protocol"
	"github.com/maumlab/counsel/internal/provider"
	"github.com/maumlab/counsel/internal/respond"
	"github.com/maumlab/counsel/internal/search"
)

// Setup creates and initializes the application. An unreachable database is
// fatal here; everything downstream degrades per turn instead.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.Knowledge = knowledge.NewStore(knowledge.NewPG(pool), logger)

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second

	genkitEmbedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if genkitEmbedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder, err = provider.NewGenkitEmbedder(genkitEmbedder, knowledge.VectorDimension, timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a.Generator, err = provider.NewGenkitGenerator(g, cfg.FullModelName(), timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	a.Protocol = protocol.NewEngine()

	a.Search, err = search.New(a.Embedder, a.Knowledge, a.Generator, search.Config{
		TopN:                cfg.SearchTopN,
		RerankThreshold:     cfg.RerankThreshold,
		QualityTarget:       cfg.QualityTarget,
		AvgSimilarityTarget: cfg.AvgSimilarityTarget,
		MaxIterations:       cfg.MaxSearchIterations,
	}, protocol.CounselingKeywords, logger)
	if err != nil {
		return nil, fmt.Errorf("creating search engine: %w", err)
	}

	a.Respond, err = respond.New(a.Generator,
		cfg.DirectMaxTokens, cfg.AugmentedMaxTokens, cfg.Temperature, logger)
	if err != nil {
		return nil, fmt.Errorf("creating answer generator: %w", err)
	}

	a.Learner = learn.NewWriter(a.Embedder, a.Knowledge, cfg.LearnQueueSize, logger)

	a.Orchestrator = dialogue.New(a.Protocol, a.Search, a.Respond, a.Learner, dialogue.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		HistoryLimit:        cfg.HistoryLimit,
	}, logger)

	return a, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The API key is
// read from the environment by the plugin itself.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai provider")
	}
	return g, nil
}

// provideDBPool runs migrations, creates a PostgreSQL connection pool, and
// verifies connectivity. A failure here aborts startup.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
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
	if err := knowledge.NewPG(pool).Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("verifying database connectivity: %w", err)
	}

	return pool, nil
}
