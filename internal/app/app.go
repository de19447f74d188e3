// Package app provides application initialization and dependency wiring.
//
// App is the container holding every long-lived component: the Genkit
// instance, the database pool, the knowledge store, the retrieval and
// protocol engines, and the dialogue orchestrator.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

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

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Embedder  *provider.GenkitEmbedder
	Generator *provider.GenkitGenerator

	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store

	Search       *search.Engine
	Protocol     *protocol.Engine
	Respond      *respond.Generator
	Learner      *learn.Writer
	Orchestrator *dialogue.Orchestrator
}

// Close releases all resources in reverse initialization order. The learner
// is drained first so queued pairs still reach the database before the pool
// closes.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.Learner != nil {
		a.Learner.Close()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	return nil
}
