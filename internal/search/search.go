// Package search implements the knowledge retrieval engine: embedding-based
// vector search with emotion-aware score boosting, keyword query expansion,
// quality evaluation, and conditional reranking of weak result sets.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maumlab/counsel/internal/knowledge"
	"github.com/maumlab/counsel/internal/log"
	"github.com/maumlab/counsel/internal/provider"
)

// ErrRetrievalUnavailable means the knowledge search could not run at all.
// Callers degrade to an unaugmented answer rather than failing the turn.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// expandedTopN bounds each expansion search; the initial search uses the
// configured topN.
const expandedTopN = 3

// Store is the slice of the knowledge layer the engine needs.
type Store interface {
	Query(ctx context.Context, embedding []float32, opts ...knowledge.SearchOption) ([]knowledge.Candidate, error)
}

// Result is one retrieved chunk with its derived scores. Similarity is
// 1/(1+distance) plus the emotion boost, capped at 1.
type Result struct {
	Chunk        knowledge.Chunk
	Distance     float64
	Similarity   float64
	EmotionBoost float64
}

// Quality summarizes a result set. NeedsImprovement drives the expansion
// loop; an empty set always needs improvement.
type Quality struct {
	AvgSimilarity    float64 `json:"avg_similarity"`
	DiversityScore   float64 `json:"diversity_score"`
	QualityScore     float64 `json:"quality_score"`
	NeedsImprovement bool    `json:"needs_improvement"`
}

// Config carries the tunable thresholds of the engine.
type Config struct {
	// TopN is the size of the final result set.
	TopN int

	// RerankThreshold triggers the LLM rerank when the best raw
	// distance-derived similarity falls below it.
	RerankThreshold float64

	// QualityTarget and AvgSimilarityTarget stop the expansion loop early
	// once either is reached.
	QualityTarget       float64
	AvgSimilarityTarget float64

	// MaxIterations bounds the search loop including the initial pass.
	MaxIterations int
}

// Engine runs the retrieval pipeline. Construct with New.
type Engine struct {
	embedder provider.Embedder
	store    Store
	gen      provider.Generator
	cfg      Config
	lexicon  []string
	logger   log.Logger
}

// New builds an engine. The lexicon is the counseling vocabulary used for
// emotion boosting and query expansion.
func New(embedder provider.Embedder, store Store, gen provider.Generator, cfg Config, lexicon []string, logger log.Logger) (*Engine, error) {
	if embedder == nil || store == nil || gen == nil {
		return nil, errors.New("search: embedder, store, and generator are required")
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 1
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		embedder: embedder,
		store:    store,
		gen:      gen,
		cfg:      cfg,
		lexicon:  lexicon,
		logger:   logger,
	}, nil
}

// Search retrieves chunks for the query, expanding with related counseling
// terms while the result quality stays below target. It returns the final
// results, their quality, and the number of search iterations used.
//
// The emotionContext is the counseling vocabulary matched in the user's
// input; it strengthens chunks that speak to the same feelings.
func (e *Engine) Search(ctx context.Context, query, emotionContext string) ([]Result, Quality, int, error) {
	start := time.Now()

	results, err := e.searchOnce(ctx, query, e.cfg.TopN)
	if err != nil {
		return nil, Quality{}, 0, err
	}

	quality := evaluateQuality(results)

	iteration := 0
	for quality.NeedsImprovement && iteration < e.cfg.MaxIterations-1 {
		if quality.QualityScore >= e.cfg.QualityTarget ||
			quality.AvgSimilarity >= e.cfg.AvgSimilarityTarget {
			break
		}

		expanded := expandQuery(query)
		if len(expanded) == 0 {
			break
		}

		results = e.searchExpanded(ctx, expanded, results)
		quality = evaluateQuality(results)
		iteration++
	}

	results, quality = e.finalize(ctx, results, emotionContext)

	e.logger.Debug("knowledge search complete",
		"results", len(results),
		"quality", quality.QualityScore,
		"iterations", iteration+1,
		"duration", time.Since(start))

	return results, quality, iteration + 1, nil
}

// searchOnce embeds one query and runs a single vector search.
func (e *Engine) searchOnce(ctx context.Context, query string, topN int) ([]Result, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrievalUnavailable, err)
	}

	candidates, err := e.store.Query(ctx, embedding, knowledge.WithTopN(topN))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			Chunk:      c.Chunk,
			Distance:   c.Distance,
			Similarity: 1 / (1 + c.Distance),
		})
	}
	return results, nil
}

// searchExpanded runs up to two expansion queries concurrently and merges
// their hits into the existing set, deduplicating by chunk id. Expansion
// failures are logged and skipped; the existing results always survive.
func (e *Engine) searchExpanded(ctx context.Context, expanded []string, existing []Result) []Result {
	if len(expanded) > 2 {
		expanded = expanded[:2]
	}

	var mu sync.Mutex
	var extra []Result

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, q := range expanded {
		g.Go(func() error {
			hits, err := e.searchOnce(gctx, q, expandedTopN)
			if err != nil {
				e.logger.Warn("expansion search failed", "query", q, "error", err)
				return nil
			}
			mu.Lock()
			extra = append(extra, hits...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{}, len(existing))
	merged := make([]Result, 0, len(existing)+len(extra))
	for _, r := range existing {
		seen[r.Chunk.ID] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range extra {
		if _, ok := seen[r.Chunk.ID]; ok {
			continue
		}
		seen[r.Chunk.ID] = struct{}{}
		merged = append(merged, r)
	}
	return merged
}

// finalize sorts by similarity, reranks weak sets, trims to topN, evaluates
// quality, then applies the emotion boost exactly once to the survivors.
// Rerank gating and quality work on the raw distance-derived similarity; the
// boost only shapes the final ordering and the caller's threshold check.
func (e *Engine) finalize(ctx context.Context, results []Result, emotionContext string) ([]Result, Quality) {
	sortBySimilarity(results)

	if len(results) > 1 && TopSimilarity(results) < e.cfg.RerankThreshold {
		results = e.rerank(ctx, results)
	}

	if len(results) > e.cfg.TopN {
		results = results[:e.cfg.TopN]
	}

	quality := evaluateQuality(results)

	newEmotionBooster(emotionContext, e.lexicon).apply(results)
	sortBySimilarity(results)

	return results, quality
}

func sortBySimilarity(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
}

// TopSimilarity returns the best similarity in the set, or 0 when empty.
func TopSimilarity(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	best := results[0].Similarity
	for _, r := range results[1:] {
		if r.Similarity > best {
			best = r.Similarity
		}
	}
	return best
}
