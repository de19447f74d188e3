// Package dialogue orchestrates counseling turns: it gates knowledge
// retrieval, picks the answer path, feeds weakly-grounded turns to the
// self-learning writer, and tracks per-session state and history.
package dialogue

import (
	"context"
	"sync"

	"github.com/maumlab/counsel/internal/log"
	"github.com/maumlab/counsel/internal/protocol"
	"github.com/maumlab/counsel/internal/respond"
	"github.com/maumlab/counsel/internal/search"
)

// Searcher runs the knowledge retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, query, emotionContext string) ([]search.Result, search.Quality, int, error)
}

// Answerer produces counselor answers.
type Answerer interface {
	Direct(ctx context.Context, input string, guidance protocol.Guidance, history []protocol.Exchange) (respond.Answer, error)
	Augmented(ctx context.Context, input string, guidance protocol.Guidance, history []protocol.Exchange, results []search.Result) (respond.Answer, error)
}

// Learner records question/answer pairs for self-learning.
type Learner interface {
	Record(query, response string)
}

// ProtocolInfo reports the protocol decisions behind a turn.
type ProtocolInfo struct {
	ProtocolType  string `json:"protocol_type"`
	CurrentStage  string `json:"current_stage"`
	SeverityLevel string `json:"severity_level"`
}

// Turn is the full outcome of one counseling exchange.
type Turn struct {
	UserInput        string              `json:"user_input"`
	Answer           string              `json:"answer"`
	Mode             string              `json:"mode"`
	UsedChunks       []respond.UsedChunk `json:"used_chunks,omitempty"`
	SimilarityScore  *float64            `json:"similarity_score,omitempty"`
	SearchIterations int                 `json:"search_iterations"`
	ProtocolInfo     ProtocolInfo        `json:"protocol_info"`
}

// Config carries the orchestrator thresholds.
type Config struct {
	// SimilarityThreshold separates well-grounded retrievals, answered
	// directly, from weak ones that go through augmentation and learning.
	SimilarityThreshold float64

	// HistoryLimit caps the per-session exchange history.
	HistoryLimit int
}

// session is the mutable state of one conversation. Turns within a session
// are serialized by mu; different sessions proceed independently.
type session struct {
	mu      sync.Mutex
	state   protocol.SessionState
	history []protocol.Exchange
}

// Orchestrator routes counseling turns. Construct with New.
type Orchestrator struct {
	engine   *protocol.Engine
	searcher Searcher
	answerer Answerer
	learner  Learner
	cfg      Config
	logger   log.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// New builds an orchestrator. The learner may be nil to disable
// self-learning.
func New(engine *protocol.Engine, searcher Searcher, answerer Answerer, learner Learner, cfg Config, logger log.Logger) *Orchestrator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		engine:   engine,
		searcher: searcher,
		answerer: answerer,
		learner:  learner,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Respond handles one user input in the given session. The user always gets
// an answer: retrieval and provider failures degrade the turn instead of
// failing it.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, input string) Turn {
	sess := o.getSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if protocol.IsClosing(input) {
		sess.state.Reset()
		sess.history = nil
		answer := respond.Closing()
		fresh := protocol.NewSessionState()
		return Turn{
			UserInput: input,
			Answer:    answer.Text,
			Mode:      string(answer.Mode),
			ProtocolInfo: ProtocolInfo{
				ProtocolType:  string(fresh.Protocol),
				CurrentStage:  string(fresh.Stage),
				SeverityLevel: string(fresh.Severity),
			},
		}
	}

	guidance := o.engine.Guide(sess.state, input, sess.history)

	answer, iterations := o.answer(ctx, input, guidance, sess.history)

	sess.state.Advance(guidance)
	sess.history = append(sess.history, protocol.Exchange{User: input, Assistant: answer.Text})
	if len(sess.history) > o.cfg.HistoryLimit {
		sess.history = sess.history[len(sess.history)-o.cfg.HistoryLimit:]
	}

	return Turn{
		UserInput:        input,
		Answer:           answer.Text,
		Mode:             string(answer.Mode),
		UsedChunks:       answer.UsedChunks,
		SimilarityScore:  answer.SimilarityScore,
		SearchIterations: iterations,
		ProtocolInfo: ProtocolInfo{
			ProtocolType:  string(guidance.Protocol),
			CurrentStage:  string(guidance.Stage),
			SeverityLevel: string(guidance.Severity),
		},
	}
}

// answer picks the generation path for a turn and reports the search
// iterations used.
func (o *Orchestrator) answer(ctx context.Context, input string, guidance protocol.Guidance, history []protocol.Exchange) (respond.Answer, int) {
	if !guidance.ShouldRetrieve {
		return o.direct(ctx, input, guidance, history, nil), 0
	}

	results, quality, iterations, err := o.searcher.Search(ctx, guidance.SearchQuery, guidance.EmotionContext)
	if err != nil {
		o.logger.Warn("knowledge search unavailable, answering directly", "error", err)
		return o.direct(ctx, input, guidance, history, nil), 0
	}

	topSim := search.TopSimilarity(results)
	o.logger.Debug("knowledge search finished",
		"results", len(results),
		"top_similarity", topSim,
		"quality", quality.QualityScore,
		"iterations", iterations)

	if !guidance.ForceAugmented && topSim >= o.cfg.SimilarityThreshold {
		return o.direct(ctx, input, guidance, history, &topSim), iterations
	}

	answer, genErr := o.answerer.Augmented(ctx, input, guidance, history, results)
	if genErr != nil {
		o.logger.Error("augmented answer degraded to fallback", "error", genErr)
	}

	if o.learner != nil && genErr == nil && len(results) > 0 && topSim < o.cfg.SimilarityThreshold {
		o.learner.Record(input, answer.Text)
	}

	return answer, iterations
}

// direct produces an unaugmented answer, attaching the retrieval similarity
// when a search already ran this turn.
func (o *Orchestrator) direct(ctx context.Context, input string, guidance protocol.Guidance, history []protocol.Exchange, topSim *float64) respond.Answer {
	answer, err := o.answerer.Direct(ctx, input, guidance, history)
	if err != nil {
		o.logger.Error("direct answer degraded to fallback", "error", err)
	}
	answer.SimilarityScore = topSim
	return answer
}

func (o *Orchestrator) getSession(id string) *session {
	o.mu.RLock()
	sess, ok := o.sessions[id]
	o.mu.RUnlock()
	if ok {
		return sess
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if sess, ok = o.sessions[id]; ok {
		return sess
	}
	sess = &session{state: protocol.NewSessionState()}
	o.sessions[id] = sess
	return sess
}

// SessionCount reports the number of known sessions.
func (o *Orchestrator) SessionCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}
