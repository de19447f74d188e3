// Package learn persists question/answer pairs from weakly-grounded turns
// back into the knowledge base. Writes happen on a background worker so a
// slow or failing store never delays an answer; failures are logged and
// dropped.
package learn

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maumlab/counsel/internal/knowledge"
	"github.com/maumlab/counsel/internal/log"
	"github.com/maumlab/counsel/internal/provider"
)

const (
	idPrefix     = "self_learning_"
	idHexLength  = 12
	writeTimeout = 30 * time.Second
)

// Store is the slice of the knowledge layer the writer needs.
type Store interface {
	Upsert(ctx context.Context, chunk knowledge.Chunk) error
	Exists(ctx context.Context, id string) (bool, error)
}

// document is the chunk payload for a learned pair.
type document struct {
	UserQuery   string `json:"user_query"`
	LLMResponse string `json:"llm_response"`
	Timestamp   string `json:"timestamp"`
}

type entry struct {
	query    string
	response string
	when     time.Time
}

// Writer queues learned pairs and persists them on a single background
// worker. Construct with NewWriter and release with Close.
type Writer struct {
	embedder provider.Embedder
	store    Store
	logger   log.Logger

	queue chan entry
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// now is injectable for tests.
	now func() time.Time
}

// NewWriter starts the background worker. queueSize bounds the number of
// pending pairs; further pairs are dropped until the worker catches up.
func NewWriter(embedder provider.Embedder, store Store, queueSize int, logger log.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 32
	}
	if logger == nil {
		logger = log.NewNop()
	}
	w := &Writer{
		embedder: embedder,
		store:    store,
		logger:   logger,
		queue:    make(chan entry, queueSize),
		now:      time.Now,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Record enqueues a pair without blocking. When the queue is full the pair is
// dropped; losing a learning opportunity is preferable to stalling a turn.
func (w *Writer) Record(query, response string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	select {
	case w.queue <- entry{query: query, response: response, when: w.now()}:
	default:
		w.logger.Warn("learning queue full, dropping pair")
	}
}

// Close stops accepting pairs and waits for the queued ones to be written.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Writer) run() {
	defer w.wg.Done()
	for e := range w.queue {
		w.write(e)
	}
}

// write persists one pair. Every failure is swallowed after logging; the
// knowledge base misses one pair and the session never notices.
func (w *Writer) write(e entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	id := newChunkID()

	exists, err := w.store.Exists(ctx, id)
	if err != nil {
		w.logger.Warn("learning existence check failed", "id", id, "error", err)
	} else if exists {
		return
	}

	payload, err := json.Marshal(document{
		UserQuery:   e.query,
		LLMResponse: e.response,
		Timestamp:   e.when.UTC().Format(time.RFC3339),
	})
	if err != nil {
		w.logger.Warn("learning document marshal failed", "error", err)
		return
	}

	embedding, err := w.embedder.Embed(ctx, e.query)
	if err != nil {
		w.logger.Warn("learning embedding failed", "error", err)
		return
	}

	chunk := knowledge.Chunk{
		ID:        id,
		Text:      string(payload),
		Embedding: embedding,
		Metadata: knowledge.Metadata{
			Source:    knowledge.SourceSelfLearning,
			Type:      "qa_pair",
			Timestamp: e.when.UTC().Format(time.RFC3339),
		},
		CreatedAt: e.when,
	}
	if err := w.store.Upsert(ctx, chunk); err != nil {
		w.logger.Warn("learning write failed", "id", id, "error", err)
		return
	}

	w.logger.Debug("learned pair stored", "id", id)
}

func newChunkID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return idPrefix + hex[:idHexLength]
}
