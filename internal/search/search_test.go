package search

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/maumlab/counsel/internal/knowledge"
	"github.com/maumlab/counsel/internal/log"
	"github.com/maumlab/counsel/internal/provider"
)

type mockEmbedder struct {
	mu      sync.Mutex
	err     error
	queries []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.queries = append(m.queries, text)
	return []float32{1}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockStore returns one batch per call, repeating the last batch when calls
// outnumber batches.
type mockStore struct {
	mu      sync.Mutex
	err     error
	batches [][]knowledge.Candidate
	calls   int
}

func (m *mockStore) Query(_ context.Context, _ []float32, _ ...knowledge.SearchOption) ([]knowledge.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	idx := m.calls
	m.calls++
	if idx >= len(m.batches) {
		idx = len(m.batches) - 1
	}
	if idx < 0 {
		return nil, nil
	}
	return m.batches[idx], nil
}

type mockGenerator struct {
	text    string
	err     error
	calls   int
	lastReq provider.Request
}

func (m *mockGenerator) Complete(_ context.Context, req provider.Request) (string, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func cand(id, source string, distance float64) knowledge.Candidate {
	return knowledge.Candidate{
		Chunk: knowledge.Chunk{
			ID:       id,
			Text:     "상담 이론 자료 " + id,
			Metadata: knowledge.Metadata{Source: source},
		},
		Distance: distance,
	}
}

func testConfig() Config {
	return Config{
		TopN:                5,
		RerankThreshold:     0.55,
		QualityTarget:       0.7,
		AvgSimilarityTarget: 0.6,
		MaxIterations:       2,
	}
}

func newTestEngine(t *testing.T, emb *mockEmbedder, store *mockStore, gen *mockGenerator) *Engine {
	t.Helper()
	e, err := New(emb, store, gen, testConfig(), []string{"우울", "불안"}, log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("single pass when quality clears the floor", func(t *testing.T) {
		store := &mockStore{batches: [][]knowledge.Candidate{{
			cand("a", "adler_theory", 0.1),
			cand("b", "case_notes", 0.25),
		}}}
		gen := &mockGenerator{}
		engine := newTestEngine(t, &mockEmbedder{}, store, gen)

		results, quality, iterations, err := engine.Search(ctx, "요즘 생각이 많아요", "")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}

		if iterations != 1 {
			t.Errorf("iterations = %d, want 1", iterations)
		}
		if len(results) != 2 {
			t.Fatalf("results = %d, want 2", len(results))
		}
		if results[0].Chunk.ID != "a" {
			t.Errorf("first result = %q, want a", results[0].Chunk.ID)
		}
		wantSim := 1 / (1 + 0.1)
		if math.Abs(results[0].Similarity-wantSim) > 1e-9 {
			t.Errorf("similarity = %v, want %v", results[0].Similarity, wantSim)
		}
		if quality.NeedsImprovement {
			t.Errorf("quality = %+v, should not need improvement", quality)
		}
		if gen.calls != 0 {
			t.Errorf("generator called %d times, want 0", gen.calls)
		}
	})

	t.Run("expands the query when quality is weak", func(t *testing.T) {
		emb := &mockEmbedder{}
		store := &mockStore{batches: [][]knowledge.Candidate{
			{cand("a", "adler_theory", 1.5)},
			{cand("x", "case_notes", 0.4)},
			{cand("x", "case_notes", 0.4), cand("y", "sfbt", 0.6)},
		}}
		engine := newTestEngine(t, emb, store, &mockGenerator{})

		results, _, iterations, err := engine.Search(ctx, "요즘 너무 우울해서 고민이에요", "")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}

		if iterations != 2 {
			t.Errorf("iterations = %d, want 2", iterations)
		}
		if emb.callCount() != 3 {
			t.Errorf("embed calls = %d, want original plus two expansions", emb.callCount())
		}
		if len(results) != 3 {
			t.Fatalf("results = %d, want 3 after dedup", len(results))
		}
		if results[0].Chunk.ID != "x" {
			t.Errorf("best result = %q, want x", results[0].Chunk.ID)
		}
	})

	t.Run("stops expanding once average similarity reaches target", func(t *testing.T) {
		sim := 0.62
		distance := 1/sim - 1
		batch := make([]knowledge.Candidate, 0, 5)
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			batch = append(batch, cand(id, "adler_theory", distance))
		}
		emb := &mockEmbedder{}
		store := &mockStore{batches: [][]knowledge.Candidate{batch}}
		engine := newTestEngine(t, emb, store, &mockGenerator{})

		_, quality, iterations, err := engine.Search(ctx, "우울한 기분이 계속돼요", "")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}

		if iterations != 1 {
			t.Errorf("iterations = %d, want 1", iterations)
		}
		if emb.callCount() != 1 {
			t.Errorf("embed calls = %d, want 1", emb.callCount())
		}
		if !quality.NeedsImprovement {
			t.Errorf("quality = %+v, low diversity should still flag improvement", quality)
		}
	})

	t.Run("reranks when the best similarity is weak", func(t *testing.T) {
		store := &mockStore{batches: [][]knowledge.Candidate{{
			cand("a", "adler_theory", 2),
			cand("b", "case_notes", 3),
		}}}
		gen := &mockGenerator{text: "2, 1"}
		engine := newTestEngine(t, &mockEmbedder{}, store, gen)

		results, _, _, err := engine.Search(ctx, "질문", "")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}

		if gen.calls != 1 {
			t.Fatalf("generator calls = %d, want exactly 1", gen.calls)
		}
		if results[0].Chunk.ID != "b" || results[1].Chunk.ID != "a" {
			t.Errorf("order = %q, %q, want b, a", results[0].Chunk.ID, results[1].Chunk.ID)
		}
		if gen.lastReq.MaxTokens != rerankMaxTokens {
			t.Errorf("rerank max tokens = %d", gen.lastReq.MaxTokens)
		}
	})

	t.Run("invalid rerank answer keeps original order", func(t *testing.T) {
		store := &mockStore{batches: [][]knowledge.Candidate{{
			cand("a", "adler_theory", 2),
			cand("b", "case_notes", 3),
		}}}
		gen := &mockGenerator{text: "두 번째가 더 좋아 보여요"}
		engine := newTestEngine(t, &mockEmbedder{}, store, gen)

		results, _, _, err := engine.Search(ctx, "질문", "")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if results[0].Chunk.ID != "a" {
			t.Errorf("order changed on invalid answer: first = %q", results[0].Chunk.ID)
		}
	})

	t.Run("rerank provider failure keeps original order", func(t *testing.T) {
		store := &mockStore{batches: [][]knowledge.Candidate{{
			cand("a", "adler_theory", 2),
			cand("b", "case_notes", 3),
		}}}
		gen := &mockGenerator{err: errors.New("quota exceeded")}
		engine := newTestEngine(t, &mockEmbedder{}, store, gen)

		results, _, _, err := engine.Search(ctx, "질문", "")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if results[0].Chunk.ID != "a" {
			t.Errorf("order changed on provider failure: first = %q", results[0].Chunk.ID)
		}
	})

	t.Run("embedding failure is retrieval unavailable", func(t *testing.T) {
		emb := &mockEmbedder{err: errors.New("api down")}
		engine := newTestEngine(t, emb, &mockStore{}, &mockGenerator{})

		_, _, _, err := engine.Search(ctx, "질문", "")
		if !errors.Is(err, ErrRetrievalUnavailable) {
			t.Errorf("error = %v, want ErrRetrievalUnavailable", err)
		}
	})

	t.Run("store failure is retrieval unavailable", func(t *testing.T) {
		store := &mockStore{err: errors.New("connection refused")}
		engine := newTestEngine(t, &mockEmbedder{}, store, &mockGenerator{})

		_, _, _, err := engine.Search(ctx, "질문", "")
		if !errors.Is(err, ErrRetrievalUnavailable) {
			t.Errorf("error = %v, want ErrRetrievalUnavailable", err)
		}
	})

	t.Run("empty store yields empty results needing improvement", func(t *testing.T) {
		engine := newTestEngine(t, &mockEmbedder{}, &mockStore{}, &mockGenerator{})

		results, quality, iterations, err := engine.Search(ctx, "질문", "")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("results = %d, want 0", len(results))
		}
		if !quality.NeedsImprovement || quality.QualityScore != 0 {
			t.Errorf("quality = %+v", quality)
		}
		if iterations < 1 {
			t.Errorf("iterations = %d", iterations)
		}
	})
}

func emotionCand(id, source string, distance float64) knowledge.Candidate {
	return knowledge.Candidate{
		Chunk: knowledge.Chunk{
			ID:       id,
			Text:     "우울과 낙담에 대한 상담 자료 " + id,
			Metadata: knowledge.Metadata{Source: source},
		},
		Distance: distance,
	}
}

func TestEngine_BoostAppliedOncePerSearch(t *testing.T) {
	ctx := context.Background()

	emb := &mockEmbedder{}
	store := &mockStore{batches: [][]knowledge.Candidate{
		{emotionCand("a", "adler_theory", 2)},
		{emotionCand("a", "adler_theory", 2)},
		{emotionCand("b", "sfbt", 2)},
	}}
	gen := &mockGenerator{text: "1, 2"}
	engine := newTestEngine(t, emb, store, gen)

	results, _, iterations, err := engine.Search(ctx, "요즘 너무 우울해서 고민이에요", "우울")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if iterations != 2 {
		t.Errorf("iterations = %d, want 2", iterations)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 after dedup", len(results))
	}
	wantSim := 1.0/3 + 0.2
	for _, r := range results {
		if math.Abs(r.EmotionBoost-0.2) > 1e-9 {
			t.Errorf("result %q boost = %v, want 0.2", r.Chunk.ID, r.EmotionBoost)
		}
		if math.Abs(r.Similarity-wantSim) > 1e-9 {
			t.Errorf("result %q similarity = %v, want %v", r.Chunk.ID, r.Similarity, wantSim)
		}
	}
}

func TestEngine_RerankGatesOnRawSimilarity(t *testing.T) {
	ctx := context.Background()

	store := &mockStore{batches: [][]knowledge.Candidate{{
		emotionCand("a", "adler_theory", 1),
		emotionCand("b", "case_notes", 1),
	}}}
	gen := &mockGenerator{text: "2, 1"}
	engine := newTestEngine(t, &mockEmbedder{}, store, gen)

	results, quality, _, err := engine.Search(ctx, "질문", "우울")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// Raw similarity 0.5 sits below the 0.55 threshold even though the
	// boosted score 0.7 does not.
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
	if results[0].Chunk.ID != "b" {
		t.Errorf("first result = %q, want b from rerank", results[0].Chunk.ID)
	}
	if math.Abs(quality.AvgSimilarity-0.5) > 1e-9 {
		t.Errorf("avg similarity = %v, want unboosted 0.5", quality.AvgSimilarity)
	}
}

func TestEngine_EmotionBoost(t *testing.T) {
	ctx := context.Background()

	store := &mockStore{batches: [][]knowledge.Candidate{{
		{
			Chunk: knowledge.Chunk{
				ID:       "boosted",
				Text:     "우울과 낙담에는 격려가 필요하다.",
				Metadata: knowledge.Metadata{Source: "adler_theory"},
			},
			Distance: 0.25,
		},
		{
			Chunk: knowledge.Chunk{
				ID:       "plain",
				Text:     "생활양식은 초기 기억에서 드러난다.",
				Metadata: knowledge.Metadata{Source: "adler_theory"},
			},
			Distance: 0.25,
		},
	}}}
	engine := newTestEngine(t, &mockEmbedder{}, store, &mockGenerator{})

	results, _, _, err := engine.Search(ctx, "요즘 기분이 가라앉아요", "우울 불안")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	var boosted, plain Result
	for _, r := range results {
		switch r.Chunk.ID {
		case "boosted":
			boosted = r
		case "plain":
			plain = r
		}
	}

	if math.Abs(boosted.EmotionBoost-0.1) > 1e-9 {
		t.Errorf("boost = %v, want 0.1 for one of two terms", boosted.EmotionBoost)
	}
	if plain.EmotionBoost != 0 {
		t.Errorf("plain boost = %v, want 0", plain.EmotionBoost)
	}
	if boosted.Similarity <= plain.Similarity {
		t.Errorf("boosted %v should outrank plain %v", boosted.Similarity, plain.Similarity)
	}
	if results[0].Chunk.ID != "boosted" {
		t.Errorf("first result = %q, want boosted", results[0].Chunk.ID)
	}
}

func TestEmotionBooster_CapsAtOne(t *testing.T) {
	b := newEmotionBooster("우울", nil)
	results := []Result{{
		Chunk:      knowledge.Chunk{Text: "우울에 대하여"},
		Similarity: 0.95,
	}}
	b.apply(results)

	if results[0].Similarity != 1 {
		t.Errorf("similarity = %v, want capped at 1", results[0].Similarity)
	}
	if math.Abs(results[0].EmotionBoost-0.2) > 1e-9 {
		t.Errorf("boost = %v, want full 0.2", results[0].EmotionBoost)
	}
}

func TestExpandQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "concept trigger expands with theory terms",
			query: "열등감 때문에 괴로워요",
			want:  []string{"inferiority complex", "superiority striving"},
		},
		{
			name:  "emotion trigger adds core concepts",
			query: "요즘 너무 우울해요",
			want:  []string{"inferiority complex", "social interest"},
		},
		{
			name:  "no trigger means no expansion",
			query: "안건을 정리해 주세요",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandQuery(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("expandQuery(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expansion[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	t.Run("caps total expansions", func(t *testing.T) {
		got := expandQuery("열등감과 대인 관계, 생활양식과 목표가 모두 걱정돼요")
		if len(got) > maxExpandedQueries {
			t.Errorf("expansions = %d, want at most %d", len(got), maxExpandedQueries)
		}
	})
}

func TestParseRerankOrder(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		n      int
		want   []int
		wantOK bool
	}{
		{"clean permutation", "3, 1, 2", 3, []int{2, 0, 1}, true},
		{"permutation with prose", "관련성 순서: 2번, 1번입니다", 2, []int{1, 0}, true},
		{"duplicate numbers", "1, 1, 2", 3, nil, false},
		{"out of range", "1, 2, 4", 3, nil, false},
		{"too few numbers", "1, 2", 3, nil, false},
		{"no numbers", "잘 모르겠어요", 2, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRerankOrder(tt.text, tt.n)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("order = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestEvaluateQuality(t *testing.T) {
	t.Run("empty set needs improvement", func(t *testing.T) {
		q := evaluateQuality(nil)
		if !q.NeedsImprovement || q.QualityScore != 0 || q.AvgSimilarity != 0 {
			t.Errorf("quality = %+v", q)
		}
	})

	t.Run("weights similarity against diversity", func(t *testing.T) {
		results := []Result{
			{Similarity: 0.8, Chunk: knowledge.Chunk{Metadata: knowledge.Metadata{Source: "a"}}},
			{Similarity: 0.6, Chunk: knowledge.Chunk{Metadata: knowledge.Metadata{Source: "b"}}},
		}
		q := evaluateQuality(results)

		if math.Abs(q.AvgSimilarity-0.7) > 1e-9 {
			t.Errorf("avg = %v, want 0.7", q.AvgSimilarity)
		}
		if math.Abs(q.DiversityScore-1.0) > 1e-9 {
			t.Errorf("diversity = %v, want 1", q.DiversityScore)
		}
		want := 0.7*0.7 + 1.0*0.3
		if math.Abs(q.QualityScore-want) > 1e-9 {
			t.Errorf("score = %v, want %v", q.QualityScore, want)
		}
		if q.NeedsImprovement {
			t.Error("score above floor should not need improvement")
		}
	})

	t.Run("single source drags the score down", func(t *testing.T) {
		results := []Result{
			{Similarity: 0.5, Chunk: knowledge.Chunk{Metadata: knowledge.Metadata{Source: "a"}}},
			{Similarity: 0.5, Chunk: knowledge.Chunk{Metadata: knowledge.Metadata{Source: "a"}}},
			{Similarity: 0.5, Chunk: knowledge.Chunk{Metadata: knowledge.Metadata{Source: "a"}}},
		}
		q := evaluateQuality(results)
		if !q.NeedsImprovement {
			t.Errorf("quality = %+v, want improvement flagged", q)
		}
	})
}

func TestTopSimilarity(t *testing.T) {
	if got := TopSimilarity(nil); got != 0 {
		t.Errorf("TopSimilarity(nil) = %v, want 0", got)
	}
	results := []Result{{Similarity: 0.3}, {Similarity: 0.9}, {Similarity: 0.5}}
	if got := TopSimilarity(results); got != 0.9 {
		t.Errorf("TopSimilarity = %v, want 0.9", got)
	}
}
