// Package respond turns protocol guidance and retrieved knowledge into
// counselor answers. Every path yields usable text: provider failures fall
// back to a fixed apology instead of surfacing an empty answer.
package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/maumlab/counsel/internal/log"
	"github.com/maumlab/counsel/internal/protocol"
	"github.com/maumlab/counsel/internal/provider"
	"github.com/maumlab/counsel/internal/search"
)

// Mode records which answer path produced a turn.
type Mode string

const (
	ModeLLMOnly   Mode = "llm_only"
	ModeAugmented Mode = "retrieval_augmented"
	ModeClosing   Mode = "closing"
)

// Fixed fallback texts. The user always receives an answer; these cover the
// cases where the model or the knowledge base cannot provide one.
const (
	fallbackProviderError = "죄송합니다. 답변 생성 중 오류가 발생했습니다. 다시 시도해주세요."
	fallbackNoSources     = "죄송합니다. 관련된 자료를 찾을 수 없습니다. 다른 질문을 해주시겠어요?"
	farewellText          = "상담을 마무리하겠습니다. 오늘 함께 시간을 보내주셔서 감사합니다. 언제든 다시 찾아주세요."
)

const (
	directHistoryTurns    = 2
	augmentedHistoryTurns = 5
	augmentedSourceCount  = 3
	summaryRuneLimit      = 50
	hotlineMarker         = "1393"
)

// UsedChunk describes one knowledge source cited by an augmented answer.
type UsedChunk struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

// Answer is a finished counselor reply.
type Answer struct {
	Text       string
	Mode       Mode
	UsedChunks []UsedChunk

	// SimilarityScore is the best retrieval similarity for turns where a
	// search ran, nil otherwise.
	SimilarityScore *float64
}

// Generator produces answers through the model provider.
type Generator struct {
	gen                provider.Generator
	directMaxTokens    int
	augmentedMaxTokens int
	temperature        float32
	logger             log.Logger
}

// New builds an answer generator with the given token budgets.
func New(gen provider.Generator, directMaxTokens, augmentedMaxTokens int, temperature float32, logger log.Logger) (*Generator, error) {
	if gen == nil {
		return nil, fmt.Errorf("respond: generator is required")
	}
	if directMaxTokens <= 0 || augmentedMaxTokens <= 0 {
		return nil, fmt.Errorf("respond: token budgets must be positive")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Generator{
		gen:                gen,
		directMaxTokens:    directMaxTokens,
		augmentedMaxTokens: augmentedMaxTokens,
		temperature:        temperature,
		logger:             logger,
	}, nil
}

// Closing returns the fixed session farewell.
func Closing() Answer {
	return Answer{Text: farewellText, Mode: ModeClosing}
}

// Direct produces a short empathic answer without knowledge augmentation.
// A provider failure still yields an answer, with the error reported for
// logging.
func (g *Generator) Direct(ctx context.Context, input string, guidance protocol.Guidance, history []protocol.Exchange) (Answer, error) {
	var sys strings.Builder
	sys.WriteString(persona)
	sys.WriteString("\n\n[이번 답변 지침]\n")
	sys.WriteString(guidance.StageGuideline)
	sys.WriteString("\n답변은 2-3문장으로 작성하세요. 먼저 공감을 표현하고, 자연스러운 질문 하나로 마무리하세요.")
	if guidance.FollowupQuestion != "" {
		sys.WriteString("\n마무리 질문으로 다음을 활용할 수 있습니다: ")
		sys.WriteString(guidance.FollowupQuestion)
	}
	sys.WriteString("\n")
	sys.WriteString(forbiddenClosings)

	text, err := g.gen.Complete(ctx, provider.Request{
		System:      sys.String(),
		Messages:    buildMessages(input, history, directHistoryTurns),
		MaxTokens:   g.directMaxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		g.logger.Error("direct answer generation failed", "error", err)
		return finishAnswer(Answer{Text: fallbackProviderError, Mode: ModeLLMOnly}, guidance), err
	}

	return finishAnswer(Answer{Text: text, Mode: ModeLLMOnly}, guidance), nil
}

// Augmented produces a longer answer grounded in retrieved knowledge. The top
// sources are cited in the prompt and reported back as UsedChunks.
func (g *Generator) Augmented(ctx context.Context, input string, guidance protocol.Guidance, history []protocol.Exchange, results []search.Result) (Answer, error) {
	if len(results) == 0 {
		return finishAnswer(Answer{Text: fallbackNoSources, Mode: ModeAugmented}, guidance), nil
	}

	top := results
	if len(top) > augmentedSourceCount {
		top = top[:augmentedSourceCount]
	}

	var refs strings.Builder
	used := make([]UsedChunk, 0, len(top))
	for i, r := range top {
		fmt.Fprintf(&refs, "[자료 %d]\n%s\n(출처: %s)\n\n", i+1, r.Chunk.Text, r.Chunk.Metadata.Source)
		used = append(used, UsedChunk{
			ID:         r.Chunk.ID,
			Source:     r.Chunk.Metadata.Source,
			Summary:    summarize(r.Chunk.Text),
			Similarity: r.Similarity,
		})
	}

	var sys strings.Builder
	sys.WriteString(persona)
	sys.WriteString("\n\n[이번 답변 지침]\n")
	sys.WriteString(guidance.StageGuideline)
	sys.WriteString("\n답변은 4-7문장으로 다음 구조를 따르세요.\n")
	sys.WriteString("1) 공감 1-2문장. \"하지만\"이나 \"그래도\"로 시작하지 마세요.\n")
	sys.WriteString("2) 참고 자료에 근거한 조언 2-3문장.\n")
	sys.WriteString("3) 대화를 이어가는 질문 1-2문장.\n")
	sys.WriteString(forbiddenClosings)
	sys.WriteString("\n\n[참고 자료]\n")
	sys.WriteString(refs.String())

	text, err := g.gen.Complete(ctx, provider.Request{
		System:      sys.String(),
		Messages:    buildMessages(input, history, augmentedHistoryTurns),
		MaxTokens:   g.augmentedMaxTokens,
		Temperature: g.temperature,
	})

	score := search.TopSimilarity(results)
	answer := Answer{
		Mode:            ModeAugmented,
		UsedChunks:      used,
		SimilarityScore: &score,
	}
	if err != nil {
		g.logger.Error("augmented answer generation failed", "error", err)
		answer.Text = fallbackProviderError
		return finishAnswer(answer, guidance), err
	}

	answer.Text = text
	return finishAnswer(answer, guidance), nil
}

// finishAnswer appends the crisis hotline notice when guidance requires it
// and the answer does not already carry the number.
func finishAnswer(a Answer, guidance protocol.Guidance) Answer {
	if guidance.CrisisNotice != "" && !strings.Contains(a.Text, hotlineMarker) {
		a.Text = a.Text + "\n\n" + guidance.CrisisNotice
	}
	return a
}

// buildMessages assembles the conversation for the provider: the most recent
// history turns followed by the current input.
func buildMessages(input string, history []protocol.Exchange, maxTurns int) []provider.Message {
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	messages := make([]provider.Message, 0, len(history)*2+1)
	for _, ex := range history {
		messages = append(messages,
			provider.Message{Role: provider.RoleUser, Text: ex.User},
			provider.Message{Role: provider.RoleAssistant, Text: ex.Assistant},
		)
	}
	return append(messages, provider.Message{Role: provider.RoleUser, Text: input})
}

// summarize clips chunk text for the citation summary.
func summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryRuneLimit {
		return text
	}
	return string(runes[:summaryRuneLimit]) + "..."
}
