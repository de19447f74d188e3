package search

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/maumlab/counsel/internal/provider"
)

const (
	rerankMaxTokens   = 50
	rerankTemperature = 0.1
	rerankSnippetLen  = 300
)

var digitPattern = regexp.MustCompile(`\d+`)

// rerank asks the model to reorder weak results by relevance. The answer must
// be a complete permutation of the chunk numbers; anything else keeps the
// original order, as does any provider failure.
func (e *Engine) rerank(ctx context.Context, results []Result) []Result {
	var b strings.Builder
	b.WriteString("다음 검색 결과들을 상담 맥락에서 관련성이 높은 순서로 정렬해 주세요.\n\n")
	for i, r := range results {
		snippet := r.Chunk.Text
		if len([]rune(snippet)) > rerankSnippetLen {
			snippet = string([]rune(snippet)[:rerankSnippetLen])
		}
		fmt.Fprintf(&b, "[청크 %d] %s\n\n", i+1, snippet)
	}
	fmt.Fprintf(&b, "가장 관련성 높은 순서대로 청크 번호만 쉼표로 구분해 답해 주세요. (예: 3, 1, 2, 5, 4)")

	text, err := e.gen.Complete(ctx, provider.Request{
		Messages:    []provider.Message{{Role: provider.RoleUser, Text: b.String()}},
		MaxTokens:   rerankMaxTokens,
		Temperature: rerankTemperature,
	})
	if err != nil {
		e.logger.Warn("rerank failed, keeping original order", "error", err)
		return results
	}

	order, ok := parseRerankOrder(text, len(results))
	if !ok {
		e.logger.Warn("rerank answer was not a valid ordering", "answer", text)
		return results
	}

	reordered := make([]Result, 0, len(results))
	for _, idx := range order {
		reordered = append(reordered, results[idx])
	}
	return reordered
}

// parseRerankOrder extracts 1-based chunk numbers from the model's answer and
// validates that they form a complete permutation. Returns 0-based indices.
func parseRerankOrder(text string, n int) ([]int, bool) {
	matches := digitPattern.FindAllString(text, -1)
	if len(matches) != n {
		return nil, false
	}

	order := make([]int, 0, n)
	seen := make(map[int]struct{}, n)
	for _, m := range matches {
		v, err := strconv.Atoi(m)
		if err != nil || v < 1 || v > n {
			return nil, false
		}
		if _, dup := seen[v]; dup {
			return nil, false
		}
		seen[v] = struct{}{}
		order = append(order, v-1)
	}
	return order, true
}
