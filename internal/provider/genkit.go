package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/maumlab/counsel/internal/log"
)

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder interface.
// Every call is bounded by a timeout; vectors are truncated to dimension
// via OutputDimensionality to match the pgvector schema.
type GenkitEmbedder struct {
	embedder ai.Embedder
	dim      int32
	timeout  time.Duration
	logger   log.Logger
}

// NewGenkitEmbedder creates a GenkitEmbedder.
func NewGenkitEmbedder(embedder ai.Embedder, dim int32, timeout time.Duration, logger log.Logger) (*GenkitEmbedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GenkitEmbedder{embedder: embedder, dim: dim, timeout: timeout, logger: logger}, nil
}

// Embed generates a vector embedding for the given text.
func (e *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dim := e.dim
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding text: %v", ErrProvider, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrProvider)
	}

	return resp.Embeddings[0].Embedding, nil
}

// GenkitGenerator adapts genkit.Generate to the Generator interface.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    log.Logger
}

// NewGenkitGenerator creates a GenkitGenerator. modelName must be
// provider-qualified (e.g. "googleai/gemini-2.5-flash").
func NewGenkitGenerator(g *genkit.Genkit, modelName string, timeout time.Duration, logger log.Logger) (*GenkitGenerator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GenkitGenerator{g: g, modelName: modelName, timeout: timeout, logger: logger}, nil
}

// Complete runs one chat completion.
func (g *GenkitGenerator) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := make([]*ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Text)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Text)))
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(g.modelName),
		ai.WithMessages(messages...),
		ai.WithConfig(cfg),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}

	start := time.Now()
	resp, err := genkit.Generate(ctx, g.g, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: generating completion: %v", ErrProvider, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty completion response", ErrProvider)
	}

	g.logger.Debug("completion generated",
		"model", g.modelName,
		"messages", len(req.Messages),
		"duration", time.Since(start))

	return text, nil
}
