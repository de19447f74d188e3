// Package provider defines the narrow interfaces counsel needs from AI
// providers: text embedding and chat completion.
//
// Interfaces are defined here, on the consumer side, so engines depend on
// two small methods instead of a vendor SDK. The Genkit-backed
// implementations live in genkit.go; tests use hand-written mocks.
//
// All provider failures, including timeouts, wrap ErrProvider so callers
// can classify them with errors.Is.
package provider

import (
	"context"
	"errors"
)

// ErrProvider indicates an external AI provider call failed or timed out.
var ErrProvider = errors.New("provider call failed")

// Embedder produces a vector embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Message roles mirror the chat convention of the backing model API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry of conversation context passed to the model.
type Message struct {
	Role string
	Text string
}

// Request describes one completion call.
type Request struct {
	// System is the system prompt. Empty means no system instruction.
	System string

	// Messages is the conversation context, oldest first. The last message
	// must be the user turn to answer.
	Messages []Message

	// MaxTokens bounds the response length. Zero means provider default.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float32
}

// Generator produces a chat completion for a request.
type Generator interface {
	Complete(ctx context.Context, req Request) (string, error)
}
