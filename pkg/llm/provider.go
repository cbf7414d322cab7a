package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// StreamChunk is one incremental unit of a streamed generation. Text is the
// new fragment, FullText the text accumulated so far. The final chunk has
// Done=true and carries no new text.
type StreamChunk struct {
	Text     string
	FullText string
	Index    int
	Done     bool
}

// StreamHandler is invoked once per chunk, in order, on a single goroutine.
type StreamHandler func(chunk StreamChunk) error

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithTopP(topP float64) Option {
	return func(o *Options) {
		o.TopP = topP
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream streams the response incrementally through onChunk and
	// returns the full text. The handler sees chunks in order and exactly one
	// Done chunk, even on error-free early context cancellation.
	ChatStream(ctx context.Context, history []Message, onChunk StreamHandler, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// Ready reports whether the backend is configured/reachable enough to
	// accept calls.
	Ready(ctx context.Context) bool
}
