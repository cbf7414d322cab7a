package embedding

import "context"

// Task types hint providers that support asymmetric embeddings.
const (
	TaskQuery    = "RETRIEVAL_QUERY"
	TaskDocument = "RETRIEVAL_DOCUMENT"
)

// Provider turns text into a fixed-length vector.
type Provider interface {
	Generate(ctx context.Context, text string, taskType string) ([]float32, error)

	// Ready is a cheap capability check (key/endpoint configured), not a
	// billable call.
	Ready(ctx context.Context) bool
}
