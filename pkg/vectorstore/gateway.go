package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// Metadata keys carried by every stored chunk.
const (
	MetaSource      = "source"
	MetaURL         = "url"
	MetaPublishedAt = "published_at"
	MetaChunkIndex  = "chunk_index"
	MetaChunkTotal  = "chunk_total"
)

var ErrEmptyContent = errors.New("chunk content must not be empty")

// Chunk is a bounded slice of a longer document, stored and retrieved
// independently.
type Chunk struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Embedding []float32              `json:"embedding,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Candidate is a chunk returned by similarity search. Distance is the index's
// native score (0 = identical, up to 2 for cosine distance); Similarity is
// derived as 1 - distance and goes negative for anti-correlated vectors.
type Candidate struct {
	Chunk      *Chunk  `json:"chunk"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// Stats describes the backing collection for diagnostics.
type Stats struct {
	TotalChunks int64  `json:"total_chunks"`
	Backend     string `json:"backend"`
}

// Gateway is the uniform interface over the real similarity index (pgvector)
// and the in-process fallback collection. The variant is selected once at
// initialization; callers never branch on it.
type Gateway interface {
	AddDocuments(ctx context.Context, chunks []*Chunk) (int, error)
	SearchSimilar(ctx context.Context, queryVector []float32, k int, filter map[string]interface{}) ([]*Candidate, error)
	SearchText(ctx context.Context, query string, k int) ([]*Candidate, error)
	GetDocument(ctx context.Context, id string) (*Chunk, error)
	DeleteDocument(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Ready(ctx context.Context) bool
}

func validateChunks(chunks []*Chunk) error {
	for i, c := range chunks {
		if c == nil || c.Content == "" {
			return fmt.Errorf("chunk %d: %w", i, ErrEmptyContent)
		}
	}
	return nil
}
