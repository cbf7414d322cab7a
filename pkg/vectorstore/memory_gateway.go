package vectorstore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// textMatchDistance is the fixed placeholder score attached to results that
// were not ranked by a real index. Callers must not compare these across
// calls; the asymmetry with the pgvector backend is a documented operator
// compromise, not a bug.
const textMatchDistance = 0.5

// MemoryGateway is the in-process fallback collection. Vector search returns
// an arbitrary prefix of the stored chunks (insertion order) with a
// placeholder score; text search is a case-insensitive substring match.
type MemoryGateway struct {
	mu     sync.RWMutex
	chunks map[string]*Chunk
	order  []string
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		chunks: make(map[string]*Chunk),
	}
}

func (g *MemoryGateway) AddDocuments(_ context.Context, chunks []*Chunk) (int, error) {
	if err := validateChunks(chunks); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, exists := g.chunks[c.ID]; !exists {
			g.order = append(g.order, c.ID)
		}
		g.chunks[c.ID] = c
	}
	return len(chunks), nil
}

func (g *MemoryGateway) SearchSimilar(_ context.Context, _ []float32, k int, filter map[string]interface{}) ([]*Candidate, error) {
	if k <= 0 {
		k = 3
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates := make([]*Candidate, 0, k)
	for _, id := range g.order {
		c := g.chunks[id]
		if !matchesFilter(c, filter) {
			continue
		}
		candidates = append(candidates, &Candidate{
			Chunk:      c,
			Distance:   textMatchDistance,
			Similarity: 1 - textMatchDistance,
		})
		if len(candidates) == k {
			break
		}
	}
	return candidates, nil
}

func (g *MemoryGateway) SearchText(_ context.Context, query string, k int) ([]*Candidate, error) {
	if k <= 0 {
		k = 3
	}
	needle := strings.ToLower(query)

	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates := make([]*Candidate, 0, k)
	for _, id := range g.order {
		c := g.chunks[id]
		if !strings.Contains(strings.ToLower(c.Content), needle) &&
			!strings.Contains(strings.ToLower(c.Title), needle) {
			continue
		}
		candidates = append(candidates, &Candidate{
			Chunk:      c,
			Distance:   textMatchDistance,
			Similarity: 1 - textMatchDistance,
		})
		if len(candidates) == k {
			break
		}
	}
	return candidates, nil
}

func (g *MemoryGateway) GetDocument(_ context.Context, id string) (*Chunk, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.chunks[id], nil
}

func (g *MemoryGateway) DeleteDocument(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, found := g.chunks[id]; !found {
		return nil
	}
	delete(g.chunks, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

func (g *MemoryGateway) Clear(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chunks = make(map[string]*Chunk)
	g.order = nil
	return nil
}

func (g *MemoryGateway) Stats(_ context.Context) (*Stats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return &Stats{TotalChunks: int64(len(g.chunks)), Backend: "memory"}, nil
}

func (g *MemoryGateway) Ready(_ context.Context) bool {
	return true
}

func matchesFilter(c *Chunk, filter map[string]interface{}) bool {
	if len(filter) == 0 {
		return true
	}
	if c.Metadata == nil {
		return false
	}
	for key, want := range filter {
		got, ok := c.Metadata[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
