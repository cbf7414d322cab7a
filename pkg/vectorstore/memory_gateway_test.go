package vectorstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChunks(t *testing.T, g *MemoryGateway, n int) {
	t.Helper()
	chunks := make([]*Chunk, n)
	for i := range chunks {
		chunks[i] = &Chunk{
			ID:      fmt.Sprintf("doc:%d", i),
			Title:   fmt.Sprintf("Title %d", i),
			Content: fmt.Sprintf("Content about topic %d", i),
			Metadata: map[string]interface{}{
				MetaSource: "test",
			},
		}
	}
	added, err := g.AddDocuments(context.Background(), chunks)
	require.NoError(t, err)
	require.Equal(t, n, added)
}

func TestMemoryGatewayAddAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	chunk := &Chunk{
		ID:        "doc:1",
		Title:     "Title",
		Content:   "some content",
		Embedding: []float32{0.1, 0.2},
		Metadata:  map[string]interface{}{MetaSource: "unit", MetaChunkIndex: 0},
	}
	added, err := g.AddDocuments(ctx, []*Chunk{chunk})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	got, err := g.GetDocument(ctx, "doc:1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, chunk.Title, got.Title)
	assert.Equal(t, chunk.Content, got.Content)
	assert.Equal(t, chunk.Metadata[MetaSource], got.Metadata[MetaSource])
}

func TestMemoryGatewayRejectsEmptyContent(t *testing.T) {
	g := NewMemoryGateway()

	_, err := g.AddDocuments(context.Background(), []*Chunk{{ID: "x", Content: ""}})
	assert.ErrorIs(t, err, ErrEmptyContent)

	stats, err := g.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
}

func TestMemoryGatewaySearchReturnsAtMostK(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()
	seedChunks(t, g, 7)

	tests := []struct {
		name    string
		k       int
		wantLen int
	}{
		{name: "fewer stored than k", k: 10, wantLen: 7},
		{name: "exactly k", k: 7, wantLen: 7},
		{name: "more stored than k", k: 3, wantLen: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, err := g.SearchSimilar(ctx, []float32{0.5}, tt.k, nil)
			require.NoError(t, err)
			assert.Len(t, candidates, tt.wantLen)
		})
	}
}

func TestMemoryGatewaySearchMetadataFilter(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	_, err := g.AddDocuments(ctx, []*Chunk{
		{ID: "a", Content: "x", Metadata: map[string]interface{}{MetaSource: "blog"}},
		{ID: "b", Content: "y", Metadata: map[string]interface{}{MetaSource: "wiki"}},
		{ID: "c", Content: "z", Metadata: map[string]interface{}{MetaSource: "blog"}},
	})
	require.NoError(t, err)

	candidates, err := g.SearchSimilar(ctx, nil, 10, map[string]interface{}{MetaSource: "blog"})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, "blog", c.Chunk.Metadata[MetaSource])
	}
}

func TestMemoryGatewaySearchText(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	_, err := g.AddDocuments(ctx, []*Chunk{
		{ID: "a", Title: "Go concurrency", Content: "channels and goroutines"},
		{ID: "b", Title: "Cooking", Content: "how to bake bread"},
	})
	require.NoError(t, err)

	candidates, err := g.SearchText(ctx, "GOROUTINES", 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "a", candidates[0].Chunk.ID)
}

func TestMemoryGatewayDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()
	seedChunks(t, g, 3)

	require.NoError(t, g.DeleteDocument(ctx, "doc:1"))
	got, err := g.GetDocument(ctx, "doc:1")
	require.NoError(t, err)
	assert.Nil(t, got)

	stats, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalChunks)

	require.NoError(t, g.Clear(ctx))
	stats, err = g.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
}
