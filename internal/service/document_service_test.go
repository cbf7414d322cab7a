package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) Generate(_ context.Context, text string, _ string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (stubProvider) Ready(context.Context) bool { return true }

type capturePublisher struct {
	payloads [][]byte
}

func (p *capturePublisher) Publish(_ context.Context, payload []byte) error {
	p.payloads = append(p.payloads, payload)
	return nil
}

func newTestDocumentService(gateway vectorstore.Gateway, publisher IPublisherService) IDocumentService {
	client := embedding.NewClient(stubProvider{}, embedding.ClientConfig{BatchDelay: time.Millisecond})
	return NewDocumentService(gateway, client, publisher, 50, 10, logger.NewNopLogger())
}

func TestDocumentIngestPublishesChunkedMessage(t *testing.T) {
	publisher := &capturePublisher{}
	ds := newTestDocumentService(vectorstore.NewMemoryGateway(), publisher)

	content := strings.Repeat("some sentence about the topic ", 20)
	res, err := ds.Ingest(context.Background(), &dto.IngestDocumentRequest{
		Title:  "Long Doc",
		Source: "unit",
		// Content far above the 50-char chunk size forces multiple chunks.
		Content: content,
	})
	require.NoError(t, err)

	assert.Equal(t, "queued", res.Status)
	assert.NotEmpty(t, res.DocumentId)
	assert.Greater(t, res.ChunkCount, 1)

	require.Len(t, publisher.payloads, 1)
	var msg dto.PublishEmbedChunksMessage
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &msg))
	assert.Equal(t, res.DocumentId, msg.DocumentId)
	assert.Equal(t, "Long Doc", msg.Title)
	assert.Equal(t, "unit", msg.Source)
	assert.Len(t, msg.Chunks, res.ChunkCount)
}

func TestDocumentSearchMapsCandidates(t *testing.T) {
	gateway := vectorstore.NewMemoryGateway()
	_, err := gateway.AddDocuments(context.Background(), []*vectorstore.Chunk{
		{ID: "c1", Title: "First", Content: "alpha"},
		{ID: "c2", Title: "Second", Content: "beta"},
	})
	require.NoError(t, err)

	ds := newTestDocumentService(gateway, &capturePublisher{})

	results, err := ds.Search(context.Background(), &dto.SearchDocumentsRequest{Query: "alpha", K: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Id)
	assert.Equal(t, "First", results[0].Title)
	assert.Greater(t, results[0].Similarity, 0.0)
}

func TestDocumentDelete(t *testing.T) {
	gateway := vectorstore.NewMemoryGateway()
	_, err := gateway.AddDocuments(context.Background(), []*vectorstore.Chunk{
		{ID: "c1", Content: "alpha"},
	})
	require.NoError(t, err)

	ds := newTestDocumentService(gateway, &capturePublisher{})

	deleted, err := ds.Delete(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = ds.Delete(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDocumentStats(t *testing.T) {
	gateway := vectorstore.NewMemoryGateway()
	ds := newTestDocumentService(gateway, &capturePublisher{})

	stats, err := ds.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", stats.Backend)
	assert.Zero(t, stats.TotalChunks)
}
