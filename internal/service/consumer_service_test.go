package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerEmbedsAndStoresPublishedChunks(t *testing.T) {
	ctx := context.Background()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	gateway := vectorstore.NewMemoryGateway()
	client := embedding.NewClient(stubProvider{}, embedding.ClientConfig{BatchDelay: time.Millisecond})

	consumer := NewConsumerService(pubSub, "ingest.test", client, gateway, 2, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	payload, err := json.Marshal(dto.PublishEmbedChunksMessage{
		DocumentId:  "doc-1",
		Title:       "Doc",
		Source:      "unit",
		URL:         "https://example.com",
		PublishedAt: "2024-01-01",
		Chunks:      []string{"chunk one", "chunk two", "chunk three"},
	})
	require.NoError(t, err)

	publisher := NewPublisherService("ingest.test", pubSub)
	require.NoError(t, publisher.Publish(ctx, payload))

	assert.Eventually(t, func() bool {
		stats, err := gateway.Stats(ctx)
		return err == nil && stats.TotalChunks == 3
	}, 5*time.Second, 10*time.Millisecond)

	chunk, err := gateway.GetDocument(ctx, "doc-1:0")
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, "chunk one", chunk.Content)
	assert.Equal(t, "unit", chunk.Metadata[vectorstore.MetaSource])
	assert.Equal(t, 0, chunk.Metadata[vectorstore.MetaChunkIndex])
	assert.Equal(t, 3, chunk.Metadata[vectorstore.MetaChunkTotal])
	assert.NotEmpty(t, chunk.Embedding)
}

func TestConsumerAcksMalformedMessage(t *testing.T) {
	ctx := context.Background()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	gateway := vectorstore.NewMemoryGateway()
	client := embedding.NewClient(stubProvider{}, embedding.ClientConfig{BatchDelay: time.Millisecond})

	consumer := NewConsumerService(pubSub, "ingest.test", client, gateway, 2, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("ingest.test", pubSub)
	require.NoError(t, publisher.Publish(ctx, []byte("not json")))

	// Malformed input is dropped, nothing is stored and nothing blocks.
	time.Sleep(100 * time.Millisecond)
	stats, err := gateway.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
}
