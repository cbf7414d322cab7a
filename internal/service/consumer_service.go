package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the ingestion topic: each message carries a
// pre-chunked document whose chunks get embedded in batches and written to
// the vector gateway.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	embedder  *embedding.Client
	gateway   vectorstore.Gateway
	batchSize int
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	embedder *embedding.Client,
	gateway vectorstore.Gateway,
	batchSize int,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		embedder:  embedder,
		gateway:   gateway,
		batchSize: batchSize,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedChunksMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal ingest message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed, retrying cannot help
		return
	}

	cs.logger.Info("ConsumerService", "Embedding document chunks", map[string]interface{}{
		"document_id": payload.DocumentId,
		"chunks":      len(payload.Chunks),
	})

	results := cs.embedder.EmbedBatch(ctx, payload.Chunks, cs.batchSize)

	var stored []*vectorstore.Chunk
	failed := 0
	for i, res := range results {
		if res.Err != nil {
			cs.logger.Error("ConsumerService", "Chunk embedding failed", map[string]interface{}{
				"document_id": payload.DocumentId,
				"chunk_index": i,
				"error":       res.Err.Error(),
			})
			failed++
			continue
		}
		stored = append(stored, &vectorstore.Chunk{
			ID:        fmt.Sprintf("%s:%d", payload.DocumentId, i),
			Title:     payload.Title,
			Content:   payload.Chunks[i],
			Embedding: res.Vector,
			Metadata: map[string]interface{}{
				vectorstore.MetaSource:      payload.Source,
				vectorstore.MetaURL:         payload.URL,
				vectorstore.MetaPublishedAt: payload.PublishedAt,
				vectorstore.MetaChunkIndex:  i,
				vectorstore.MetaChunkTotal:  len(payload.Chunks),
			},
		})
	}

	// All chunks failed: likely a provider outage, retry the whole message.
	if len(stored) == 0 {
		msg.Nack()
		return
	}

	if _, err := cs.gateway.AddDocuments(ctx, stored); err != nil {
		cs.logger.Error("ConsumerService", "Failed to store embedded chunks", map[string]interface{}{
			"document_id": payload.DocumentId,
			"error":       err.Error(),
		})
		msg.Nack()
		return
	}

	cs.logger.Info("ConsumerService", "Document processed", map[string]interface{}{
		"document_id": payload.DocumentId,
		"stored":      len(stored),
		"failed":      failed,
	})
	msg.Ack()
}
