package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/embedding"
	"ai-docqa-be/pkg/utils"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/google/uuid"
)

const defaultSearchK = 5

type IDocumentService interface {
	Ingest(ctx context.Context, request *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error)
	Search(ctx context.Context, request *dto.SearchDocumentsRequest) ([]*dto.SearchCandidateDTO, error)
	Get(ctx context.Context, id string) (*vectorstore.Chunk, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*dto.DocumentStatsResponse, error)
}

type documentService struct {
	gateway      vectorstore.Gateway
	embedder     *embedding.Client
	publisher    IPublisherService
	chunkSize    int
	chunkOverlap int
	logger       logger.ILogger
}

func NewDocumentService(
	gateway vectorstore.Gateway,
	embedder *embedding.Client,
	publisher IPublisherService,
	chunkSize int,
	chunkOverlap int,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		gateway:      gateway,
		embedder:     embedder,
		publisher:    publisher,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       log,
	}
}

// Ingest splits the document and queues it for asynchronous embedding. The
// chunks are not searchable until the consumer has processed the message.
func (ds *documentService) Ingest(ctx context.Context, request *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error) {
	chunks := utils.SplitText(request.Content, ds.chunkSize, ds.chunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	documentID := uuid.NewString()
	payload := dto.PublishEmbedChunksMessage{
		DocumentId:  documentID,
		Title:       request.Title,
		Source:      request.Source,
		URL:         request.URL,
		PublishedAt: request.PublishedAt,
		Chunks:      chunks,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ingest payload: %w", err)
	}

	if err := ds.publisher.Publish(ctx, raw); err != nil {
		return nil, fmt.Errorf("publish ingest message: %w", err)
	}

	ds.logger.Info("DocumentService", "Document queued for embedding", map[string]interface{}{
		"document_id": documentID,
		"title":       request.Title,
		"chunks":      len(chunks),
	})

	return &dto.IngestDocumentResponse{
		DocumentId: documentID,
		ChunkCount: len(chunks),
		Status:     "queued",
	}, nil
}

func (ds *documentService) Search(ctx context.Context, request *dto.SearchDocumentsRequest) ([]*dto.SearchCandidateDTO, error) {
	k := request.K
	if k <= 0 {
		k = defaultSearchK
	}

	queryVector, err := ds.embedder.Embed(ctx, request.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := ds.gateway.SearchSimilar(ctx, queryVector, k, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]*dto.SearchCandidateDTO, len(candidates))
	for i, c := range candidates {
		results[i] = &dto.SearchCandidateDTO{
			Id:         c.Chunk.ID,
			Title:      c.Chunk.Title,
			Content:    c.Chunk.Content,
			Metadata:   c.Chunk.Metadata,
			Similarity: c.Similarity,
		}
	}
	return results, nil
}

func (ds *documentService) Get(ctx context.Context, id string) (*vectorstore.Chunk, error) {
	return ds.gateway.GetDocument(ctx, id)
}

func (ds *documentService) Delete(ctx context.Context, id string) (bool, error) {
	chunk, err := ds.gateway.GetDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if chunk == nil {
		return false, nil
	}
	if err := ds.gateway.DeleteDocument(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (ds *documentService) Clear(ctx context.Context) error {
	return ds.gateway.Clear(ctx)
}

func (ds *documentService) Stats(ctx context.Context) (*dto.DocumentStatsResponse, error) {
	stats, err := ds.gateway.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.DocumentStatsResponse{
		TotalChunks: stats.TotalChunks,
		Backend:     stats.Backend,
	}, nil
}
