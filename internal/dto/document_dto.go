package dto

type IngestDocumentRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=500"`
	Content     string `json:"content" validate:"required,min=1"`
	Source      string `json:"source" validate:"omitempty,max=200"`
	URL         string `json:"url" validate:"omitempty,url"`
	PublishedAt string `json:"published_at" validate:"omitempty"`
}

type IngestDocumentResponse struct {
	DocumentId string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"` // "queued": embedding happens asynchronously
}

type SearchDocumentsRequest struct {
	Query string `json:"query" validate:"required,min=1,max=2000"`
	K     int    `json:"k" validate:"omitempty,min=1,max=20"`
}

type SearchCandidateDTO struct {
	Id         string                 `json:"id"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Similarity float64                `json:"similarity"`
}

type DocumentStatsResponse struct {
	TotalChunks int64  `json:"total_chunks"`
	Backend     string `json:"backend"`
}

// PublishEmbedChunksMessage is the payload carried on the ingestion topic
// between the document service and the embedding consumer.
type PublishEmbedChunksMessage struct {
	DocumentId  string   `json:"document_id"`
	Title       string   `json:"title"`
	Source      string   `json:"source,omitempty"`
	URL         string   `json:"url,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Chunks      []string `json:"chunks"`
}
