package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chunkModel is the persisted shape of a Chunk.
type chunkModel struct {
	Id        string          `gorm:"type:text;primaryKey"`
	Title     string          `gorm:"type:text"`
	Document  string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 / nomic-embed-text are 768-dim
	Metadata  datatypes.JSON  `gorm:"type:jsonb"`
}

func (chunkModel) TableName() string {
	return "document_chunks"
}

// PgvectorGateway is the networked Gateway backed by Postgres + pgvector.
// Ranking uses cosine distance (<=> operator), which ranges over [0,2];
// similarity = 1 - distance, so anti-correlated vectors score negative and
// never survive a positive relevance threshold.
type PgvectorGateway struct {
	db *gorm.DB
}

func NewPgvectorGateway(db *gorm.DB) (*PgvectorGateway, error) {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector extension: %w", err)
	}
	if err := db.AutoMigrate(&chunkModel{}); err != nil {
		return nil, fmt.Errorf("migrate document_chunks: %w", err)
	}
	return &PgvectorGateway{db: db}, nil
}

func (g *PgvectorGateway) toModel(c *Chunk) (*chunkModel, error) {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	var meta datatypes.JSON
	if c.Metadata != nil {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	return &chunkModel{
		Id:        id,
		Title:     c.Title,
		Document:  c.Content,
		Embedding: pgvector.NewVector(c.Embedding),
		Metadata:  meta,
	}, nil
}

func (g *PgvectorGateway) toChunk(m *chunkModel) *Chunk {
	var meta map[string]interface{}
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return &Chunk{
		ID:        m.Id,
		Title:     m.Title,
		Content:   m.Document,
		Embedding: m.Embedding.Slice(),
		Metadata:  meta,
	}
}

func (g *PgvectorGateway) AddDocuments(ctx context.Context, chunks []*Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := validateChunks(chunks); err != nil {
		return 0, err
	}

	models := make([]*chunkModel, len(chunks))
	for i, c := range chunks {
		m, err := g.toModel(c)
		if err != nil {
			return 0, err
		}
		models[i] = m
	}

	if err := g.db.WithContext(ctx).Create(models).Error; err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	for i, m := range models {
		chunks[i].ID = m.Id
	}
	return len(models), nil
}

func (g *PgvectorGateway) SearchSimilar(ctx context.Context, queryVector []float32, k int, filter map[string]interface{}) ([]*Candidate, error) {
	if k <= 0 {
		k = 3
	}

	type row struct {
		chunkModel
		Distance float64
	}
	var rows []row

	qv := pgvector.NewVector(queryVector)
	if err := g.similarSearch(ctx, qv, k, filter).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	candidates := make([]*Candidate, len(rows))
	for i, r := range rows {
		m := r.chunkModel
		candidates[i] = &Candidate{
			Chunk:      g.toChunk(&m),
			Distance:   r.Distance,
			Similarity: 1 - r.Distance,
		}
	}
	return candidates, nil
}

// similarSearch builds the ranked nearest-neighbour query. The ORDER BY has
// to go through clause.OrderBy: gorm's Order only accepts strings and OrderBy
// values and silently drops a bare clause.Expr.
func (g *PgvectorGateway) similarSearch(ctx context.Context, qv pgvector.Vector, k int, filter map[string]interface{}) *gorm.DB {
	query := g.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, embedding <=> ? AS distance", qv)

	for key, val := range filter {
		query = query.Where("metadata->>? = ?", key, fmt.Sprint(val))
	}

	return query.
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{qv}}}).
		Limit(k)
}

// SearchText is a plain substring match for callers that have no query
// vector. Results carry no meaningful distance.
func (g *PgvectorGateway) SearchText(ctx context.Context, query string, k int) ([]*Candidate, error) {
	if k <= 0 {
		k = 3
	}
	var models []*chunkModel
	err := g.db.WithContext(ctx).
		Where("document ILIKE ? OR title ILIKE ?", "%"+query+"%", "%"+query+"%").
		Limit(k).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	candidates := make([]*Candidate, len(models))
	for i, m := range models {
		candidates[i] = &Candidate{Chunk: g.toChunk(m), Distance: textMatchDistance, Similarity: 1 - textMatchDistance}
	}
	return candidates, nil
}

func (g *PgvectorGateway) GetDocument(ctx context.Context, id string) (*Chunk, error) {
	var m chunkModel
	err := g.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	return g.toChunk(&m), nil
}

func (g *PgvectorGateway) DeleteDocument(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Delete(&chunkModel{}, "id = ?", id).Error
}

func (g *PgvectorGateway) Clear(ctx context.Context) error {
	return g.db.WithContext(ctx).Exec("TRUNCATE TABLE document_chunks").Error
}

func (g *PgvectorGateway) Stats(ctx context.Context) (*Stats, error) {
	var count int64
	if err := g.db.WithContext(ctx).Model(&chunkModel{}).Count(&count).Error; err != nil {
		return nil, err
	}
	return &Stats{TotalChunks: count, Backend: "pgvector"}, nil
}

func (g *PgvectorGateway) Ready(ctx context.Context) bool {
	sqlDB, err := g.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}
