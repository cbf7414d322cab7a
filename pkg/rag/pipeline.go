package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag/prompt"
	"ai-docqa-be/pkg/vectorstore"
)

// Pipeline stage names used as StageTimings keys.
const (
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageFilter   = "filter"
	StageAssemble = "assemble"
	StageGenerate = "generate"
)

// Embedder is the slice of the embedding client the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Ready(ctx context.Context) bool
}

// Config tunes the query pipeline. Zero values pick the defaults below.
type Config struct {
	TopK                int           // candidates fetched from the index
	SimilarityThreshold float64       // candidates below this are discarded
	MaxContextDocs      int           // ranked candidates kept for the prompt
	SearchTimeout       time.Duration // embed + search stages
	GenerateTimeout     time.Duration // generation stage
	StreamPacing        time.Duration // artificial delay between fallback words
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.TopK <= 0 {
		out.TopK = 3
	}
	if out.SimilarityThreshold <= 0 {
		out.SimilarityThreshold = 0.1
	}
	if out.MaxContextDocs <= 0 {
		out.MaxContextDocs = 3
	}
	if out.SearchTimeout <= 0 {
		out.SearchTimeout = 10 * time.Second
	}
	if out.GenerateTimeout <= 0 {
		out.GenerateTimeout = 120 * time.Second
	}
	if out.StreamPacing <= 0 {
		out.StreamPacing = 30 * time.Millisecond
	}
	return out
}

// ContextBlock is one passage that actually made it into the prompt.
type ContextBlock struct {
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Source      string  `json:"source,omitempty"`
	URL         string  `json:"url,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Similarity  float64 `json:"similarity"`
}

// Result is what every query gets back. Success=false means a stage failed
// and the answer came from the degraded path; Fallback=true flags any answer
// not generated from retrieved context.
type Result struct {
	Query        string                   `json:"query"`
	SessionID    string                   `json:"session_id"`
	Answer       string                   `json:"answer"`
	Context      []ContextBlock           `json:"context"`
	StageTimings map[string]time.Duration `json:"stage_timings"`
	Success      bool                     `json:"success"`
	Fallback     bool                     `json:"fallback"`
}

// Pipeline composes embedding, similarity search, relevance filtering,
// context assembly and generation into the 5-stage query-answering flow.
// Every dependency is injected; there is no process-wide state.
type Pipeline struct {
	embedder Embedder
	gateway  vectorstore.Gateway
	llm      llm.LLMProvider
	cfg      Config
	log      logger.ILogger
}

func NewPipeline(embedder Embedder, gateway vectorstore.Gateway, llmProvider llm.LLMProvider, cfg Config, log logger.ILogger) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		gateway:  gateway,
		llm:      llmProvider,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// Ready confirms all three backends before a query is accepted. Readiness is
// a precondition, not a fallback: a not-ready pipeline answers with a canned
// message and spends no retrieval quota.
func (p *Pipeline) Ready(ctx context.Context) bool {
	return p.embedder.Ready(ctx) && p.gateway.Ready(ctx) && p.llm.Ready(ctx)
}

// Answer runs the buffered pipeline. It never returns an error: every
// degraded path ends in a textual answer with provenance flagged on the
// result.
func (p *Pipeline) Answer(ctx context.Context, sessionID, query string, history []llm.Message) *Result {
	result := &Result{
		Query:        query,
		SessionID:    sessionID,
		StageTimings: make(map[string]time.Duration),
	}

	if !p.Ready(ctx) {
		p.log.Warn("Pipeline", "Backend not ready, returning canned answer", map[string]interface{}{
			"session_id": sessionID,
		})
		result.Answer = NotReadyMessage
		result.Fallback = true
		return result
	}

	candidates, err := p.retrieve(ctx, query, result)
	if err != nil {
		return p.recoverWithFallback(ctx, result, err)
	}

	start := time.Now()
	var answer string
	if len(candidates) == 0 {
		// Nothing relevant: distinct no-context generation, not an error.
		answer, err = p.generateNoContext(ctx, query, history)
		result.Fallback = true
	} else {
		answer, err = p.generate(ctx, query, history, candidates)
	}
	result.StageTimings[StageGenerate] = time.Since(start)

	if err != nil {
		return p.recoverWithFallback(ctx, result, err)
	}

	result.Answer = answer
	result.Success = true
	return result
}

// AnswerStream mirrors stages 1-4 of Answer, then streams generation chunks
// through onChunk. When context is empty the fallback message is streamed
// word by word with artificial pacing, so the client sees the same chunk
// contract on every path. Exactly one Done chunk is emitted.
func (p *Pipeline) AnswerStream(ctx context.Context, sessionID, query string, history []llm.Message, onChunk llm.StreamHandler) *Result {
	result := &Result{
		Query:        query,
		SessionID:    sessionID,
		StageTimings: make(map[string]time.Duration),
	}

	if !p.Ready(ctx) {
		result.Answer = NotReadyMessage
		result.Fallback = true
		p.streamCanned(ctx, NotReadyMessage, "", 0, onChunk)
		return result
	}

	candidates, err := p.retrieve(ctx, query, result)
	if err != nil {
		p.log.Error("Pipeline", "Retrieval failed during streaming query", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		result.Answer = ApologyMessage
		result.Fallback = true
		p.streamCanned(ctx, ApologyMessage, "", 0, onChunk)
		return result
	}

	start := time.Now()
	defer func() {
		result.StageTimings[StageGenerate] = time.Since(start)
	}()

	if len(candidates) == 0 {
		result.Answer = NoContextMessage
		result.Success = true
		result.Fallback = true
		p.streamCanned(ctx, NoContextMessage, "", 0, onChunk)
		return result
	}

	answerPrompt := prompt.NewAnswerBuilder(query, candidates).Build()
	genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()

	chunkCount := 0
	streamed := ""
	counting := func(chunk llm.StreamChunk) error {
		if !chunk.Done {
			chunkCount++
			streamed = chunk.FullText
		}
		return onChunk(chunk)
	}

	full, err := p.llm.ChatStream(genCtx, append(history, llm.Message{Role: "user", Content: answerPrompt}), counting)
	if err != nil {
		p.log.Error("Pipeline", "Streaming generation failed", map[string]interface{}{
			"session_id":      sessionID,
			"chunks_streamed": chunkCount,
			"error":           err.Error(),
		})
		// Keep the contract: the cumulative text never shrinks and exactly
		// one terminal chunk goes out.
		result.Answer = ApologyMessage
		if streamed != "" {
			result.Answer = streamed + "\n\n" + ApologyMessage
		}
		result.Fallback = true
		p.streamCanned(ctx, ApologyMessage, streamed, chunkCount, onChunk)
		return result
	}

	result.Answer = full
	result.Success = true
	return result
}

// retrieve runs stages 1-3 plus context assembly and fills in the result's
// context blocks and timings.
func (p *Pipeline) retrieve(ctx context.Context, query string, result *Result) ([]*vectorstore.Candidate, error) {
	searchCtx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	defer cancel()

	// Stage 1: query embedding
	start := time.Now()
	queryVector, err := p.embedder.Embed(searchCtx, query)
	result.StageTimings[StageEmbed] = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Stage 2: similarity search
	start = time.Now()
	candidates, err := p.gateway.SearchSimilar(searchCtx, queryVector, p.cfg.TopK, nil)
	result.StageTimings[StageSearch] = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	// Stage 3: relevance filtering
	start = time.Now()
	relevant := FilterRelevantContext(candidates, p.cfg.SimilarityThreshold)
	result.StageTimings[StageFilter] = time.Since(start)

	// Stage 4: context assembly, ranked order up to the configured cap. No
	// token-budget accounting here, just a document count cap.
	start = time.Now()
	if len(relevant) > p.cfg.MaxContextDocs {
		relevant = relevant[:p.cfg.MaxContextDocs]
	}
	result.Context = toContextBlocks(relevant)
	result.StageTimings[StageAssemble] = time.Since(start)

	return relevant, nil
}

func (p *Pipeline) generate(ctx context.Context, query string, history []llm.Message, candidates []*vectorstore.Candidate) (string, error) {
	answerPrompt := prompt.NewAnswerBuilder(query, candidates).Build()

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()
	return p.llm.Chat(genCtx, append(history, llm.Message{Role: "user", Content: answerPrompt}))
}

func (p *Pipeline) generateNoContext(ctx context.Context, query string, history []llm.Message) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()
	return p.llm.Chat(genCtx, append(history, llm.Message{Role: "user", Content: prompt.BuildNoContext(query)}))
}

// recoverWithFallback handles a failed stage: one best-effort fallback
// generation, then the hard-coded apology. The caller never sees the raw
// backend error.
func (p *Pipeline) recoverWithFallback(ctx context.Context, result *Result, stageErr error) *Result {
	p.log.Error("Pipeline", "Stage failed, attempting fallback answer", map[string]interface{}{
		"session_id": result.SessionID,
		"error":      stageErr.Error(),
	})

	result.Fallback = true
	answer, err := p.generateNoContext(ctx, result.Query, nil)
	if err != nil {
		p.log.Error("Pipeline", "Fallback generation also failed", map[string]interface{}{
			"session_id": result.SessionID,
			"error":      err.Error(),
		})
		result.Answer = ApologyMessage
		return result
	}
	result.Answer = answer
	return result
}

// streamCanned delivers a fixed message word by word with small pacing and
// finishes with the single Done chunk. After a broken provider stream the
// caller passes the text and index already delivered, so FullText keeps
// accumulating instead of restarting.
func (p *Pipeline) streamCanned(ctx context.Context, message, prefix string, startIndex int, onChunk llm.StreamHandler) {
	words := strings.Fields(message)
	var full strings.Builder
	full.WriteString(prefix)
	index := startIndex

	for i, word := range words {
		text := word
		switch {
		case i == 0 && prefix != "":
			text = "\n\n" + word
		case i > 0:
			text = " " + word
		}
		full.WriteString(text)

		if err := onChunk(llm.StreamChunk{
			Text:     text,
			FullText: full.String(),
			Index:    index,
			Done:     false,
		}); err != nil {
			break
		}
		index++

		select {
		case <-time.After(p.cfg.StreamPacing):
		case <-ctx.Done():
			// Fall through to the terminal chunk so the client still
			// observes completion.
		}
	}

	_ = onChunk(llm.StreamChunk{
		FullText: full.String(),
		Index:    index,
		Done:     true,
	})
}

func toContextBlocks(candidates []*vectorstore.Candidate) []ContextBlock {
	blocks := make([]ContextBlock, len(candidates))
	for i, c := range candidates {
		block := ContextBlock{
			Title:      c.Chunk.Title,
			Content:    c.Chunk.Content,
			Similarity: c.Similarity,
		}
		if c.Chunk.Metadata != nil {
			if source, ok := c.Chunk.Metadata[vectorstore.MetaSource].(string); ok {
				block.Source = source
			}
			if url, ok := c.Chunk.Metadata[vectorstore.MetaURL].(string); ok {
				block.URL = url
			}
			if published, ok := c.Chunk.Metadata[vectorstore.MetaPublishedAt].(string); ok {
				block.PublishedAt = published
			}
		}
		blocks[i] = block
	}
	return blocks
}
