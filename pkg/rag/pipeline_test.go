package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	ready bool
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) Ready(context.Context) bool { return f.ready }

type fakeGateway struct {
	candidates []*vectorstore.Candidate
	searchErr  error
	ready      bool
}

func (f *fakeGateway) AddDocuments(context.Context, []*vectorstore.Chunk) (int, error) {
	return 0, nil
}

func (f *fakeGateway) SearchSimilar(context.Context, []float32, int, map[string]interface{}) ([]*vectorstore.Candidate, error) {
	return f.candidates, f.searchErr
}

func (f *fakeGateway) SearchText(context.Context, string, int) ([]*vectorstore.Candidate, error) {
	return nil, nil
}

func (f *fakeGateway) GetDocument(context.Context, string) (*vectorstore.Chunk, error) {
	return nil, nil
}

func (f *fakeGateway) DeleteDocument(context.Context, string) error { return nil }
func (f *fakeGateway) Clear(context.Context) error                  { return nil }

func (f *fakeGateway) Stats(context.Context) (*vectorstore.Stats, error) {
	return &vectorstore.Stats{}, nil
}

func (f *fakeGateway) Ready(context.Context) bool { return f.ready }

type fakeLLM struct {
	response    string
	chatErr     error
	streamErr   error
	partial     int // chunks delivered before streamErr fires
	ready       bool
	lastHistory []llm.Message
}

func (f *fakeLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	f.lastHistory = history
	return f.response, f.chatErr
}

func (f *fakeLLM) ChatStream(_ context.Context, history []llm.Message, onChunk llm.StreamHandler, _ ...llm.Option) (string, error) {
	f.lastHistory = history
	words := strings.Fields(f.response)
	var full strings.Builder
	for i, word := range words {
		if f.streamErr != nil && i == f.partial {
			return "", f.streamErr
		}
		text := word
		if i > 0 {
			text = " " + word
			full.WriteString(" ")
		}
		full.WriteString(word)
		if err := onChunk(llm.StreamChunk{Text: text, FullText: full.String(), Index: i}); err != nil {
			return "", err
		}
	}
	_ = onChunk(llm.StreamChunk{FullText: full.String(), Index: len(words), Done: true})
	return full.String(), nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

func (f *fakeLLM) Ready(context.Context) bool { return f.ready }

func relevantCandidates(n int) []*vectorstore.Candidate {
	out := make([]*vectorstore.Candidate, n)
	for i := range out {
		out[i] = &vectorstore.Candidate{
			Chunk: &vectorstore.Chunk{
				ID:      string(rune('a' + i)),
				Title:   "Doc",
				Content: "relevant content",
			},
			Distance: 0.2,
		}
	}
	return out
}

func newTestPipeline(e *fakeEmbedder, g *fakeGateway, l *fakeLLM) *Pipeline {
	return NewPipeline(e, g, l, Config{StreamPacing: time.Millisecond}, logger.NewNopLogger())
}

func TestAnswerWithContext(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{candidates: relevantCandidates(2), ready: true}
	model := &fakeLLM{response: "the answer", ready: true}
	p := newTestPipeline(embedder, gateway, model)

	result := p.Answer(context.Background(), "s1", "what is it?", nil)

	assert.True(t, result.Success)
	assert.False(t, result.Fallback)
	assert.Equal(t, "the answer", result.Answer)
	assert.Len(t, result.Context, 2)
	for _, stage := range []string{StageEmbed, StageSearch, StageFilter, StageAssemble, StageGenerate} {
		assert.Contains(t, result.StageTimings, stage)
	}
	// The model saw the retrieved passages, not the bare question.
	require.NotEmpty(t, model.lastHistory)
	assert.Contains(t, model.lastHistory[len(model.lastHistory)-1].Content, "relevant content")
}

func TestAnswerCapsContextDocs(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{candidates: relevantCandidates(5), ready: true}
	model := &fakeLLM{response: "ok", ready: true}
	p := NewPipeline(embedder, gateway, model, Config{MaxContextDocs: 2}, logger.NewNopLogger())

	result := p.Answer(context.Background(), "s1", "q", nil)

	assert.True(t, result.Success)
	assert.Len(t, result.Context, 2)
}

func TestAnswerEmptyContextIsNotAnError(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{candidates: nil, ready: true}
	model := &fakeLLM{response: "general knowledge answer", ready: true}
	p := newTestPipeline(embedder, gateway, model)

	result := p.Answer(context.Background(), "s1", "q", nil)

	assert.True(t, result.Success)
	assert.True(t, result.Fallback)
	assert.Equal(t, "general knowledge answer", result.Answer)
	assert.Empty(t, result.Context)
	// The no-context prompt tells the model retrieval came up empty.
	require.NotEmpty(t, model.lastHistory)
	assert.Contains(t, model.lastHistory[len(model.lastHistory)-1].Content, "no passages")
}

func TestAnswerNotReady(t *testing.T) {
	embedder := &fakeEmbedder{ready: false}
	gateway := &fakeGateway{ready: true}
	model := &fakeLLM{ready: true}
	p := newTestPipeline(embedder, gateway, model)

	result := p.Answer(context.Background(), "s1", "q", nil)

	assert.False(t, result.Success)
	assert.True(t, result.Fallback)
	assert.Equal(t, NotReadyMessage, result.Answer)
	assert.Empty(t, result.StageTimings)
}

func TestAnswerStageFailureRecoversWithFallbackGeneration(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{searchErr: errors.New("index down"), ready: true}
	model := &fakeLLM{response: "best effort answer", ready: true}
	p := newTestPipeline(embedder, gateway, model)

	result := p.Answer(context.Background(), "s1", "q", nil)

	assert.False(t, result.Success)
	assert.True(t, result.Fallback)
	assert.Equal(t, "best effort answer", result.Answer)
}

func TestAnswerDoubleFailureReturnsApology(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{searchErr: errors.New("index down"), ready: true}
	model := &fakeLLM{chatErr: errors.New("model down"), ready: true}
	p := newTestPipeline(embedder, gateway, model)

	result := p.Answer(context.Background(), "s1", "q", nil)

	assert.False(t, result.Success)
	assert.True(t, result.Fallback)
	assert.Equal(t, ApologyMessage, result.Answer)
}

func collectChunks(t *testing.T, emit func(llm.StreamHandler) *Result) ([]llm.StreamChunk, *Result) {
	t.Helper()
	var chunks []llm.StreamChunk
	result := emit(func(chunk llm.StreamChunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks, result
}

func assertChunkContract(t *testing.T, chunks []llm.StreamChunk) {
	t.Helper()
	require.NotEmpty(t, chunks)
	doneCount := 0
	for i, c := range chunks {
		if c.Done {
			doneCount++
			assert.Equal(t, len(chunks)-1, i, "terminal chunk must be last")
		}
		if i > 0 {
			assert.Greater(t, c.Index, chunks[i-1].Index, "indexes must be strictly increasing")
			assert.GreaterOrEqual(t, len(c.FullText), len(chunks[i-1].FullText), "cumulative text must not shrink")
		}
	}
	assert.Equal(t, 1, doneCount, "exactly one terminal chunk")
}

func TestAnswerStreamWithContext(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{candidates: relevantCandidates(1), ready: true}
	model := &fakeLLM{response: "streamed answer text", ready: true}
	p := newTestPipeline(embedder, gateway, model)

	chunks, result := collectChunks(t, func(onChunk llm.StreamHandler) *Result {
		return p.AnswerStream(context.Background(), "s1", "q", nil, onChunk)
	})

	assert.True(t, result.Success)
	assert.False(t, result.Fallback)
	assert.Equal(t, "streamed answer text", result.Answer)
	assertChunkContract(t, chunks)
	assert.Equal(t, "streamed answer text", chunks[len(chunks)-1].FullText)
}

func TestAnswerStreamEmptyContextStreamsCannedMessage(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{candidates: nil, ready: true}
	model := &fakeLLM{response: "unused", ready: true}
	p := newTestPipeline(embedder, gateway, model)

	chunks, result := collectChunks(t, func(onChunk llm.StreamHandler) *Result {
		return p.AnswerStream(context.Background(), "s1", "q", nil, onChunk)
	})

	assert.True(t, result.Success)
	assert.True(t, result.Fallback)
	assert.Equal(t, NoContextMessage, result.Answer)
	assertChunkContract(t, chunks)
	assert.Equal(t, NoContextMessage, chunks[len(chunks)-1].FullText)
}

func TestAnswerStreamRetrievalFailureStreamsApology(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider down"), ready: true}
	gateway := &fakeGateway{ready: true}
	model := &fakeLLM{ready: true}
	p := newTestPipeline(embedder, gateway, model)

	chunks, result := collectChunks(t, func(onChunk llm.StreamHandler) *Result {
		return p.AnswerStream(context.Background(), "s1", "q", nil, onChunk)
	})

	assert.False(t, result.Success)
	assert.True(t, result.Fallback)
	assert.Equal(t, ApologyMessage, result.Answer)
	assertChunkContract(t, chunks)
}

func TestAnswerStreamMidStreamFailureContinuesWithApology(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}, ready: true}
	gateway := &fakeGateway{candidates: relevantCandidates(1), ready: true}
	model := &fakeLLM{response: "one two three four", streamErr: errors.New("stream cut"), partial: 2, ready: true}
	p := newTestPipeline(embedder, gateway, model)

	chunks, result := collectChunks(t, func(onChunk llm.StreamHandler) *Result {
		return p.AnswerStream(context.Background(), "s1", "q", nil, onChunk)
	})

	assert.False(t, result.Success)
	assert.True(t, result.Fallback)
	// The two chunks delivered before the cut remain part of the answer.
	assert.Equal(t, "one two\n\n"+ApologyMessage, result.Answer)
	assert.Equal(t, result.Answer, chunks[len(chunks)-1].FullText)
	assertChunkContract(t, chunks)
}

func TestAnswerStreamNotReady(t *testing.T) {
	embedder := &fakeEmbedder{ready: true}
	gateway := &fakeGateway{ready: true}
	model := &fakeLLM{ready: false}
	p := newTestPipeline(embedder, gateway, model)

	chunks, result := collectChunks(t, func(onChunk llm.StreamHandler) *Result {
		return p.AnswerStream(context.Background(), "s1", "q", nil, onChunk)
	})

	assert.True(t, result.Fallback)
	assert.Equal(t, NotReadyMessage, result.Answer)
	assertChunkContract(t, chunks)
}
