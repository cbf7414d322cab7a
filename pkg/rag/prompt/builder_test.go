package prompt

import (
	"strings"
	"testing"

	"ai-docqa-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
)

func TestAnswerBuilderNumbersContextBlocks(t *testing.T) {
	candidates := []*vectorstore.Candidate{
		{Chunk: &vectorstore.Chunk{Title: "First Doc", Content: "alpha content"}},
		{Chunk: &vectorstore.Chunk{Title: "Second Doc", Content: "beta content"}},
	}

	prompt := NewAnswerBuilder("what is alpha?", candidates).Build()

	assert.Contains(t, prompt, "[1] First Doc")
	assert.Contains(t, prompt, "[2] Second Doc")
	assert.Contains(t, prompt, "alpha content")
	assert.Contains(t, prompt, "beta content")
	assert.Contains(t, prompt, "<user_question>\nwhat is alpha?\n</user_question>")
	// Context before question.
	assert.Less(t, strings.Index(prompt, "alpha content"), strings.Index(prompt, "<user_question>"))
}

func TestAnswerBuilderWritesAttribution(t *testing.T) {
	candidates := []*vectorstore.Candidate{
		{Chunk: &vectorstore.Chunk{
			Title:   "Cited Doc",
			Content: "body",
			Metadata: map[string]interface{}{
				vectorstore.MetaSource:      "handbook",
				vectorstore.MetaURL:         "https://example.com/doc",
				vectorstore.MetaPublishedAt: "2024-01-02",
			},
		}},
	}

	prompt := NewAnswerBuilder("q", candidates).Build()

	assert.Contains(t, prompt, "(Source: handbook | URL: https://example.com/doc | Published: 2024-01-02)")
}

func TestAnswerBuilderSkipsEmptyAttribution(t *testing.T) {
	candidates := []*vectorstore.Candidate{
		{Chunk: &vectorstore.Chunk{Title: "Bare", Content: "body"}},
	}

	prompt := NewAnswerBuilder("q", candidates).Build()

	assert.NotContains(t, prompt, "(Source:")
}

func TestBuildNoContextMentionsEmptyRetrieval(t *testing.T) {
	prompt := BuildNoContext("what about x?")

	assert.Contains(t, prompt, "no passages")
	assert.Contains(t, prompt, "what about x?")
	assert.NotContains(t, prompt, "<context>")
}
