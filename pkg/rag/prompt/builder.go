package prompt

import (
	"fmt"
	"strings"

	"ai-docqa-be/pkg/vectorstore"
)

// AnswerBuilder assembles the retrieval-augmented prompt: a fixed instruction
// preamble, numbered context blocks with their source metadata inline, then
// the literal question.
type AnswerBuilder struct {
	query      string
	candidates []*vectorstore.Candidate
}

func NewAnswerBuilder(query string, candidates []*vectorstore.Candidate) *AnswerBuilder {
	return &AnswerBuilder{
		query:      query,
		candidates: candidates,
	}
}

func (b *AnswerBuilder) Build() string {
	var prompt strings.Builder

	b.writeTask(&prompt)
	b.writeContext(&prompt)
	b.writeQuestion(&prompt)

	return prompt.String()
}

func (b *AnswerBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a knowledgeable assistant answering questions from a curated document collection.\n")
	prompt.WriteString("Base your answer strictly on the numbered context passages below and cite the passage numbers you used.\n")
	prompt.WriteString("If the passages do not contain the answer, say so honestly instead of guessing.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *AnswerBuilder) writeContext(prompt *strings.Builder) {
	prompt.WriteString("<context>\n")
	for i, c := range b.candidates {
		chunk := c.Chunk
		prompt.WriteString(fmt.Sprintf("[%d] %s\n", i+1, chunk.Title))
		writeAttribution(prompt, chunk)
		prompt.WriteString(chunk.Content)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</context>\n\n")
}

func writeAttribution(prompt *strings.Builder, chunk *vectorstore.Chunk) {
	if chunk.Metadata == nil {
		return
	}
	var parts []string
	if source, ok := chunk.Metadata[vectorstore.MetaSource].(string); ok && source != "" {
		parts = append(parts, "Source: "+source)
	}
	if url, ok := chunk.Metadata[vectorstore.MetaURL].(string); ok && url != "" {
		parts = append(parts, "URL: "+url)
	}
	if published, ok := chunk.Metadata[vectorstore.MetaPublishedAt].(string); ok && published != "" {
		parts = append(parts, "Published: "+published)
	}
	if len(parts) > 0 {
		prompt.WriteString("(" + strings.Join(parts, " | ") + ")\n")
	}
}

func (b *AnswerBuilder) writeQuestion(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Now provide your complete answer based on the context passages:")
}

// BuildNoContext produces the distinct fallback prompt used when retrieval
// found nothing relevant. It tells the model that no specific context exists
// rather than erroring out.
func BuildNoContext(query string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a helpful assistant. A search over the user's document collection found no passages relevant to their question.\n")
	prompt.WriteString("Answer briefly from general knowledge, state clearly that nothing in the stored documents covers this, and suggest how the user could rephrase.\n")
	prompt.WriteString("</task>\n\n")
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(query)
	prompt.WriteString("\n</user_question>\n")

	return prompt.String()
}
