package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BatchResult is the per-item outcome of EmbedBatch. A failed batch marks its
// items with Err without aborting the remaining batches.
type BatchResult struct {
	Index  int
	Vector []float32
	Err    error
}

// ClientConfig tunes the client. Zero values pick the defaults below.
type ClientConfig struct {
	MaxInputChars int           // inputs longer than this are truncated, not rejected (~4 chars/token)
	CallTimeout   time.Duration // single embed call
	BatchTimeout  time.Duration // whole batch call budget
	BatchDelay    time.Duration // self-imposed pause between batches for provider rate limits
	Workers       int           // bounded concurrency across batches
}

func (c *ClientConfig) withDefaults() ClientConfig {
	out := *c
	if out.MaxInputChars <= 0 {
		out.MaxInputChars = 8000
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 10 * time.Second
	}
	if out.BatchTimeout <= 0 {
		out.BatchTimeout = 60 * time.Second
	}
	if out.BatchDelay <= 0 {
		out.BatchDelay = 200 * time.Millisecond
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	return out
}

// Client wraps a Provider with truncation, timeouts and batch processing.
type Client struct {
	provider Provider
	cfg      ClientConfig
}

func NewClient(provider Provider, cfg ClientConfig) *Client {
	return &Client{provider: provider, cfg: cfg.withDefaults()}
}

func (c *Client) Ready(ctx context.Context) bool {
	return c.provider.Ready(ctx)
}

// Embed returns the vector for one text, truncating oversized input.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskQuery, c.cfg.CallTimeout)
}

// EmbedDocument is Embed with the document-side task type hint.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskDocument, c.cfg.CallTimeout)
}

func (c *Client) embed(ctx context.Context, text string, taskType string, timeout time.Duration) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty input text")
	}
	text = c.truncate(text)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vec, err := c.provider.Generate(callCtx, text, taskType)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}

func (c *Client) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= c.cfg.MaxInputChars {
		return text
	}
	return string(runes[:c.cfg.MaxInputChars])
}

type batchJob struct {
	start int
	texts []string
}

// EmbedBatch embeds every text, batchSize items at a time, over a bounded
// worker pool. Results are index-aligned with the input; a batch failure is
// recorded per item and does not stop the other batches.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, batchSize int) []BatchResult {
	results := make([]BatchResult, len(texts))
	if len(texts) == 0 {
		return results
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	jobs := make(chan batchJob)
	var wg sync.WaitGroup

	workers := c.cfg.Workers
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				c.processBatch(ctx, job, results)

				// Pause between batches: self-imposed rate limiting, not
				// real backpressure from the provider.
				select {
				case <-time.After(c.cfg.BatchDelay):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		select {
		case jobs <- batchJob{start: start, texts: texts[start:end]}:
		case <-ctx.Done():
			for i := start; i < len(texts); i++ {
				results[i] = BatchResult{Index: i, Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (c *Client) processBatch(ctx context.Context, job batchJob, results []BatchResult) {
	for i, text := range job.texts {
		idx := job.start + i
		vec, err := c.embed(ctx, text, TaskDocument, c.cfg.BatchTimeout)
		results[idx] = BatchResult{Index: idx, Vector: vec, Err: err}
	}
}
