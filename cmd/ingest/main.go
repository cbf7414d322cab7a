package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ai-docqa-be/pkg/scraper"

	"github.com/fatih/color"
)

// ingest fetches web pages with headless Chrome and posts the cleaned text
// to a running backend's document ingest endpoint.
//
// Usage:
//
//	go run ./cmd/ingest -server http://localhost:3000 -source "example" <url> [<url>...]
func main() {
	serverURL := flag.String("server", "http://localhost:3000", "backend base URL")
	source := flag.String("source", "web", "source label stored with each document")
	timeout := flag.Duration("timeout", 45*time.Second, "per-page fetch timeout")
	headless := flag.Bool("headless", true, "run Chrome headless")
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		color.Red("No URLs given")
		flag.Usage()
		os.Exit(1)
	}

	fetcher := scraper.NewFetcher(*headless, *timeout)
	client := &http.Client{Timeout: 30 * time.Second}

	failures := 0
	for _, url := range urls {
		color.Cyan("Fetching %s ...", url)

		article, err := fetcher.Fetch(context.Background(), url)
		if err != nil {
			color.Red("  fetch failed: %v", err)
			failures++
			continue
		}
		if strings.TrimSpace(article.Text) == "" {
			color.Yellow("  no extractable text, skipped")
			failures++
			continue
		}

		resp, err := postDocument(client, *serverURL, *source, article)
		if err != nil {
			color.Red("  ingest failed: %v", err)
			failures++
			continue
		}
		color.Green("  queued: document_id=%s chunks=%d", resp.DocumentId, resp.ChunkCount)
	}

	if failures > 0 {
		color.Red("Done with %d failure(s)", failures)
		os.Exit(1)
	}
	color.Green("Done: %d page(s) queued", len(urls))
}

type ingestRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Source      string `json:"source,omitempty"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

type ingestResponse struct {
	DocumentId string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

func postDocument(client *http.Client, serverURL, source string, article *scraper.Article) (*ingestResponse, error) {
	title := article.Title
	if title == "" {
		title = article.URL
	}
	payload, err := json.Marshal(ingestRequest{
		Title:       title,
		Content:     scraper.CleanText(article.Text),
		Source:      source,
		URL:         article.URL,
		PublishedAt: article.PublishedAt,
	})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(serverURL+"/api/document/v1", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Data ingestResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &envelope.Data, nil
}
