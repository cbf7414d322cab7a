package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Article is the cleaned result of fetching one page.
type Article struct {
	URL         string
	Title       string
	Text        string
	PublishedAt string
	FetchedAt   time.Time
}

// Fetcher drives a headless Chrome instance to pull article text, including
// pages that render their content client-side.
type Fetcher struct {
	headless bool
	timeout  time.Duration
}

func NewFetcher(headless bool, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Fetcher{headless: headless, timeout: timeout}
}

func (f *Fetcher) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
	)
	if f.headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	cancelAll := func() {
		taskCancel()
		allocCancel()
	}
	return taskCtx, cancelAll
}

// Fetch navigates to the URL and extracts title, publish time (when the page
// exposes an article:published_time meta tag) and visible body text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Article, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	taskCtx, cancelTask := f.newContext(timeoutCtx)
	defer cancelTask()

	var title, body, published string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Text("body", &body, chromedp.ByQuery),
		chromedp.Evaluate(`(() => {
			const meta = document.querySelector('meta[property="article:published_time"]');
			return meta ? meta.content : '';
		})()`, &published),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	text := CleanText(body)
	if text == "" {
		return nil, fmt.Errorf("fetch %s: page has no extractable text", url)
	}

	return &Article{
		URL:         url,
		Title:       strings.TrimSpace(title),
		Text:        text,
		PublishedAt: published,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

var (
	multiBlank = regexp.MustCompile(`\n{3,}`)
	multiSpace = regexp.MustCompile(`[ \t]{2,}`)
)

// CleanText collapses the whitespace noise chromedp's body text extraction
// leaves behind (nav bars, repeated blank lines).
func CleanText(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(multiSpace.ReplaceAllString(line, " "))
		cleaned = append(cleaned, line)
	}
	out := strings.Join(cleaned, "\n")
	out = multiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
