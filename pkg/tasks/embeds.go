package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mvdan.cc/xurls/v2"

	"parley/pkg/logger"
	"parley/pkg/models"
)

// maxEmbedURLs bounds how many links one message resolves previews for.
const maxEmbedURLs = 5

// Fetcher resolves one URL into zero or more embeds.
type Fetcher interface {
	Fetch(ctx context.Context, link string) ([]models.Embed, error)
}

// Appender attaches resolved embeds to a stored message. The messages
// service satisfies this so appends are broadcast as well as persisted.
type Appender interface {
	Append(ctx context.Context, channelID, messageID string, embeds []models.Embed) error
}

// EmbedConsumer extracts links from fresh content, resolves them
// through the fetcher, and appends whatever previews came back.
type EmbedConsumer struct {
	fetcher  Fetcher
	appender Appender
	timeout  time.Duration
}

func NewEmbedConsumer(fetcher Fetcher, appender Appender, timeout time.Duration) *EmbedConsumer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EmbedConsumer{fetcher: fetcher, appender: appender, timeout: timeout}
}

var linkPattern = xurls.Strict()

func (c *EmbedConsumer) Handle(ctx context.Context, op *Op) error {
	var t EmbedTask
	if err := json.Unmarshal(op.Payload, &t); err != nil {
		return fmt.Errorf("decode embed task: %w", err)
	}
	links := extractLinks(t.Content)
	if len(links) == 0 {
		return nil
	}

	embeds := make([]models.Embed, 0, len(links))
	for _, link := range links {
		fctx, cancel := context.WithTimeout(ctx, c.timeout)
		got, err := c.fetcher.Fetch(fctx, link)
		cancel()
		if err != nil {
			logger.Debug("embed_fetch_failed", "message", t.Message, "url", link, "error", err)
			continue
		}
		embeds = append(embeds, got...)
	}
	if len(embeds) == 0 {
		return nil
	}
	return c.appender.Append(ctx, t.Channel, t.Message, embeds)
}

// extractLinks pulls up to maxEmbedURLs distinct links out of content.
func extractLinks(content string) []string {
	raw := linkPattern.FindAllString(content, -1)
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	links := make([]string, 0, len(raw))
	for _, link := range raw {
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
		if len(links) == maxEmbedURLs {
			break
		}
	}
	return links
}

// HTTPFetcher queries a metadata sidecar for link previews. An empty
// base URL disables fetching.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

func NewHTTPFetcher(base string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFetcher{base: base, client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, link string) ([]models.Embed, error) {
	if f.base == "" {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/embed?url=%s", f.base, url.QueryEscape(link))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed service returned %d", resp.StatusCode)
	}
	var embed models.Embed
	if err := json.NewDecoder(resp.Body).Decode(&embed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if embed.Type == "" || embed.Type == models.EmbedNone {
		return nil, nil
	}
	return []models.Embed{embed}, nil
}
