package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// userAgent matches a common browser signature; several sites refuse the
// Go default.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// ParseURL fetches a web page and produces a single unit containing its
// visible text with script and style content stripped, plus the page
// title in metadata.
//
// URLs are only reachable programmatically; the folder watcher never
// dispatches here.
func (p *Parser) ParseURL(ctx context.Context, rawURL string) ([]Unit, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", rawURL, err)
	}

	doc.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var sb strings.Builder
	for _, node := range doc.Nodes {
		collectText(node, &sb)
	}

	meta := map[string]string{
		"source": rawURL,
		"type":   KindURL.String(),
		"url":    rawURL,
		"title":  title,
	}

	p.logger.Debug("parsed URL", "url", rawURL, "title", title)
	return []Unit{{Content: strings.TrimSpace(sb.String()), Metadata: meta}}, nil
}

// collectText walks the node tree appending trimmed text segments, one
// per line, mirroring get-text-with-newline-separator extraction.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
