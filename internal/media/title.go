package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

const (
	titleTimeout  = 10 * time.Second
	maxTitleBytes = 2 << 20
	userAgent     = "Mozilla/5.0 (compatible; call-sentiment/1.0)"
)

// FetchTitle returns the text of the page's <title> element. Callers treat
// failure as non-fatal; the title is only used as a report heading.
func FetchTitle(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	title, err := parseTitle(io.LimitReader(resp.Body, maxTitleBytes))
	if err != nil {
		return "", err
	}
	log.Debug().Str("url", pageURL).Str("title", title).Msg("Page title fetched")
	return title, nil
}

// parseTitle extracts the first <title> text from an HTML document.
func parseTitle(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var find func(*html.Node) (string, bool)
	find = func(n *html.Node) (string, bool) {
		if n.Type == html.ElementNode && n.Data == "title" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			return strings.Join(strings.Fields(sb.String()), " "), true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t, ok := find(c); ok {
				return t, true
			}
		}
		return "", false
	}

	title, ok := find(doc)
	if !ok || title == "" {
		return "", fmt.Errorf("page has no title")
	}
	return title, nil
}
