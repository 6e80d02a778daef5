package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/cexll/structgen/pkg/tool"
)

const (
	fetchTimeout   = 30 * time.Second
	fetchBodyLimit = 2 << 20
	fetchTextLimit = 20000
)

// FetchArgs identify the page to retrieve.
type FetchArgs struct {
	URL string `json:"url" description:"absolute http or https URL to fetch" pattern:"^https?://"`
}

// FetchResult carries the extracted page text.
type FetchResult struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
}

// Fetch returns the HTTP retrieval tool. A nil client uses a default with
// a request timeout.
func Fetch(client *http.Client) (tool.Tool, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return tool.NewFunc("fetch",
		"Fetches a web page and returns its readable text.",
		func(ctx context.Context, args FetchArgs) (FetchResult, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
			if err != nil {
				return FetchResult{}, fmt.Errorf("fetch: build request: %w", err)
			}
			req.Header.Set("Accept", "text/html")
			resp, err := client.Do(req)
			if err != nil {
				return FetchResult{}, fmt.Errorf("fetch: %w", err)
			}
			defer resp.Body.Close()

			body := io.LimitReader(resp.Body, fetchBodyLimit)
			title, text, err := extractText(body)
			if err != nil {
				return FetchResult{}, fmt.Errorf("fetch: parse %s: %w", args.URL, err)
			}
			if len(text) > fetchTextLimit {
				text = text[:fetchTextLimit]
			}
			return FetchResult{
				URL:    args.URL,
				Status: resp.StatusCode,
				Title:  title,
				Text:   text,
			}, nil
		})
}

// extractText walks the parsed document collecting visible text, skipping
// script and style subtrees.
func extractText(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		case html.TextNode:
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(trimmed)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return title, sb.String(), nil
}
