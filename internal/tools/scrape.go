package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	ScrapeToolName = "scrape_webpage"

	bodyPreviewLength = 500
	maxPageBytes      = 4 << 20
)

// ScrapeTool fetches a page and summarises its title, description and text
type ScrapeTool struct {
	client *http.Client
}

// NewScrapeTool creates the tool
func NewScrapeTool(client *http.Client) *ScrapeTool {
	return &ScrapeTool{client: defaultClient(client)}
}

func (t *ScrapeTool) Spec() mcp.Tool {
	return mcp.NewTool(ScrapeToolName,
		mcp.WithDescription("Fetch a web page and return its title, meta description and a preview of its text"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http or https URL"),
		),
	)
}

// Execute takes the URL as its first parameter
func (t *ScrapeTool) Execute(ctx context.Context, params []string) (string, error) {
	if len(params) == 0 || strings.TrimSpace(params[0]) == "" {
		return "Error: URL parameter is missing", nil
	}
	raw := strings.Trim(strings.TrimSpace(params[0]), `"'`)
	if !isHTTPURL(raw) {
		return fmt.Sprintf("Error: Invalid URL format: %s", raw), nil
	}

	page, err := t.fetch(ctx, raw)
	if err != nil {
		return fmt.Sprintf("Error fetching web page: %v", err), nil
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", raw, err)
	}
	return summarisePage(doc), nil
}

func (t *ScrapeTool) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func summarisePage(doc *html.Node) string {
	title := orNA(collapseSpace(nodeText(findFirst(doc, atom.Title))))
	description := orNA(metaDescription(doc))

	body := collapseSpace(nodeText(findFirst(doc, atom.Body)))
	if runes := []rune(body); len(runes) > bodyPreviewLength {
		body = string(runes[:bodyPreviewLength]) + "..."
	}

	return fmt.Sprintf("Title: %s\nDescription: %s\nBody preview: %s", title, description, orNA(body))
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// nodeText concatenates visible text, skipping script and style contents
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Noscript) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func metaDescription(doc *html.Node) string {
	var found string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
			var name, content string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					name = strings.ToLower(a.Val)
				case "content":
					content = a.Val
				}
			}
			if name == "description" {
				found = strings.TrimSpace(content)
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return found
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
