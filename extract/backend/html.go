package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// HTML extracts the visible text of an HTML document.
type HTML struct{}

// Extract implements extract.TextBackend.
func (HTML) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// honours <meta charset> and BOMs, defaulting to windows-1252 like browsers
	r, err := charset.NewReader(io.LimitReader(f, MaxInputBytes), "text/html")
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return htmlText(r)
}

// htmlText walks the parsed tree. Block elements end a line; script, style
// and noscript are skipped.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	var sb strings.Builder
	extractTextFromNode(doc, &sb)
	return strings.TrimSpace(sb.String()), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"title": true, "section": true, "article": true, "blockquote": true, "pre": true,
	"table": true, "ul": true, "ol": true, "dt": true, "dd": true,
}

func extractTextFromNode(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(text)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractTextFromNode(c, sb)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		sb.WriteString("\n")
	}
}
