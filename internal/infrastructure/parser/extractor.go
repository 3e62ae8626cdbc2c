package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/ports"
)

var errNoText = errors.New("no readable text")

const boilerplateSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

// HTMLExtractor downloads pages and strips markup down to readable text.
type HTMLExtractor struct {
	client *httpclient.Client
}

var _ ports.TextExtractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor builds an extractor on the shared HTTP client.
func NewHTMLExtractor(client *httpclient.Client) *HTMLExtractor {
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}
	return &HTMLExtractor{client: client}
}

// Extract returns the main text of the page at link.
func (e *HTMLExtractor) Extract(ctx context.Context, link string) (string, error) {
	if strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("extract: empty link")
	}

	body, err := e.client.Get(ctx, link, nil)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("extract: parse html: %w", err)
	}

	text := ExtractText(doc)
	if text == "" {
		return "", errNoText
	}
	return text, nil
}

// ExtractText prefers <article>/<main> content and falls back to paragraphs.
func ExtractText(doc *goquery.Document) string {
	doc.Find(boilerplateSelector).Remove()

	for _, selector := range []string{"article", "main", "[role=main]"} {
		if text := paragraphsText(doc.Find(selector).First()); text != "" {
			return text
		}
	}

	if text := paragraphsText(doc.Selection); text != "" {
		return text
	}

	return collapse(doc.Find("body").Text())
}

func paragraphsText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	var parts []string
	sel.Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return collapse(sel.Text())
	}
	return strings.Join(parts, "\n")
}

func collapse(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
