package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/provider"
)

const (
	arxivBaseURL         = "https://arxiv.org"
	defaultArxivPageSize = 200
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivProvider crawls arXiv category listings and returns the newest entries.
type ArxivProvider struct {
	client     *httpclient.Client
	categories []string
	pageSize   int
	lookback   int
	logger     *slog.Logger
}

var _ provider.Provider = (*ArxivProvider)(nil)

// NewArxivProvider wires category listing URLs; pageSize defaults to 200 and
// lookback (days kept, counted from the newest listed day) to 1.
func NewArxivProvider(client *httpclient.Client, categories []string, lookback int, logger *slog.Logger) *ArxivProvider {
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}
	if lookback <= 0 {
		lookback = 1
	}
	return &ArxivProvider{
		client:     client,
		categories: categories,
		pageSize:   defaultArxivPageSize,
		lookback:   lookback,
		logger:     orDiscard(logger),
	}
}

// Name identifies the provider inside the registry.
func (a *ArxivProvider) Name() string {
	return string(provider.KindArxiv)
}

// FetchItems walks each category URL; a failing category is logged and skipped.
func (a *ArxivProvider) FetchItems(ctx context.Context) ([]domain.ContentItem, error) {
	results := make([]domain.ContentItem, 0)
	seen := map[string]struct{}{}
	var errs []error

	for _, categoryURL := range a.categories {
		items, err := a.scanCategory(ctx, categoryURL)
		if err != nil {
			a.logger.Warn("arxiv category failed", "url", categoryURL, "error", err)
			errs = append(errs, fmt.Errorf("category %s: %w", categoryURL, err))
		}
		for _, item := range items {
			if _, ok := seen[item.Link]; ok {
				continue
			}
			seen[item.Link] = struct{}{}
			results = append(results, item)
		}
	}

	return results, errors.Join(errs...)
}

func (a *ArxivProvider) scanCategory(ctx context.Context, categoryURL string) ([]domain.ContentItem, error) {
	category := categoryName(categoryURL)

	var (
		collected []domain.ContentItem
		cutoff    time.Time
	)

	skip := 0
	for {
		pageURL, err := buildPageURL(categoryURL, skip, a.pageSize)
		if err != nil {
			return collected, err
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return collected, err
		}

		pageItems, shouldContinue := a.extractEntries(doc, &cutoff, category)
		collected = append(collected, pageItems...)

		if !shouldContinue {
			return collected, nil
		}
		skip += a.pageSize
	}
}

func (a *ArxivProvider) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := a.client.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request listing: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	return doc, nil
}

// extractEntries keeps entries newer than cutoff. The cutoff is fixed from the
// first dated entry seen, which is the newest one on an arXiv listing.
func (a *ArxivProvider) extractEntries(doc *goquery.Document, cutoff *time.Time, category string) ([]domain.ContentItem, bool) {
	var (
		collected    []domain.ContentItem
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		item, publishedAt := parseEntry(dt, dd, category)
		day := publishedAt.UTC().Truncate(24 * time.Hour)
		if cutoff.IsZero() {
			*cutoff = day.AddDate(0, 0, -(a.lookback - 1))
		}

		if day.Before(*cutoff) {
			continueScan = false
			return false
		}

		collected = append(collected, item)
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseEntry(dt, dd *goquery.Selection, category string) (domain.ContentItem, time.Time) {
	anchor := dt.Find("a[href*=\"/abs/\"]").First()
	id := strings.TrimSpace(anchor.Text())

	href, _ := anchor.Attr("href")
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if href != "" && !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	summary := dd.Find("p.mathjax").First().Text()
	summary = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(summary), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	publishedAt := time.Now().UTC()
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed
		}
	}

	source := "arxiv"
	if category != "" {
		source = fmt.Sprintf("arxiv/%s", category)
	}

	return domain.ContentItem{
		Source:       source,
		Title:        title,
		Link:         href,
		RawSummary:   summary,
		ProviderName: string(provider.KindArxiv),
		Metadata: map[string]any{
			"arxiv_id":     id,
			"category":     category,
			"published_at": publishedAt.Format(time.RFC3339),
		},
	}, publishedAt
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// categoryName extracts "cs.AI" from ".../list/cs.AI/pastweek".
func categoryName(listURL string) string {
	parsed, err := url.Parse(listURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, p := range parts {
		if p == "list" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return path.Base(parsed.Path)
}
