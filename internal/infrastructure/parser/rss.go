package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/provider"
)

// RSSProvider reads RSS/Atom feeds configured for a tenant.
type RSSProvider struct {
	client *httpclient.Client
	feeds  []string
	logger *slog.Logger
}

var _ provider.Provider = (*RSSProvider)(nil)

// NewRSSProvider keeps only http(s) feed URLs.
func NewRSSProvider(client *httpclient.Client, feeds []string, logger *slog.Logger) *RSSProvider {
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}

	valid := make([]string, 0, len(feeds))
	for _, feed := range cleanStrings(feeds) {
		if strings.HasPrefix(feed, "http://") || strings.HasPrefix(feed, "https://") {
			valid = append(valid, feed)
		}
	}

	return &RSSProvider{client: client, feeds: valid, logger: orDiscard(logger)}
}

// Name identifies the provider inside the registry.
func (r *RSSProvider) Name() string {
	return string(provider.KindRSS)
}

// FetchItems returns the union of every feed that could be read.
func (r *RSSProvider) FetchItems(ctx context.Context) ([]domain.ContentItem, error) {
	items := make([]domain.ContentItem, 0)
	var errs []error

	for _, feedURL := range r.feeds {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		feedItems, err := r.fetchFeed(ctx, feedURL)
		if err != nil {
			r.logger.Warn("feed failed", "url", feedURL, "error", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", feedURL, err))
			continue
		}
		r.logger.Debug("feed fetched", "url", feedURL, "count", len(feedItems))
		items = append(items, feedItems...)
	}

	return items, errors.Join(errs...)
}

func (r *RSSProvider) fetchFeed(ctx context.Context, feedURL string) ([]domain.ContentItem, error) {
	body, err := r.client.Get(ctx, feedURL, nil)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = feedURL
	}

	items := make([]domain.ContentItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}

		title := htmlText(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" && link == "" {
			continue
		}

		summary := htmlText(entry.Description)
		if summary == "" {
			summary = htmlText(entry.Content)
		}

		metadata := map[string]any{"feed_url": feedURL}
		if entry.PublishedParsed != nil {
			metadata["published_at"] = entry.PublishedParsed.UTC().Format(time.RFC3339)
		}
		if len(entry.Categories) > 0 {
			metadata["categories"] = entry.Categories
		}
		if len(entry.Authors) > 0 && entry.Authors[0] != nil {
			metadata["author"] = entry.Authors[0].Name
		}

		items = append(items, domain.ContentItem{
			Source:       source,
			Title:        title,
			Link:         link,
			RawSummary:   summary,
			ProviderName: string(provider.KindRSS),
			Metadata:     metadata,
		})
	}

	return items, nil
}

// htmlText turns an HTML fragment into plain text with entities decoded.
// Adjacent elements are separated by a space.
func htmlText(value string) string {
	if !strings.ContainsAny(value, "<&") {
		return collapse(value)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return collapse(value)
	}
	doc.Find("script, style").Remove()

	var parts []string
	doc.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			parts = append(parts, s.Text())
		}
	})
	return collapse(strings.Join(parts, " "))
}
