package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/provider"
)

const defaultNewsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsAPIConfig describes a NewsAPI-compatible search endpoint.
type NewsAPIConfig struct {
	Endpoint string
	APIKey   string
	Language string
	PageSize int
}

// NewsAPIProvider runs one search per tenant query.
type NewsAPIProvider struct {
	client  *httpclient.Client
	cfg     NewsAPIConfig
	queries []string
	logger  *slog.Logger
}

var _ provider.Provider = (*NewsAPIProvider)(nil)

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// NewNewsAPIProvider requires an API key; queries are usually the tenant's brands.
func NewNewsAPIProvider(client *httpclient.Client, cfg NewsAPIConfig, queries []string, logger *slog.Logger) (*NewsAPIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("newsapi: api key is required")
	}
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultNewsAPIEndpoint
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &NewsAPIProvider{
		client:  client,
		cfg:     cfg,
		queries: cleanStrings(queries),
		logger:  orDiscard(logger),
	}, nil
}

// Name identifies the provider inside the registry.
func (n *NewsAPIProvider) Name() string {
	return string(provider.KindNewsAPI)
}

// FetchItems searches every query; failed queries are logged and skipped.
func (n *NewsAPIProvider) FetchItems(ctx context.Context) ([]domain.ContentItem, error) {
	items := make([]domain.ContentItem, 0)
	var errs []error

	for _, query := range n.queries {
		found, err := n.search(ctx, query)
		if err != nil {
			n.logger.Warn("news search failed", "query", query, "error", err)
			errs = append(errs, fmt.Errorf("query %q: %w", query, err))
			continue
		}
		items = append(items, found...)
	}

	return items, errors.Join(errs...)
}

func (n *NewsAPIProvider) search(ctx context.Context, query string) ([]domain.ContentItem, error) {
	params := map[string]string{
		"q":        query,
		"pageSize": strconv.Itoa(n.cfg.PageSize),
		"sortBy":   "publishedAt",
	}
	if n.cfg.Language != "" {
		params["language"] = n.cfg.Language
	}

	var out newsAPIResponse
	resp, err := n.client.Request(ctx).
		SetQueryParams(params).
		SetHeader("X-Api-Key", n.cfg.APIKey).
		SetResult(&out).
		SetError(&out).
		Get(n.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return nil, err
	}
	if out.Status != "" && out.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: %s", out.Code, out.Message)
	}

	items := make([]domain.ContentItem, 0, len(out.Articles))
	for _, a := range out.Articles {
		if strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.URL) == "" {
			continue
		}
		source := strings.TrimSpace(a.Source.Name)
		if source == "" {
			source = "newsapi"
		}
		items = append(items, domain.ContentItem{
			Source:       source,
			Title:        strings.TrimSpace(a.Title),
			Link:         strings.TrimSpace(a.URL),
			RawSummary:   strings.TrimSpace(a.Description),
			ProviderName: string(provider.KindNewsAPI),
			Metadata: map[string]any{
				"query":        query,
				"author":       a.Author,
				"published_at": a.PublishedAt,
			},
		})
	}
	return items, nil
}
