package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/provider"
)

const socialTitleRunes = 120

// SocialConfig describes a JSON social-posts search API.
type SocialConfig struct {
	Endpoint string
	Token    string
	Platform string
	Limit    int
}

// SocialProvider searches short-form posts for tenant hashtags and keywords.
type SocialProvider struct {
	client  *httpclient.Client
	cfg     SocialConfig
	queries []string
	logger  *slog.Logger
}

var _ provider.Provider = (*SocialProvider)(nil)

type socialPost struct {
	ID       string   `json:"id"`
	Author   string   `json:"author"`
	Caption  string   `json:"caption"`
	URL      string   `json:"url"`
	Hashtags []string `json:"hashtags"`
	Mentions []string `json:"mentions"`
	Views    *int64   `json:"views"`
	Likes    *int64   `json:"likes"`
	Comments *int64   `json:"comments"`
	Shares   *int64   `json:"shares"`
	PostedAt string   `json:"posted_at"`
}

type socialResponse struct {
	Data  []socialPost `json:"data"`
	Error string       `json:"error"`
}

// NewSocialProvider requires an endpoint and a bearer token.
func NewSocialProvider(client *httpclient.Client, cfg SocialConfig, queries []string, logger *slog.Logger) (*SocialProvider, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("social: endpoint is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("social: token is required")
	}
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}
	if cfg.Platform == "" {
		cfg.Platform = "social"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	return &SocialProvider{
		client:  client,
		cfg:     cfg,
		queries: cleanStrings(queries),
		logger:  orDiscard(logger),
	}, nil
}

// Name identifies the provider inside the registry.
func (s *SocialProvider) Name() string {
	return string(provider.KindSocial)
}

// FetchItems runs one search per query; a failed query does not stop the rest.
func (s *SocialProvider) FetchItems(ctx context.Context) ([]domain.ContentItem, error) {
	items := make([]domain.ContentItem, 0)
	var errs []error

	for _, query := range s.queries {
		posts, err := s.search(ctx, query)
		if err != nil {
			s.logger.Warn("social search failed", "query", query, "error", err)
			errs = append(errs, fmt.Errorf("query %q: %w", query, err))
			continue
		}
		for _, post := range posts {
			items = append(items, s.toItem(query, post))
		}
	}

	return items, errors.Join(errs...)
}

func (s *SocialProvider) search(ctx context.Context, query string) ([]socialPost, error) {
	var out socialResponse
	resp, err := s.client.Request(ctx).
		SetAuthToken(s.cfg.Token).
		SetQueryParams(map[string]string{
			"q":     query,
			"limit": fmt.Sprint(s.cfg.Limit),
		}).
		SetResult(&out).
		Get(s.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	return out.Data, nil
}

func (s *SocialProvider) toItem(query string, post socialPost) domain.ContentItem {
	caption := strings.TrimSpace(post.Caption)

	metadata := map[string]any{
		"query":     query,
		"platform":  s.cfg.Platform,
		"post_id":   post.ID,
		"author":    post.Author,
		"hashtags":  post.Hashtags,
		"mentions":  post.Mentions,
		"posted_at": post.PostedAt,
	}
	setCount(metadata, "views", post.Views)
	setCount(metadata, "likes", post.Likes)
	setCount(metadata, "comments", post.Comments)
	setCount(metadata, "shares", post.Shares)

	source := s.cfg.Platform
	if post.Author != "" {
		source = fmt.Sprintf("%s/@%s", s.cfg.Platform, strings.TrimPrefix(post.Author, "@"))
	}

	return domain.ContentItem{
		Source:       source,
		Title:        headline(caption),
		Link:         strings.TrimSpace(post.URL),
		RawSummary:   caption,
		ProviderName: string(provider.KindSocial),
		Metadata:     metadata,
	}
}

func setCount(metadata map[string]any, key string, value *int64) {
	if value != nil {
		metadata[key] = *value
	}
}

// headline takes the first caption line, capped to a short title.
func headline(caption string) string {
	line, _, _ := strings.Cut(caption, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= socialTitleRunes {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:socialTitleRunes])) + "…"
}
