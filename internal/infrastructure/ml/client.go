package ml

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/ports"
)

// Client talks to a self-hosted inference service for classification and summarization.
type Client struct {
	endpoint string
	apiKey   string
	http     *httpclient.Client
}

var _ ports.Enricher = (*Client)(nil)

type classifyRequest struct {
	Text   string   `json:"text"`
	Brands []string `json:"brands"`
}

type classifyResponse struct {
	Brands         []string `json:"brands"`
	Summary        string   `json:"summary"`
	Sentiment      string   `json:"sentiment"`
	Topic          string   `json:"topic"`
	EstimatedReach int64    `json:"estimated_reach"`
}

// NewClient creates a reusable client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     httpclient.New(httpclient.Options{Timeout: timeout}),
	}
}

// ClassifySummarize posts the text to /classify.
func (c *Client) ClassifySummarize(ctx context.Context, text string, knownBrands []string) (domain.Enrichment, error) {
	if c.endpoint == "" {
		return domain.Enrichment{}, fmt.Errorf("ml client: endpoint is empty")
	}
	if knownBrands == nil {
		knownBrands = []string{}
	}

	var out classifyResponse
	req := c.http.Request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(classifyRequest{Text: text, Brands: knownBrands}).
		SetResult(&out)
	if c.apiKey != "" {
		req.SetAuthToken(c.apiKey)
	}

	resp, err := req.Post(c.endpoint + "/classify")
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("do request: %w", err)
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return domain.Enrichment{}, err
	}

	result := domain.Enrichment{
		Brands:         out.Brands,
		ShortSummary:   strings.TrimSpace(out.Summary),
		Sentiment:      domain.ParseSentiment(out.Sentiment),
		Topic:          strings.TrimSpace(out.Topic),
		EstimatedReach: max(out.EstimatedReach, 0),
	}
	if result.Brands == nil {
		result.Brands = []string{}
	}
	if result.Topic == "" {
		result.Topic = domain.DefaultTopic
	}
	return result, nil
}
