package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"MediaMonitor/internal/config"
	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/ports"
)

const defaultSystemPrompt = `You are a media monitoring analyst. Read the text and answer with a JSON object:
{"brands": [names from the known brand list mentioned in the text],
 "short_summary": "two sentences at most",
 "sentiment": "positive" | "neutral" | "negative",
 "topic": "one or two word topic",
 "estimated_reach": integer audience estimate}`

// ChatGPTClient implements ports.Enricher backed by OpenAI-compatible chat APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	client       *httpclient.Client
	logger       *slog.Logger
}

var _ ports.Enricher = (*ChatGPTClient)(nil)

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.AIConfig, logger *slog.Logger) *ChatGPTClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		client:       httpclient.New(httpclient.Options{Timeout: cfg.Timeout}),
		logger:       logger,
	}
}

// ClassifySummarize asks the model for a JSON enrichment. An answer that cannot
// be decoded yields defaults; transport and status failures are returned.
func (c *ChatGPTClient) ClassifySummarize(ctx context.Context, text string, knownBrands []string) (domain.Enrichment, error) {
	if c == nil {
		return domain.Enrichment{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Enrichment{}, fmt.Errorf("chatgpt client misconfigured")
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: userPrompt(text, knownBrands)},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	var out chatResponse
	resp, err := c.client.Request(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("chatgpt request: %w", err)
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return domain.Enrichment{}, err
	}

	if len(out.Choices) == 0 {
		c.logger.Warn("chatgpt returned no choices, using defaults")
		return domain.DefaultEnrichment(), nil
	}

	enrichment, ok := ParseEnrichment(out.Choices[0].Message.Content)
	if !ok {
		c.logger.Warn("chatgpt answer is not valid enrichment json, using defaults",
			"answer", truncate(out.Choices[0].Message.Content, 200))
	}
	return enrichment, nil
}

type enrichmentAnswer struct {
	Brands         []string    `json:"brands"`
	ShortSummary   string      `json:"short_summary"`
	Sentiment      string      `json:"sentiment"`
	Topic          string      `json:"topic"`
	EstimatedReach json.Number `json:"estimated_reach"`
}

// ParseEnrichment decodes a model answer, tolerating markdown code fences.
// It returns defaults and false when the answer is not a JSON object.
func ParseEnrichment(content string) (domain.Enrichment, bool) {
	content = stripFences(content)

	var answer enrichmentAnswer
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return domain.DefaultEnrichment(), false
	}

	result := domain.Enrichment{
		Brands:         answer.Brands,
		ShortSummary:   strings.TrimSpace(answer.ShortSummary),
		Sentiment:      domain.ParseSentiment(answer.Sentiment),
		Topic:          strings.TrimSpace(answer.Topic),
		EstimatedReach: parseReach(answer.EstimatedReach),
	}
	if result.Brands == nil {
		result.Brands = []string{}
	}
	if result.Topic == "" {
		result.Topic = domain.DefaultTopic
	}
	return result, true
}

func parseReach(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return max(v, 0)
	}
	if f, err := n.Float64(); err == nil && f > 0 {
		return int64(f)
	}
	return 0
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func userPrompt(text string, brands []string) string {
	var b strings.Builder
	b.WriteString("Known brands: ")
	if len(brands) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(brands, ", "))
	}
	b.WriteString("\n\nText:\n")
	b.WriteString(text)
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	return prompt
}

// truncate keeps at most limit runes.
func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
