package domain

import "time"

// MaxFullTextRunes caps the stored body of a processed record.
const MaxFullTextRunes = 5000

// ContentItem is a raw entry returned by a provider before enrichment.
type ContentItem struct {
	Source       string
	Title        string
	Link         string
	RawSummary   string
	ProviderName string
	Metadata     map[string]any
}

// Sentiment enumerates the tone labels produced by enrichment.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// DefaultTopic is used when enrichment yields no classification.
const DefaultTopic = "general"

// ParseSentiment maps free-form labels onto the closed set, defaulting to neutral.
func ParseSentiment(value string) Sentiment {
	switch Sentiment(normalizeLabel(value)) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Enrichment is the structured answer of the AI classification service.
type Enrichment struct {
	Brands         []string  `json:"brands"`
	ShortSummary   string    `json:"short_summary"`
	Sentiment      Sentiment `json:"sentiment"`
	Topic          string    `json:"topic"`
	EstimatedReach int64     `json:"estimated_reach"`
}

// DefaultEnrichment is substituted when the AI answer cannot be used.
func DefaultEnrichment() Enrichment {
	return Enrichment{
		Brands:    []string{},
		Sentiment: SentimentNeutral,
		Topic:     DefaultTopic,
	}
}

// ProcessedRecord is the enriched, persisted form of a content item.
type ProcessedRecord struct {
	ID             string
	TenantID       string
	ExecutionID    string
	FullText       string
	Brands         []string
	Summary        string
	Sentiment      Sentiment
	Topic          string
	EstimatedReach int64
	ProviderName   string
	Source         string
	Title          string
	Link           string
	Metadata       map[string]any
	DedupeKey      string
	CreatedAt      time.Time
}

// ProgressEvent describes a run milestone for task-status collaborators.
type ProgressEvent struct {
	ExecutionID string `json:"execution_id"`
	Stage       string `json:"stage"`
	Message     string `json:"message"`
	Progress    int    `json:"progress"`
	CurrentItem int    `json:"current_item"`
	TotalItems  int    `json:"total_items"`
}
