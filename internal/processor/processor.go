package processor

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

const (
	defaultItemTimeout = 45 * time.Second
	fallbackSummaryLen = 300
)

// Processor turns a raw provider item into an enriched record plus its dedupe key.
type Processor interface {
	ProcessItem(ctx context.Context, item domain.ContentItem) (domain.ProcessedRecord, string, error)
	SupportedProviders() []string
}

// Config carries per-run processor settings.
type Config struct {
	ItemTimeout time.Duration
	Logger      *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = defaultItemTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// enricher wraps the AI call shared by all processor variants.
type enricher struct {
	client ports.Enricher
	brands []string
	cfg    Config
}

// enrich calls the AI client once. A transport error or timeout is returned
// to the caller; an absent client yields defaults.
func (e enricher) enrich(ctx context.Context, item domain.ContentItem, text string) (domain.Enrichment, error) {
	if e.client == nil {
		e.cfg.Logger.Warn("no enrichment client configured, using defaults", "provider", item.ProviderName)
		return domain.DefaultEnrichment(), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ItemTimeout)
	defer cancel()

	result, err := e.client.ClassifySummarize(callCtx, text, e.brands)
	if err != nil {
		return domain.Enrichment{}, &domain.ProcessingError{Provider: item.ProviderName, Title: item.Title, Err: err}
	}

	return normalizeEnrichment(result, e.brands), nil
}

func normalizeEnrichment(e domain.Enrichment, known []string) domain.Enrichment {
	e.Sentiment = domain.ParseSentiment(string(e.Sentiment))
	e.Topic = strings.TrimSpace(e.Topic)
	if e.Topic == "" {
		e.Topic = domain.DefaultTopic
	}
	e.ShortSummary = strings.TrimSpace(e.ShortSummary)
	e.Brands = matchBrands(e.Brands, known)
	if e.EstimatedReach < 0 {
		e.EstimatedReach = 0
	}
	return e
}

// matchBrands keeps AI-reported brands that appear in the tenant list,
// using the tenant's spelling.
func matchBrands(reported, known []string) []string {
	canonical := make(map[string]string, len(known))
	for _, b := range known {
		canonical[strings.ToLower(strings.TrimSpace(b))] = b
	}

	out := make([]string, 0, len(reported))
	seen := map[string]struct{}{}
	for _, r := range reported {
		name, ok := canonical[strings.ToLower(strings.TrimSpace(r))]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func buildRecord(item domain.ContentItem, fullText string, e domain.Enrichment, reach int64) domain.ProcessedRecord {
	summary := e.ShortSummary
	if summary == "" {
		summary = truncateRunes(fullText, fallbackSummaryLen)
	}

	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return domain.ProcessedRecord{
		FullText:       fullText,
		Brands:         e.Brands,
		Summary:        summary,
		Sentiment:      e.Sentiment,
		Topic:          e.Topic,
		EstimatedReach: reach,
		ProviderName:   item.ProviderName,
		Source:         item.Source,
		Title:          item.Title,
		Link:           item.Link,
		Metadata:       metadata,
		DedupeKey:      DedupeKey(item.Title, item.Link),
	}
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}

// metadataCount reads a numeric engagement counter from provider metadata.
func metadataCount(metadata map[string]any, key string) int64 {
	switch v := metadata[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
