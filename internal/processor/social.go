package processor

import (
	"context"
	"strings"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
	"MediaMonitor/internal/provider"
)

// EmptyTextPlaceholder stands in for posts without any caption text.
const EmptyTextPlaceholder = "[no text content]"

// SocialProcessor enriches short-form posts from their caption only.
type SocialProcessor struct {
	enricher
}

// NewSocialProcessor builds a caption-only processor.
func NewSocialProcessor(client ports.Enricher, brands []string, cfg Config) *SocialProcessor {
	return &SocialProcessor{enricher: enricher{client: client, brands: brands, cfg: cfg.withDefaults()}}
}

// SupportedProviders lists the providers routed to this processor.
func (p *SocialProcessor) SupportedProviders() []string {
	return []string{string(provider.KindSocial)}
}

// ProcessItem enriches the caption and derives reach from engagement counters.
func (p *SocialProcessor) ProcessItem(ctx context.Context, item domain.ContentItem) (domain.ProcessedRecord, string, error) {
	key := DedupeKey(item.Title, item.Link)

	fullText := truncateRunes(socialText(item), domain.MaxFullTextRunes)

	result, err := p.enrich(ctx, item, fullText)
	if err != nil {
		return domain.ProcessedRecord{}, key, err
	}

	return buildRecord(item, fullText, result, socialReach(item.Metadata, result.EstimatedReach)), key, nil
}

func socialText(item domain.ContentItem) string {
	title := strings.TrimSpace(item.Title)
	summary := strings.TrimSpace(item.RawSummary)

	switch {
	case title != "" && summary != "":
		return strings.TrimSpace(title + "\n\n" + summary)
	case title != "":
		return title
	case summary != "":
		return summary
	default:
		return EmptyTextPlaceholder
	}
}

// socialReach prefers views, then likes, then the AI estimate.
func socialReach(metadata map[string]any, aiEstimate int64) int64 {
	if views := metadataCount(metadata, "views"); views > 0 {
		return views
	}
	if likes := metadataCount(metadata, "likes"); likes > 0 {
		return likes
	}
	if aiEstimate > 0 {
		return aiEstimate
	}
	return 0
}
