package processor

import (
	"context"
	"strings"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
	"MediaMonitor/internal/provider"
)

// ArticleProcessor enriches long-form items whose link points at a web page.
type ArticleProcessor struct {
	enricher
	extractor ports.TextExtractor
}

// NewArticleProcessor builds an article processor; a nil extractor disables page fetches.
func NewArticleProcessor(client ports.Enricher, extractor ports.TextExtractor, brands []string, cfg Config) *ArticleProcessor {
	return &ArticleProcessor{
		enricher:  enricher{client: client, brands: brands, cfg: cfg.withDefaults()},
		extractor: extractor,
	}
}

// SupportedProviders lists the providers routed to this processor.
func (p *ArticleProcessor) SupportedProviders() []string {
	return []string{string(provider.KindRSS), string(provider.KindArxiv), string(provider.KindNewsAPI)}
}

// ProcessItem extracts the linked page, falling back to the feed summary.
func (p *ArticleProcessor) ProcessItem(ctx context.Context, item domain.ContentItem) (domain.ProcessedRecord, string, error) {
	key := DedupeKey(item.Title, item.Link)

	fullText := truncateRunes(p.articleText(ctx, item), domain.MaxFullTextRunes)

	result, err := p.enrich(ctx, item, fullText)
	if err != nil {
		return domain.ProcessedRecord{}, key, err
	}

	return buildRecord(item, fullText, result, result.EstimatedReach), key, nil
}

func (p *ArticleProcessor) articleText(ctx context.Context, item domain.ContentItem) string {
	if p.extractor != nil && strings.TrimSpace(item.Link) != "" {
		extractCtx, cancel := context.WithTimeout(ctx, p.cfg.ItemTimeout)
		text, err := p.extractor.Extract(extractCtx, item.Link)
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		p.cfg.Logger.Debug("extraction failed, using feed summary", "link", item.Link, "error", err)
	}

	if summary := strings.TrimSpace(item.RawSummary); summary != "" {
		return summary
	}
	return strings.TrimSpace(item.Title)
}
