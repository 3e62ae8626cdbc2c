package processor

import (
	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
	"MediaMonitor/internal/provider"
)

type variant int

const (
	variantArticle variant = iota + 1
	variantSocial
)

// variants maps each provider kind to its processor. Adding a provider kind
// requires an entry here as well.
var variants = map[provider.Kind]variant{
	provider.KindRSS:     variantArticle,
	provider.KindArxiv:   variantArticle,
	provider.KindNewsAPI: variantArticle,
	provider.KindSocial:  variantSocial,
}

// Factory builds processors for provider names.
type Factory struct {
	extractor ports.TextExtractor
}

// NewFactory wires the page extractor used by article processors.
func NewFactory(extractor ports.TextExtractor) *Factory {
	return &Factory{extractor: extractor}
}

// Supports reports whether a processor mapping exists for providerName.
func (f *Factory) Supports(providerName string) bool {
	_, ok := variants[provider.Kind(providerName)]
	return ok
}

// Create returns the processor for providerName or UnsupportedProviderError.
func (f *Factory) Create(providerName string, client ports.Enricher, brands []string, cfg Config) (Processor, error) {
	switch variants[provider.Kind(providerName)] {
	case variantArticle:
		return NewArticleProcessor(client, f.extractor, brands, cfg), nil
	case variantSocial:
		return NewSocialProcessor(client, brands, cfg), nil
	default:
		return nil, &domain.UnsupportedProviderError{Name: providerName}
	}
}
