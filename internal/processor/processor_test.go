package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/provider"
)

type stubEnricher struct {
	result domain.Enrichment
	err    error
	calls  int
	text   string
}

func (s *stubEnricher) ClassifySummarize(_ context.Context, text string, _ []string) (domain.Enrichment, error) {
	s.calls++
	s.text = text
	return s.result, s.err
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, string) (string, error) {
	return s.text, s.err
}

func TestDedupeKey(t *testing.T) {
	a := DedupeKey("Acme launches", "https://x/1")
	if len(a) != DedupeKeyLength {
		t.Fatalf("unexpected key length %d", len(a))
	}
	if a != DedupeKey("Acme launches", "https://x/1") {
		t.Fatal("key is not deterministic")
	}
	if a == DedupeKey("acme launches", "https://x/1") {
		t.Fatal("case must not be normalized")
	}
	if DedupeKey("ab", "c") != DedupeKey("a", "bc") {
		t.Fatal("key must be a plain concatenation")
	}
}

func TestArticleProcessorUsesExtractedText(t *testing.T) {
	ai := &stubEnricher{result: domain.Enrichment{
		Brands:       []string{"acme", "Unknown Co"},
		ShortSummary: "Acme ships a thing.",
		Sentiment:    "Positive",
		Topic:        "product",
	}}
	p := NewArticleProcessor(ai, stubExtractor{text: "  full article body  "}, []string{"Acme"}, Config{})

	item := domain.ContentItem{Title: "Acme ships", Link: "https://x/1", RawSummary: "teaser", ProviderName: "rss", Source: "x"}
	record, key, err := p.ProcessItem(context.Background(), item)
	if err != nil {
		t.Fatalf("ProcessItem returned error: %v", err)
	}

	if key != DedupeKey(item.Title, item.Link) || record.DedupeKey != key {
		t.Fatalf("unexpected dedupe key %q", key)
	}
	if record.FullText != "full article body" || ai.text != "full article body" {
		t.Fatalf("unexpected full text %q", record.FullText)
	}
	if len(record.Brands) != 1 || record.Brands[0] != "Acme" {
		t.Fatalf("unexpected brands %v", record.Brands)
	}
	if record.Sentiment != domain.SentimentPositive || record.Topic != "product" {
		t.Fatalf("unexpected classification %s/%s", record.Sentiment, record.Topic)
	}
	if record.Metadata == nil {
		t.Fatal("metadata must not be nil")
	}
}

func TestArticleProcessorFallsBackToSummaryThenTitle(t *testing.T) {
	ai := &stubEnricher{result: domain.DefaultEnrichment()}
	p := NewArticleProcessor(ai, stubExtractor{err: errors.New("403")}, nil, Config{})

	record, _, err := p.ProcessItem(context.Background(), domain.ContentItem{Title: "T", Link: "https://x", RawSummary: "feed summary"})
	if err != nil {
		t.Fatalf("ProcessItem returned error: %v", err)
	}
	if record.FullText != "feed summary" {
		t.Fatalf("expected summary fallback, got %q", record.FullText)
	}

	record, _, err = p.ProcessItem(context.Background(), domain.ContentItem{Title: "Only title", Link: "https://x"})
	if err != nil {
		t.Fatalf("ProcessItem returned error: %v", err)
	}
	if record.FullText != "Only title" {
		t.Fatalf("expected title fallback, got %q", record.FullText)
	}
	if record.Summary != "Only title" {
		t.Fatalf("expected summary derived from text, got %q", record.Summary)
	}
}

func TestArticleProcessorTruncatesFullText(t *testing.T) {
	ai := &stubEnricher{result: domain.DefaultEnrichment()}
	p := NewArticleProcessor(ai, stubExtractor{text: strings.Repeat("я", domain.MaxFullTextRunes+50)}, nil, Config{})

	record, _, err := p.ProcessItem(context.Background(), domain.ContentItem{Title: "T", Link: "https://x"})
	if err != nil {
		t.Fatalf("ProcessItem returned error: %v", err)
	}
	if got := len([]rune(record.FullText)); got != domain.MaxFullTextRunes {
		t.Fatalf("expected %d runes, got %d", domain.MaxFullTextRunes, got)
	}
}

func TestProcessorReturnsEnrichmentError(t *testing.T) {
	ai := &stubEnricher{err: errors.New("status 500")}
	p := NewArticleProcessor(ai, nil, nil, Config{})

	item := domain.ContentItem{Title: "T", Link: "L", RawSummary: "s", ProviderName: "rss"}
	_, key, err := p.ProcessItem(context.Background(), item)
	if err == nil {
		t.Fatal("expected error")
	}
	var procErr *domain.ProcessingError
	if !errors.As(err, &procErr) || procErr.Provider != "rss" {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if key != DedupeKey("T", "L") {
		t.Fatal("key must be returned even on failure")
	}
}

func TestProcessorWithoutEnricherUsesDefaults(t *testing.T) {
	p := NewSocialProcessor(nil, []string{"Acme"}, Config{})

	record, _, err := p.ProcessItem(context.Background(), domain.ContentItem{Title: "hello"})
	if err != nil {
		t.Fatalf("ProcessItem returned error: %v", err)
	}
	if record.Sentiment != domain.SentimentNeutral || record.Topic != domain.DefaultTopic || len(record.Brands) != 0 {
		t.Fatalf("expected defaults, got %+v", record)
	}
}

func TestSocialProcessorReach(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		ai       int64
		want     int64
	}{
		{name: "views win", metadata: map[string]any{"views": int64(500), "likes": int64(10)}, ai: 99, want: 500},
		{name: "likes when no views", metadata: map[string]any{"likes": 10}, ai: 99, want: 10},
		{name: "ai estimate", metadata: map[string]any{}, ai: 99, want: 99},
		{name: "float counters", metadata: map[string]any{"views": float64(42)}, want: 42},
		{name: "nothing", metadata: nil, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ai := &stubEnricher{result: domain.Enrichment{EstimatedReach: tc.ai}}
			p := NewSocialProcessor(ai, nil, Config{})

			record, _, err := p.ProcessItem(context.Background(), domain.ContentItem{Title: "post", Metadata: tc.metadata})
			if err != nil {
				t.Fatalf("ProcessItem returned error: %v", err)
			}
			if record.EstimatedReach != tc.want {
				t.Fatalf("expected reach %d, got %d", tc.want, record.EstimatedReach)
			}
		})
	}
}

func TestSocialProcessorText(t *testing.T) {
	tests := []struct {
		title, summary, want string
	}{
		{" Title ", " Body ", "Title\n\nBody"},
		{"Title", "", "Title"},
		{"", "Body", "Body"},
		{"", "  ", EmptyTextPlaceholder},
	}

	for _, tc := range tests {
		got := socialText(domain.ContentItem{Title: tc.title, RawSummary: tc.summary})
		if got != tc.want {
			t.Errorf("socialText(%q, %q) = %q, want %q", tc.title, tc.summary, got, tc.want)
		}
	}
}

func TestFactoryCoversEveryProviderKind(t *testing.T) {
	f := NewFactory(nil)

	for _, kind := range provider.Kinds() {
		p, err := f.Create(string(kind), nil, nil, Config{})
		if err != nil {
			t.Fatalf("no processor for %s: %v", kind, err)
		}
		found := false
		for _, name := range p.SupportedProviders() {
			if name == string(kind) {
				found = true
			}
		}
		if !found {
			t.Fatalf("processor for %s does not list it as supported", kind)
		}
	}

	_, err := f.Create("telegram", nil, nil, Config{})
	var unsupported *domain.UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedProviderError, got %v", err)
	}
}
