package usecase

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

// RateLimitedEnricher throttles calls to a shared AI backend across all runs.
type RateLimitedEnricher struct {
	next    ports.Enricher
	limiter *rate.Limiter
}

var _ ports.Enricher = (*RateLimitedEnricher)(nil)

// NewRateLimitedEnricher allows perSecond calls with the given burst.
func NewRateLimitedEnricher(next ports.Enricher, perSecond float64, burst int) *RateLimitedEnricher {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEnricher{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// ClassifySummarize waits for a token, then delegates.
func (e *RateLimitedEnricher) ClassifySummarize(ctx context.Context, text string, knownBrands []string) (domain.Enrichment, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return domain.Enrichment{}, fmt.Errorf("wait for enrichment slot: %w", err)
	}
	return e.next.ClassifySummarize(ctx, text, knownBrands)
}
