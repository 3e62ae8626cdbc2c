package parser

import (
	"log/slog"
	"strconv"

	"MediaMonitor/internal/config"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/ports"
	"MediaMonitor/internal/provider"
)

// CredentialChecker reports whether any tenant or global credential exists.
type CredentialChecker interface {
	HasCredential(providerName, key string) bool
}

// RegisterProviders installs constructors for every provider whose capability
// flag is on and whose required credentials exist somewhere. Providers left
// out are simply absent from the registry.
func RegisterProviders(reg *provider.Registry, cfg config.ProvidersConfig, creds CredentialChecker, client *httpclient.Client, logger *slog.Logger) {
	logger = orDiscard(logger)

	if cfg.RSS.Enabled {
		reg.Register(provider.KindRSS, func(s ports.ProviderSettings) (provider.Provider, error) {
			return NewRSSProvider(client, s.Feeds, logger.With("provider", "rss")), nil
		})
	}

	if cfg.Arxiv.Enabled {
		reg.Register(provider.KindArxiv, func(s ports.ProviderSettings) (provider.Provider, error) {
			lookback := cfg.Arxiv.Lookback
			if v, err := strconv.Atoi(s.Options["lookback"]); err == nil && v > 0 {
				lookback = v
			}
			return NewArxivProvider(client, s.Feeds, lookback, logger.With("provider", "arxiv")), nil
		})
	}

	if cfg.NewsAPI.Enabled && hasCredential(creds, "newsapi", config.CredentialAPIKey) {
		reg.Register(provider.KindNewsAPI, func(s ports.ProviderSettings) (provider.Provider, error) {
			return NewNewsAPIProvider(client, NewsAPIConfig{
				Endpoint: firstNonEmpty(s.Credentials[config.CredentialEndpoint], cfg.NewsAPI.Endpoint),
				APIKey:   s.Credentials[config.CredentialAPIKey],
				Language: firstNonEmpty(s.Options["language"], cfg.NewsAPI.Language),
				PageSize: cfg.NewsAPI.PageSize,
			}, s.Queries, logger.With("provider", "newsapi"))
		})
	} else {
		logger.Info("provider unavailable", "provider", "newsapi")
	}

	if cfg.Social.Enabled && hasCredential(creds, "social", config.CredentialToken) {
		reg.Register(provider.KindSocial, func(s ports.ProviderSettings) (provider.Provider, error) {
			return NewSocialProvider(client, SocialConfig{
				Endpoint: firstNonEmpty(s.Credentials[config.CredentialEndpoint], cfg.Social.Endpoint),
				Token:    s.Credentials[config.CredentialToken],
				Platform: firstNonEmpty(s.Options["platform"], cfg.Social.Platform),
				Limit:    cfg.Social.Limit,
			}, s.Queries, logger.With("provider", "social"))
		})
	} else {
		logger.Info("provider unavailable", "provider", "social")
	}
}

func hasCredential(creds CredentialChecker, providerName, key string) bool {
	return creds != nil && creds.HasCredential(providerName, key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
