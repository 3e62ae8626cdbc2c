package config

import (
	"context"
	"fmt"
	"sort"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

// Credential keys understood by provider constructors.
const (
	CredentialAPIKey   = "api_key"
	CredentialToken    = "token"
	CredentialEndpoint = "endpoint"
)

// Directory resolves tenant settings from static configuration.
type Directory struct {
	providers ProvidersConfig
	tenants   map[string]TenantConfig
}

var _ ports.TenantDirectory = (*Directory)(nil)

// NewDirectory indexes the configured tenants by ID.
func NewDirectory(cfg Config) *Directory {
	tenants := make(map[string]TenantConfig, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		tenants[t.ID] = t
	}
	return &Directory{providers: cfg.Providers, tenants: tenants}
}

// TenantIDs returns configured tenant identifiers in sorted order.
func (d *Directory) TenantIDs() []string {
	ids := make([]string, 0, len(d.tenants))
	for id := range d.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tenant merges tenant overrides over global provider credentials.
func (d *Directory) Tenant(_ context.Context, tenantID string) (ports.TenantSettings, error) {
	tenant, ok := d.tenants[tenantID]
	if !ok {
		return ports.TenantSettings{}, fmt.Errorf("tenant %s: %w", tenantID, domain.ErrNotFound)
	}

	settings := ports.TenantSettings{
		TenantID:  tenant.ID,
		Brands:    append([]string(nil), tenant.Brands...),
		Providers: make(map[string]ports.ProviderSettings, len(tenant.Providers)),
	}

	for name, pc := range tenant.Providers {
		enabled := true
		if pc.Enabled != nil {
			enabled = *pc.Enabled
		}

		queries := pc.Queries
		if len(queries) == 0 {
			queries = tenant.Brands
		}

		creds := d.globalCredentials(name)
		for k, v := range pc.Credentials {
			if v != "" {
				creds[k] = v
			}
		}

		settings.Providers[name] = ports.ProviderSettings{
			Enabled:     enabled,
			Feeds:       append([]string(nil), pc.Feeds...),
			Queries:     append([]string(nil), queries...),
			Credentials: creds,
			Options:     copyMap(pc.Options),
		}
	}

	return settings, nil
}

// HasCredential reports whether a provider credential exists globally or for any tenant.
func (d *Directory) HasCredential(providerName, key string) bool {
	if d.globalCredentials(providerName)[key] != "" {
		return true
	}
	for _, t := range d.tenants {
		if t.Providers[providerName].Credentials[key] != "" {
			return true
		}
	}
	return false
}

func (d *Directory) globalCredentials(providerName string) map[string]string {
	creds := map[string]string{}
	switch providerName {
	case "newsapi":
		setIfNotEmpty(creds, CredentialAPIKey, d.providers.NewsAPI.APIKey)
		setIfNotEmpty(creds, CredentialEndpoint, d.providers.NewsAPI.Endpoint)
	case "social":
		setIfNotEmpty(creds, CredentialToken, d.providers.Social.Token)
		setIfNotEmpty(creds, CredentialEndpoint, d.providers.Social.Endpoint)
	}
	return creds
}

func setIfNotEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
