package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

// Kind identifies a provider implementation. The set is closed; new kinds
// also need a processor mapping in the processor package.
type Kind string

const (
	KindRSS     Kind = "rss"
	KindArxiv   Kind = "arxiv"
	KindNewsAPI Kind = "newsapi"
	KindSocial  Kind = "social"
)

// Kinds lists every provider kind known at build time.
func Kinds() []Kind {
	return []Kind{KindRSS, KindArxiv, KindNewsAPI, KindSocial}
}

// ParseKind validates a provider name against the known kinds.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// Provider fetches raw content from one external source type.
//
// FetchItems returns every item it managed to collect, never nil, together
// with an error describing the sources that failed.
type Provider interface {
	Name() string
	FetchItems(ctx context.Context) ([]domain.ContentItem, error)
}

// Constructor builds a provider from tenant-resolved settings.
type Constructor func(settings ports.ProviderSettings) (Provider, error)

// Registry keeps a mapping from provider names to their constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[Kind]Constructor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: map[Kind]Constructor{}}
}

// Register adds or replaces a constructor.
func (r *Registry) Register(kind Kind, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.constructors == nil {
		r.constructors = map[Kind]Constructor{}
	}
	r.constructors[kind] = constructor
}

// Create instantiates a provider by name or fails with UnknownProviderError.
func (r *Registry) Create(name string, settings ports.ProviderSettings) (Provider, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[Kind(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.UnknownProviderError{Name: name}
	}

	p, err := constructor(settings)
	if err != nil {
		return nil, fmt.Errorf("construct provider %s: %w", name, err)
	}
	return p, nil
}

// Has reports whether a provider name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[Kind(name)]
	return ok
}

// Available returns registered provider names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
