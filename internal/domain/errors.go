package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate signals a (tenant, dedupe key) conflict; callers treat it as a skip.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCancelled marks a run stopped cooperatively between items.
	ErrCancelled = errors.New("run cancelled")
	// ErrJobDisabled rejects triggers for disabled scheduled jobs.
	ErrJobDisabled = errors.New("job is disabled")
	// ErrUnsupportedJobType rejects job types without a runner.
	ErrUnsupportedJobType = errors.New("unsupported job type")
	// ErrNoProviders rejects runs that resolve to an empty provider set.
	ErrNoProviders = errors.New("no providers resolved")
)

// UnknownProviderError is returned when a provider name was never registered.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("provider %s is not registered", e.Name)
}

// UnsupportedProviderError is returned when no processor maps to a provider.
type UnsupportedProviderError struct {
	Name string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("no processor for provider %s", e.Name)
}

// ProviderFetchError wraps a network, auth or rate-limit failure of one provider.
type ProviderFetchError struct {
	Provider string
	Err      error
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderFetchError) Unwrap() error {
	return e.Err
}

// ProcessingError wraps an enrichment or extraction failure of one item.
type ProcessingError struct {
	Provider string
	Title    string
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process %s item %q: %v", e.Provider, e.Title, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports errors that prevent a run from starting.
func IsConfigurationError(err error) bool {
	var unknown *UnknownProviderError
	var unsupported *UnsupportedProviderError
	return errors.As(err, &unknown) ||
		errors.As(err, &unsupported) ||
		errors.Is(err, ErrJobDisabled) ||
		errors.Is(err, ErrUnsupportedJobType) ||
		errors.Is(err, ErrNoProviders)
}
