package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoProvider means the registry holds no usable backend.
var ErrNoProvider = errors.New("no provider registered")

// Registry holds the configured backends keyed by type. The first backend
// registered serves as the default until SetDefault changes that.
type Registry struct {
	mu       sync.RWMutex
	backends map[ProviderType]Provider
	def      ProviderType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[ProviderType]Provider)}
}

// Register validates the backend's configuration and adds it.
func (r *Registry) Register(pt ProviderType, p Provider) error {
	if err := p.ValidateConfig(); err != nil {
		return fmt.Errorf("register %s: %w", pt, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[pt] = p
	if r.def == "" {
		r.def = pt
	}
	return nil
}

// RegisterAnthropic builds an Anthropic backend from config and registers it.
func (r *Registry) RegisterAnthropic(config AnthropicConfig) error {
	p, err := NewAnthropicProvider(config)
	if err != nil {
		return err
	}
	return r.Register(ProviderTypeAnthropic, p)
}

// RegisterOpenAI builds an OpenAI backend from config and registers it.
func (r *Registry) RegisterOpenAI(config OpenAIConfig) error {
	p, err := NewOpenAIProvider(config)
	if err != nil {
		return err
	}
	return r.Register(ProviderTypeOpenAI, p)
}

// RegisterGoogle builds a Gemini backend from config and registers it.
func (r *Registry) RegisterGoogle(ctx context.Context, config GoogleConfig) error {
	p, err := NewGoogleProvider(ctx, config)
	if err != nil {
		return err
	}
	return r.Register(ProviderTypeGoogle, p)
}

// Get returns the backend registered under the given type.
func (r *Registry) Get(pt ProviderType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.backends[pt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, pt)
	}
	return p, nil
}

// Default returns the backend requests route to when none is named.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.def == "" {
		return nil, ErrNoProvider
	}
	return r.backends[r.def], nil
}

// SetDefault routes future Default calls to the given backend.
func (r *Registry) SetDefault(pt ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.backends[pt]; !ok {
		return fmt.Errorf("%w: %s", ErrNoProvider, pt)
	}
	r.def = pt
	return nil
}

// Has reports whether a backend is registered under the given type.
func (r *Registry) Has(pt ProviderType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.backends[pt]
	return ok
}

// Available lists the registered backend types in stable order.
func (r *Registry) Available() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ProviderType, 0, len(r.backends))
	for t := range r.backends {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Close shuts every backend down, collecting failures.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for pt, p := range r.backends {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", pt, err))
		}
	}
	return errors.Join(errs...)
}
