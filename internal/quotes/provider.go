package quotes

import (
	"context"
	"fmt"
)

// Provider fetches prices from one external data source.
type Provider interface {
	Source

	// Name returns the provider's display name (e.g., "Yahoo Finance").
	Name() string

	// Supports returns true if this provider can quote the given asset type.
	Supports(assetType string) bool
}

// Router is a Source that dispatches each key to the first provider supporting its asset type.
type Router struct {
	providers []Provider
}

// NewRouter creates a Router over providers, tried in order.
func NewRouter(providers ...Provider) *Router {
	return &Router{providers: providers}
}

func (r *Router) providerFor(key Key) (Provider, error) {
	for _, p := range r.providers {
		if p.Supports(key.AssetType) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no provider supports asset type %q: %w", key.AssetType, ErrQuoteUnavailable)
}

// Get implements Source.
func (r *Router) Get(ctx context.Context, key Key) (Quote, error) {
	p, err := r.providerFor(key)
	if err != nil {
		return Quote{}, err
	}
	return p.Get(ctx, key)
}

// History implements Source.
func (r *Router) History(ctx context.Context, key Key, period string) ([]Point, error) {
	p, err := r.providerFor(key)
	if err != nil {
		return nil, err
	}
	return p.History(ctx, key, period)
}
