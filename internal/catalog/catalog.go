// Package catalog holds the schema catalog: an immutable snapshot of both
// stores' collections plus the declared join links, swapped wholesale on
// reload so readers never see a half-updated view.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"fedquery/internal/domain"
)

// Provider hands out the current catalog snapshot. Reads are a single
// atomic pointer load; a request grabs one snapshot and uses it for its
// whole lifetime regardless of concurrent reloads.
type Provider struct {
	current atomic.Pointer[domain.Snapshot]
	logger  *slog.Logger
}

// NewProvider creates a provider seeded with the given snapshot.
func NewProvider(snap *domain.Snapshot, logger *slog.Logger) *Provider {
	p := &Provider{logger: logger.With("component", "catalog")}
	p.current.Store(snap)
	return p
}

// Current returns the active snapshot. Never nil after construction.
func (p *Provider) Current() *domain.Snapshot {
	return p.current.Load()
}

// Swap replaces the active snapshot wholesale.
func (p *Provider) Swap(next *domain.Snapshot) {
	prev := p.current.Swap(next)
	p.logger.Info("catalog swapped", "from", prev.Version, "to", next.Version)
}

// Reload loads a fresh snapshot from the source, validates it, and swaps it
// in. On failure the previous snapshot stays active.
func (p *Provider) Reload(ctx context.Context, src domain.CatalogSource) error {
	next, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}
	p.Swap(next)
	return nil
}

// Load builds and validates the initial snapshot from a source.
func Load(ctx context.Context, src domain.CatalogSource) (*domain.Snapshot, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return snap, nil
}
