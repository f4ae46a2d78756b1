// Package history exposes the recorded question log to the API and CLI.
package history

import (
	"context"

	"fedquery/internal/domain"
)

// Page size bounds for List.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Service wraps the history repository. A nil repository means history is
// disabled and List serves empty pages.
type Service struct {
	repo domain.HistoryRepository
}

// New creates the history service. repo may be nil.
func New(repo domain.HistoryRepository) *Service {
	return &Service{repo: repo}
}

// Enabled reports whether history persistence is wired.
func (s *Service) Enabled() bool { return s.repo != nil }

// List returns one page of entries plus the unpaged total, newest first.
// The limit is clamped to [1, MaxPageSize].
func (s *Service) List(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryEntry, int64, error) {
	if s.repo == nil {
		return []domain.HistoryEntry{}, 0, nil
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}
