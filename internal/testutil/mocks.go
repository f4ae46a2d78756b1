// Package testutil provides shared mock implementations of the domain
// interfaces for tests across the codebase.
package testutil

import (
	"context"

	"fedquery/internal/domain"
)

// MockStore implements domain.StoreExecutor and domain.StorePinger.
// Queries records every query text as executed, placeholders already
// substituted.
type MockStore struct {
	Store     domain.StoreID
	ExecuteFn func(ctx context.Context, query string) ([]domain.Row, error)
	PingFn    func(ctx context.Context) error
	Queries   []string // collected for assertions
}

func (m *MockStore) ID() domain.StoreID { return m.Store }

func (m *MockStore) Execute(ctx context.Context, query string) ([]domain.Row, error) {
	m.Queries = append(m.Queries, query)
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, query)
	}
	panic("unexpected call to MockStore.Execute")
}

func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// LastQuery returns the last executed query text, or "" if none ran.
func (m *MockStore) LastQuery() string {
	if len(m.Queries) == 0 {
		return ""
	}
	return m.Queries[len(m.Queries)-1]
}

var _ domain.StoreExecutor = (*MockStore)(nil)
var _ domain.StorePinger = (*MockStore)(nil)

// MockLanguageModel implements domain.LanguageModel.
type MockLanguageModel struct {
	CompleteFn func(ctx context.Context, system, user string) (string, error)
	// Prompts collects the user prompts passed to Complete.
	Prompts []string
}

func (m *MockLanguageModel) Complete(ctx context.Context, system, user string) (string, error) {
	m.Prompts = append(m.Prompts, user)
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, system, user)
	}
	panic("unexpected call to MockLanguageModel.Complete")
}

var _ domain.LanguageModel = (*MockLanguageModel)(nil)

// MockHistoryRepo implements domain.HistoryRepository.
type MockHistoryRepo struct {
	InsertFn func(ctx context.Context, e *domain.HistoryEntry) error
	ListFn   func(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryEntry, int64, error)
	Entries  []*domain.HistoryEntry // collected entries for assertions
}

func (m *MockHistoryRepo) Insert(ctx context.Context, e *domain.HistoryEntry) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, e); err != nil {
			return err
		}
	}
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MockHistoryRepo) List(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryEntry, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, f)
	}
	panic("unexpected call to MockHistoryRepo.List")
}

// LastEntry returns the last collected history entry, or nil if none.
func (m *MockHistoryRepo) LastEntry() *domain.HistoryEntry {
	if len(m.Entries) == 0 {
		return nil
	}
	return m.Entries[len(m.Entries)-1]
}

var _ domain.HistoryRepository = (*MockHistoryRepo)(nil)

// MockCatalogSource implements domain.CatalogSource.
type MockCatalogSource struct {
	LoadFn func(ctx context.Context) (*domain.Snapshot, error)
}

func (m *MockCatalogSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	if m.LoadFn != nil {
		return m.LoadFn(ctx)
	}
	panic("unexpected call to MockCatalogSource.Load")
}

var _ domain.CatalogSource = (*MockCatalogSource)(nil)
