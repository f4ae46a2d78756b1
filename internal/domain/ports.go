package domain

import "context"

// LanguageModel is the single capability the intent extractor needs from an
// LLM: one blocking completion under the caller's context.
// Implemented by llm.OpenAIClient.
type LanguageModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// StoreExecutor runs one store-native query and returns normalized rows.
// Implementations own their connection pooling and classify failures into
// StoreError before returning.
// Implemented by mysql.Store and influx.Store.
type StoreExecutor interface {
	ID() StoreID
	Execute(ctx context.Context, query string) ([]Row, error)
}

// StorePinger exposes a cheap liveness check, used by warmup and health
// reporting. Store adapters implement it alongside StoreExecutor.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CatalogSource produces a full catalog snapshot. Sources validate the
// snapshot before returning it.
// Implemented by catalog.FileSource and catalog.IntrospectSource.
type CatalogSource interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// HistoryRepository persists answered questions.
// Implemented by repository.HistoryRepo.
type HistoryRepository interface {
	Insert(ctx context.Context, e *HistoryEntry) error
	List(ctx context.Context, f HistoryFilter) ([]HistoryEntry, int64, error)
}
