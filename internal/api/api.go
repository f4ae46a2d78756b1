// Package api exposes the HTTP surface: answering questions, inspecting the
// catalog, and browsing history.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"fedquery/internal/domain"
)

// AnswerService answers one natural-language question.
type AnswerService interface {
	Answer(ctx context.Context, question string) (*domain.AnswerPayload, error)
}

// SnapshotProvider hands out the active catalog snapshot.
type SnapshotProvider interface {
	Current() *domain.Snapshot
}

// HistoryService lists previously answered questions.
type HistoryService interface {
	List(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryEntry, int64, error)
}

// Handler serves the API endpoints. It holds the services and translates
// between HTTP and domain shapes.
type Handler struct {
	answers AnswerService
	catalog SnapshotProvider
	history HistoryService
	logger  *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(answers AnswerService, catalog SnapshotProvider, history HistoryService, logger *slog.Logger) *Handler {
	return &Handler{
		answers: answers,
		catalog: catalog,
		history: history,
		logger:  logger.With("component", "api"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
