// Package answer wires the full question pipeline behind one call: snapshot,
// intent extraction, strategy selection, plan build, execution, and fusion.
package answer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"fedquery/internal/catalog"
	"fedquery/internal/domain"
	"fedquery/internal/engine"
	"fedquery/internal/fuse"
	"fedquery/internal/strategy"
)

// IntentExtractor turns a question into an intent against a snapshot.
// Implemented by intent.Extractor.
type IntentExtractor interface {
	Extract(ctx context.Context, question string, snap *domain.Snapshot) (*domain.Intent, error)
}

// PlanBuilder compiles an intent into a store-native plan.
// Implemented by plan.Builder.
type PlanBuilder interface {
	Build(snap *domain.Snapshot, in *domain.Intent, strat domain.Strategy) (*domain.QueryPlan, error)
}

// PlanRunner executes a validated plan.
// Implemented by engine.Orchestrator.
type PlanRunner interface {
	Run(ctx context.Context, p *domain.QueryPlan) (*engine.Execution, error)
}

// Service answers natural-language questions. Safe for concurrent use: all
// request state is local, and the shared pieces (snapshot, store pools,
// history repo) are concurrency-safe themselves.
type Service struct {
	catalog   *catalog.Provider
	extractor IntentExtractor
	builder   PlanBuilder
	runner    PlanRunner
	history   domain.HistoryRepository
	logger    *slog.Logger
}

// New creates the answer service. history may be nil, which disables
// recording.
func New(provider *catalog.Provider, extractor IntentExtractor, builder PlanBuilder, runner PlanRunner, history domain.HistoryRepository, logger *slog.Logger) *Service {
	return &Service{
		catalog:   provider,
		extractor: extractor,
		builder:   builder,
		runner:    runner,
		history:   history,
		logger:    logger.With("component", "answer"),
	}
}

// Answer runs the pipeline for one question. Every failure surfaces as its
// typed error; nothing degrades to a partial answer. The catalog snapshot is
// pinned once at the start so a concurrent reload cannot split the request
// across two schema versions.
func (s *Service) Answer(ctx context.Context, question string) (*domain.AnswerPayload, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		err := domain.ErrIntentParse("question is empty")
		err.Question = question
		return nil, err
	}

	start := time.Now()
	snap := s.catalog.Current()
	logger := s.logger.With("question_hash", questionHash(question), "catalog_version", snap.Version)
	logger.Info("answering question")

	in, err := s.extractor.Extract(ctx, question, snap)
	if err != nil {
		s.record(failedEntry(question, domain.StrategyUnknown, nil, err, time.Since(start)))
		return nil, err
	}
	logger.Debug("intent extracted", "refs", len(in.Refs()), "elapsed", time.Since(start))

	strat, err := strategy.Select(snap, in)
	if err != nil {
		s.record(failedEntry(question, domain.StrategyUnknown, nil, err, time.Since(start)))
		return nil, err
	}
	logger = logger.With("strategy", string(strat))

	p, err := s.builder.Build(snap, in, strat)
	if err != nil {
		s.record(failedEntry(question, strat, nil, err, time.Since(start)))
		return nil, err
	}

	exec, err := s.runner.Run(ctx, p)
	if err != nil {
		s.record(failedEntry(question, strat, exec, err, time.Since(start)))
		return nil, err
	}

	rows, fuseWarnings := fuse.Fuse(p, exec.Steps)

	payload := &domain.AnswerPayload{
		Rows:         rows,
		Warnings:     collectWarnings(in.Assumptions, exec.Warnings, fuseWarnings),
		StrategyUsed: strat,
		Queries:      exec.Queries,
		Elapsed:      time.Since(start),
	}
	logger.Info("question answered",
		"rows", len(payload.Rows),
		"warnings", len(payload.Warnings),
		"queries", len(payload.Queries),
		"elapsed", payload.Elapsed,
	)

	s.record(doneEntry(question, payload))
	return payload, nil
}

// record inserts a history entry on its own goroutine and context: answers
// never wait on, or fail because of, the history store.
func (s *Service) record(e *domain.HistoryEntry) {
	if s.history == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.history.Insert(ctx, e); err != nil {
			s.logger.Warn("history insert failed", "id", e.ID, "error", err)
		}
	}()
}

func doneEntry(question string, payload *domain.AnswerPayload) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:         domain.NewID(),
		Question:   question,
		Strategy:   string(payload.StrategyUsed),
		Queries:    queryTexts(payload.Queries),
		Status:     domain.HistoryStatusDone,
		RowCount:   int64(len(payload.Rows)),
		Warnings:   payload.Warnings,
		DurationMs: payload.Elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
}

func failedEntry(question string, strat domain.Strategy, exec *engine.Execution, err error, elapsed time.Duration) *domain.HistoryEntry {
	msg := err.Error()
	e := &domain.HistoryEntry{
		ID:           domain.NewID(),
		Question:     question,
		Strategy:     string(strat),
		Status:       domain.HistoryStatusFailed,
		ErrorMessage: &msg,
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if exec != nil {
		e.Queries = queryTexts(exec.Queries)
		e.Warnings = exec.Warnings
	}
	return e
}

func queryTexts(queries []domain.ExecutedQuery) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Query
	}
	return out
}

// collectWarnings merges the warning streams in pipeline order: model
// assumptions, then execution, then fusion.
func collectWarnings(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// questionHash gives logs a stable handle on a question without logging
// user text verbatim.
func questionHash(q string) string {
	sum := sha256.Sum256([]byte(q))
	return hex.EncodeToString(sum[:4])
}
