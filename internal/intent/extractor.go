// Package intent turns natural-language questions into structured query
// intents using a language model. The extractor validates everything the
// model returns against the catalog snapshot; a hallucinated field is a
// hard IntentParseError, never a best-effort guess.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fedquery/internal/domain"
)

// wireIntent is the JSON contract with the model.
type wireIntent struct {
	Metrics             []wireMetric   `json:"metrics"`
	Filters             []wireFilter   `json:"filters"`
	TimeRange           *wireTimeRange `json:"time_range"`
	GroupBy             []string       `json:"group_by"`
	StrategyHint        string         `json:"strategy_hint"`
	Confidence          float64        `json:"confidence"`
	Assumptions         []string       `json:"assumptions"`
	ClarificationNeeded []string       `json:"clarification_needed"`
}

type wireMetric struct {
	Field     string `json:"field"`
	Aggregate string `json:"aggregate"`
}

type wireFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type wireTimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Extractor builds intents from questions via a language model.
type Extractor struct {
	model  domain.LanguageModel
	logger *slog.Logger
	now    func() time.Time
}

// NewExtractor creates an extractor backed by the given model.
func NewExtractor(model domain.LanguageModel, logger *slog.Logger) *Extractor {
	return &Extractor{
		model:  model,
		logger: logger.With("component", "intent"),
		now:    time.Now,
	}
}

// Extract runs one completion and validates the result against the
// snapshot. All failure modes (model error, malformed JSON, unknown
// references, clarification requests) surface as IntentParseError.
func (e *Extractor) Extract(ctx context.Context, question string, snap *domain.Snapshot) (*domain.Intent, error) {
	raw, err := e.model.Complete(ctx, systemPrompt, userPrompt(question, snap, e.now()))
	if err != nil {
		perr := domain.ErrIntentParse("language model: %v", err)
		perr.Question = question
		return nil, perr
	}

	var wire wireIntent
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		perr := domain.ErrIntentParse("model returned malformed JSON: %v", err)
		perr.Question = question
		return nil, perr
	}

	if len(wire.ClarificationNeeded) > 0 {
		return nil, &domain.IntentParseError{
			Message:        "question needs clarification",
			Question:       question,
			Clarifications: wire.ClarificationNeeded,
		}
	}

	in, unknown, err := e.toIntent(question, &wire, snap)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		return nil, &domain.IntentParseError{
			Message:  "question references fields not in the catalog",
			Question: question,
			Unknown:  unknown,
		}
	}
	if len(in.Metrics) == 0 && len(in.Filters) == 0 && len(in.GroupBy) == 0 {
		perr := domain.ErrIntentParse("question maps to no catalog fields")
		perr.Question = question
		return nil, perr
	}

	e.logger.Info("intent extracted",
		"metrics", len(in.Metrics),
		"filters", len(in.Filters),
		"group_by", len(in.GroupBy),
		"hint", string(in.Hint),
		"confidence", wire.Confidence)
	return in, nil
}

// toIntent converts the wire shape, resolving every reference against the
// snapshot. Unknown references are collected rather than failing one at a
// time so the caller sees them all at once. Repeated metrics and group-by
// references collapse to their first occurrence.
func (e *Extractor) toIntent(question string, wire *wireIntent, snap *domain.Snapshot) (*domain.Intent, []string, error) {
	in := &domain.Intent{
		RawQuestion: question,
		Assumptions: wire.Assumptions,
	}
	var unknown []string

	resolve := func(s string) (domain.FieldRef, bool, error) {
		ref, err := parseRef(s)
		if err != nil {
			perr := domain.ErrIntentParse("%v", err)
			perr.Question = question
			return domain.FieldRef{}, false, perr
		}
		if _, err := snap.ResolveField(ref); err != nil {
			unknown = append(unknown, s)
			return ref, false, nil
		}
		return ref, true, nil
	}

	seenMetrics := make(map[domain.Metric]bool, len(wire.Metrics))
	for _, m := range wire.Metrics {
		ref, ok, err := resolve(m.Field)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		agg := domain.Aggregate(m.Aggregate)
		if m.Aggregate == "" {
			agg = domain.AggNone
		}
		if !agg.Valid() {
			perr := domain.ErrIntentParse("unknown aggregate %q on %s", m.Aggregate, m.Field)
			perr.Question = question
			return nil, nil, perr
		}
		metric := domain.Metric{Ref: ref, Aggregate: agg}
		if seenMetrics[metric] {
			continue
		}
		seenMetrics[metric] = true
		in.Metrics = append(in.Metrics, metric)
	}

	for _, f := range wire.Filters {
		ref, ok, err := resolve(f.Field)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		op := domain.FilterOp(f.Op)
		if !op.Valid() {
			perr := domain.ErrIntentParse("unknown operator %q on %s", f.Op, f.Field)
			perr.Question = question
			return nil, nil, perr
		}
		in.Filters = append(in.Filters, domain.Filter{Ref: ref, Op: op, Value: f.Value})
	}

	seenGroups := make(map[domain.FieldRef]bool, len(wire.GroupBy))
	for _, g := range wire.GroupBy {
		ref, ok, err := resolve(g)
		if err != nil {
			return nil, nil, err
		}
		if !ok || seenGroups[ref] {
			continue
		}
		seenGroups[ref] = true
		in.GroupBy = append(in.GroupBy, ref)
	}

	if wire.TimeRange != nil {
		tr, err := parseTimeRange(wire.TimeRange)
		if err != nil {
			perr := domain.ErrIntentParse("%v", err)
			perr.Question = question
			return nil, nil, perr
		}
		in.TimeRange = tr
	}

	if wire.StrategyHint != "" {
		hint := domain.Strategy(wire.StrategyHint)
		if hint.Valid() {
			in.Hint = hint
		} else {
			e.logger.Debug("ignoring unknown strategy hint", "hint", wire.StrategyHint)
		}
	}

	return in, unknown, nil
}

// parseRef splits store.collection.field. Collection and field names never
// contain dots in either store, so a plain 3-way split is exact.
func parseRef(s string) (domain.FieldRef, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return domain.FieldRef{}, fmt.Errorf("field %q is not of the form store.collection.field", s)
	}
	store := domain.StoreID(parts[0])
	if !store.Valid() {
		return domain.FieldRef{}, fmt.Errorf("unknown store %q in field %q", parts[0], s)
	}
	return domain.FieldRef{Store: store, Collection: parts[1], Field: parts[2]}, nil
}

func parseTimeRange(w *wireTimeRange) (*domain.TimeRange, error) {
	start, err := parseTimestamp(w.Start)
	if err != nil {
		return nil, fmt.Errorf("time_range start: %v", err)
	}
	end, err := parseTimestamp(w.End)
	if err != nil {
		return nil, fmt.Errorf("time_range end: %v", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("time_range end %s is before start %s", w.End, w.Start)
	}
	return &domain.TimeRange{Start: start, End: end}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite the JSON response format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
