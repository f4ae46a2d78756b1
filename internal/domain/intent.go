package domain

import "time"

// Aggregate is an optional aggregation applied to a metric.
type Aggregate string

const (
	AggNone  Aggregate = "none"
	AggMean  Aggregate = "mean"
	AggMax   Aggregate = "max"
	AggMin   Aggregate = "min"
	AggSum   Aggregate = "sum"
	AggCount Aggregate = "count"
	AggLast  Aggregate = "last"
)

// Valid reports whether the aggregate is a known function.
func (a Aggregate) Valid() bool {
	switch a {
	case AggNone, AggMean, AggMax, AggMin, AggSum, AggCount, AggLast:
		return true
	}
	return false
}

// FilterOp is a comparison operator in an intent filter.
type FilterOp string

const (
	OpEq   FilterOp = "="
	OpNeq  FilterOp = "!="
	OpGt   FilterOp = ">"
	OpGte  FilterOp = ">="
	OpLt   FilterOp = "<"
	OpLte  FilterOp = "<="
	OpLike FilterOp = "like"
	OpIn   FilterOp = "in"
)

// Valid reports whether the operator is a known comparison.
func (o FilterOp) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike, OpIn:
		return true
	}
	return false
}

// Metric is one requested output field, optionally aggregated.
type Metric struct {
	Ref       FieldRef
	Aggregate Aggregate
}

// Filter is one predicate from the question. Filter order is the extraction
// order and is preserved through planning.
type Filter struct {
	Ref   FieldRef
	Op    FilterOp
	Value any
}

// TimeRange bounds a query in time. Both ends are inclusive.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Intent is the structured reading of a natural-language question against a
// specific catalog snapshot. It is immutable once built; the same question
// and snapshot always produce the same intent for the same model output.
type Intent struct {
	RawQuestion string
	Metrics     []Metric
	Filters     []Filter
	TimeRange   *TimeRange
	GroupBy     []FieldRef
	// Hint is an optional caller- or model-supplied strategy suggestion.
	// It is validated before use and ignored when inconsistent.
	Hint Strategy
	// Assumptions the model made while reading the question. Surfaced to the
	// caller as warnings, never acted on silently.
	Assumptions []string
}

// Refs returns every field reference in the intent: metrics first, then
// filters, then group-by, in declaration order.
func (in *Intent) Refs() []FieldRef {
	out := make([]FieldRef, 0, len(in.Metrics)+len(in.Filters)+len(in.GroupBy))
	for _, m := range in.Metrics {
		out = append(out, m.Ref)
	}
	for _, f := range in.Filters {
		out = append(out, f.Ref)
	}
	out = append(out, in.GroupBy...)
	return out
}

// StoresReferenced returns the distinct stores the intent touches, in
// first-reference order.
func (in *Intent) StoresReferenced() []StoreID {
	var out []StoreID
	seen := make(map[StoreID]bool, 2)
	for _, r := range in.Refs() {
		if !seen[r.Store] {
			seen[r.Store] = true
			out = append(out, r.Store)
		}
	}
	return out
}

// MetricsFor returns the metrics targeting the given store, in order.
func (in *Intent) MetricsFor(store StoreID) []Metric {
	var out []Metric
	for _, m := range in.Metrics {
		if m.Ref.Store == store {
			out = append(out, m)
		}
	}
	return out
}

// FiltersFor returns the filters targeting the given store, in order.
func (in *Intent) FiltersFor(store StoreID) []Filter {
	var out []Filter
	for _, f := range in.Filters {
		if f.Ref.Store == store {
			out = append(out, f)
		}
	}
	return out
}

// GroupByFor returns the group-by refs targeting the given store, in order.
func (in *Intent) GroupByFor(store StoreID) []FieldRef {
	var out []FieldRef
	for _, g := range in.GroupBy {
		if g.Store == store {
			out = append(out, g)
		}
	}
	return out
}

// CollectionsFor returns the distinct collections the intent references in
// the given store, in first-reference order.
func (in *Intent) CollectionsFor(store StoreID) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range in.Refs() {
		if r.Store == store && !seen[r.Collection] {
			seen[r.Collection] = true
			out = append(out, r.Collection)
		}
	}
	return out
}
