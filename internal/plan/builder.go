// Package plan compiles a structured intent and a chosen strategy into an
// executable query plan: one or two store-native queries plus the join
// dependency between them. Compilation is deterministic; the same snapshot,
// intent, and strategy always produce byte-identical queries.
package plan

import (
	"fedquery/internal/domain"
)

// Builder compiles intents into query plans. It holds no state; a single
// Builder is safe for concurrent use.
type Builder struct{}

// NewBuilder creates a plan builder.
func NewBuilder() *Builder { return &Builder{} }

// Build compiles the intent for the given strategy. Structural problems
// (no join key, key not producible by the source step, unsupported operator
// for a field's type) surface as PlanValidationError; they indicate an
// extraction or catalog mismatch, never a degraded plan.
func (b *Builder) Build(snap *domain.Snapshot, in *domain.Intent, strat domain.Strategy) (*domain.QueryPlan, error) {
	if !strat.Valid() {
		return nil, domain.ErrPlanValidation("cannot build plan for invalid strategy %q", strat)
	}

	// A time range binds to the series step when the intent touches the
	// series store at all; only a purely relational question applies it to
	// a relational timestamp column.
	timeStore := domain.StoreMySQL
	if len(in.CollectionsFor(domain.StoreInflux)) > 0 {
		timeStore = domain.StoreInflux
	}

	if !strat.CrossStore() {
		store := strat.Stores()[0]
		step, err := b.compileStep(snap, in, store, 0, "", nil, timeStore)
		if err != nil {
			return nil, err
		}
		p := &domain.QueryPlan{Strategy: strat, Steps: []domain.QueryStep{*step}}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	}

	link, err := b.resolveLink(snap, in)
	if err != nil {
		return nil, err
	}

	// The source step must produce the join key; the dependent step filters
	// by it through the placeholder.
	var sourceKey, depKey string
	if strat == domain.StrategyMySQLThenFlux {
		sourceKey, depKey = link.Relational.Field, link.Series.Field
	} else {
		sourceKey, depKey = link.Series.Field, link.Relational.Field
	}

	stores := strat.Stores()
	source, err := b.compileStep(snap, in, stores[0], 0, sourceKey, nil, timeStore)
	if err != nil {
		return nil, err
	}
	dep := &domain.StepDependency{
		StepIndex:   0,
		Field:       sourceKey,
		TargetField: depKey,
		Placeholder: domain.KeyPlaceholder(sourceKey),
	}
	dependent, err := b.compileStep(snap, in, stores[1], 1, depKey, dep, timeStore)
	if err != nil {
		return nil, err
	}

	p := &domain.QueryPlan{
		Strategy:  strat,
		Steps:     []domain.QueryStep{*source, *dependent},
		JoinField: sourceKey,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// resolveLink finds the single declared join link bridging the referenced
// collections. Zero links cannot be joined; more than one is a catalog
// misconfiguration, not a choice the builder makes.
func (b *Builder) resolveLink(snap *domain.Snapshot, in *domain.Intent) (domain.JoinLink, error) {
	links := snap.LinksBetween(
		in.CollectionsFor(domain.StoreMySQL),
		in.CollectionsFor(domain.StoreInflux),
	)
	switch len(links) {
	case 0:
		return domain.JoinLink{}, domain.ErrPlanValidation(
			"no join key between the referenced collections (refs: %s)", domain.JoinRefs(in.Refs()))
	case 1:
		return links[0], nil
	default:
		return domain.JoinLink{}, domain.ErrPlanValidation(
			"%d join links between the referenced collections, expected exactly one", len(links))
	}
}

// compileStep compiles one store's share of the intent. joinField names the
// key column/tag this step must carry: as an extra output on the source
// step (dep == nil), or as the placeholder filter on the dependent step.
// The intent's time range applies only when this step's store is timeStore,
// so "last 24h" never constrains a relational created_at column on the
// lookup side of a federated plan.
func (b *Builder) compileStep(snap *domain.Snapshot, in *domain.Intent, store domain.StoreID, index int, joinField string, dep *domain.StepDependency, timeStore domain.StoreID) (*domain.QueryStep, error) {
	colls := in.CollectionsFor(store)
	if len(colls) == 0 {
		return nil, domain.ErrPlanValidation("strategy requires a %s step but the intent references no %s fields", store, store)
	}
	if len(colls) > 1 {
		return nil, domain.ErrPlanValidation("a step queries exactly one collection, intent references %d in %s", len(colls), store)
	}
	coll, ok := snap.Collection(store, colls[0])
	if !ok {
		return nil, domain.ErrPlanValidation("collection %q not in catalog for store %s", colls[0], store)
	}

	input := stepInput{
		coll:      coll,
		metrics:   in.MetricsFor(store),
		filters:   in.FiltersFor(store),
		groupBy:   in.GroupByFor(store),
		joinField: joinField,
		dep:       dep,
	}
	if store == timeStore {
		input.timeRange = in.TimeRange
	}

	var (
		query  string
		output []string
		err    error
	)
	switch store {
	case domain.StoreMySQL:
		query, output, err = compileMySQL(input)
	case domain.StoreInflux:
		query, output, err = compileInflux(input)
	default:
		return nil, domain.ErrPlanValidation("no compiler for store %q", store)
	}
	if err != nil {
		return nil, err
	}

	return &domain.QueryStep{
		Index:     index,
		Store:     store,
		Query:     query,
		Output:    output,
		DependsOn: dep,
	}, nil
}

// stepInput carries everything a store compiler needs for one step.
type stepInput struct {
	coll      *domain.Collection
	metrics   []domain.Metric
	filters   []domain.Filter
	groupBy   []domain.FieldRef
	timeRange *domain.TimeRange
	joinField string
	dep       *domain.StepDependency
}

// outputName is the deterministic result column for a metric: the field
// name, or "<agg>_<field>" for aggregated metrics.
func outputName(m domain.Metric) string {
	if m.Aggregate == domain.AggNone || m.Aggregate == "" {
		return m.Ref.Field
	}
	return string(m.Aggregate) + "_" + m.Ref.Field
}

// checkAggregate validates an aggregate against the field's semantic type.
func checkAggregate(m domain.Metric, f domain.Field) error {
	agg := m.Aggregate
	if agg == domain.AggNone || agg == "" {
		return nil
	}
	if !agg.Valid() {
		return domain.ErrPlanValidation("unknown aggregate %q on %s", agg, m.Ref)
	}
	if f.Type == domain.FieldTag {
		return domain.ErrPlanValidation("cannot aggregate tag %s", m.Ref)
	}
	switch agg {
	case domain.AggMean, domain.AggSum, domain.AggMax, domain.AggMin:
		if f.Type != domain.FieldNumber {
			return domain.ErrPlanValidation("aggregate %s requires a number field, %s is %s", agg, m.Ref, f.Type)
		}
	}
	return nil
}
