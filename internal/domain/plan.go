package domain

import "fmt"

// StepDependency records that a step's query depends on values produced by
// an earlier step. Field names the key in the source step's output rows;
// TargetField names the same key on the dependent store's side (the two
// differ when the catalog link maps a column onto a tag with another name).
// Placeholder is the exact token embedded in the dependent query text; the
// executor substitutes it with rendered key values.
type StepDependency struct {
	StepIndex   int
	Field       string
	TargetField string
	Placeholder string
}

// QueryStep is one store-native query in a plan. Query is final text for
// independent steps; dependent steps carry the join placeholder until
// execution time.
type QueryStep struct {
	Index     int
	Store     StoreID
	Query     string
	Output    []string
	DependsOn *StepDependency
}

// QueryPlan is an ordered list of 1 or 2 steps plus the join key for
// cross-store plans. Plans are immutable once built.
type QueryPlan struct {
	Strategy  Strategy
	Steps     []QueryStep
	JoinField string
}

// Validate enforces the structural invariants every plan must satisfy
// before execution: step count matches the strategy, a dependent step
// references its source step, and the join key is among the source step's
// declared outputs.
func (p *QueryPlan) Validate() error {
	if !p.Strategy.Valid() {
		return ErrPlanValidation("plan has invalid strategy %q", p.Strategy)
	}
	want := 1
	if p.Strategy.CrossStore() {
		want = 2
	}
	if len(p.Steps) != want {
		return ErrPlanValidation("strategy %s requires %d step(s), plan has %d", p.Strategy, want, len(p.Steps))
	}
	order := p.Strategy.Stores()
	for i, step := range p.Steps {
		if step.Index != i {
			return ErrPlanValidation("step %d carries index %d", i, step.Index)
		}
		if step.Store != order[i] {
			return ErrPlanValidation("step %d targets %s, strategy %s expects %s", i, step.Store, p.Strategy, order[i])
		}
		if step.Query == "" {
			return ErrPlanValidation("step %d has an empty query", i)
		}
	}
	if !p.Strategy.CrossStore() {
		if p.Steps[0].DependsOn != nil {
			return ErrPlanValidation("single-step plan declares a dependency")
		}
		return nil
	}
	dep := p.Steps[1].DependsOn
	if dep == nil {
		return ErrPlanValidation("step 1 of a %s plan must depend on step 0", p.Strategy)
	}
	if dep.StepIndex != 0 {
		return ErrPlanValidation("step 1 depends on step %d, only step 0 is allowed", dep.StepIndex)
	}
	if dep.Field == "" || dep.Field != p.JoinField {
		return ErrPlanValidation("step 1 dependency field %q does not match plan join field %q", dep.Field, p.JoinField)
	}
	if !containsString(p.Steps[0].Output, dep.Field) {
		return ErrPlanValidation("join field %q is not in step 0 output %v", dep.Field, p.Steps[0].Output)
	}
	if dep.TargetField == "" {
		return ErrPlanValidation("step 1 dependency has no target field")
	}
	if dep.Placeholder == "" {
		return ErrPlanValidation("step 1 dependency has no placeholder")
	}
	return nil
}

// KeyPlaceholder renders the placeholder token for a join field. The token
// never collides with SQL or InfluxQL syntax.
func KeyPlaceholder(field string) string {
	return fmt.Sprintf("{{keys:%s}}", field)
}
