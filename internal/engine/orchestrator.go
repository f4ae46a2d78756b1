// Package engine runs validated query plans against the federated stores.
// Execution is a strict state machine: steps run in plan order, a dependent
// step only runs after its source step produced join key values, and a
// failed step fails the whole run. There is no fallback to a partial
// strategy.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fedquery/internal/domain"
	"fedquery/internal/plan"
)

// State is the lifecycle position of one plan execution.
type State string

const (
	StatePending      State = "PENDING"
	StateRunningStep0 State = "RUNNING_STEP_0"
	StateRunningStep1 State = "RUNNING_STEP_1"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

func runningState(index int) State {
	if index == 0 {
		return StateRunningStep0
	}
	return StateRunningStep1
}

// Skip warnings are part of the answer surface and compared verbatim by
// callers; do not reword them.
const (
	warnSourceEmpty = "0 source rows, step 2 skipped"
	warnNoKeys      = "0 usable join key values, step 2 skipped"
)

// Execution is the trace of one plan run: every step's rows, the queries as
// actually sent (placeholders substituted), and the warnings produced. It is
// returned even when the run fails so callers can record what ran.
type Execution struct {
	State    State
	Steps    []domain.StepResult
	Queries  []domain.ExecutedQuery
	Warnings []string
}

func (e *Execution) record(res *domain.StepResult, query string) {
	e.Steps = append(e.Steps, *res)
	e.Queries = append(e.Queries, domain.ExecutedQuery{
		Store:    res.Store,
		Query:    query,
		RowCount: len(res.Rows),
		Elapsed:  res.Elapsed,
		Attempts: res.Attempts,
	})
}

// FinalRows returns the rows of the last completed step, the input to
// fusion for two-step runs and the answer itself for single-step runs.
func (e *Execution) FinalRows() []domain.Row {
	if len(e.Steps) == 0 {
		return nil
	}
	return e.Steps[len(e.Steps)-1].Rows
}

// Config bounds step execution.
type Config struct {
	// QueryTimeout caps each attempt, not the whole run.
	QueryTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt, applied
	// only to failures classified transient by the store adapters.
	MaxRetries int
	// RetryInterval seeds the exponential backoff between attempts.
	RetryInterval time.Duration
}

// Orchestrator executes query plans against registered store executors.
// It is stateless between runs and safe for concurrent use.
type Orchestrator struct {
	executors map[domain.StoreID]domain.StoreExecutor
	cfg       Config
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given executors.
func NewOrchestrator(executors []domain.StoreExecutor, cfg Config, logger *slog.Logger) *Orchestrator {
	m := make(map[domain.StoreID]domain.StoreExecutor, len(executors))
	for _, ex := range executors {
		m[ex.ID()] = ex
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	return &Orchestrator{
		executors: m,
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
	}
}

// Run executes the plan. A two-step plan whose source step yields no rows
// (or no usable key values) finishes DONE with the dependent step skipped
// and a warning recorded; only store failures and cancellation fail a run.
func (o *Orchestrator) Run(ctx context.Context, p *domain.QueryPlan) (*Execution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, step := range p.Steps {
		if _, ok := o.executors[step.Store]; !ok {
			return nil, domain.ErrPlanValidation("no executor registered for store %q", step.Store)
		}
	}

	exec := &Execution{State: StatePending}
	logger := o.logger.With("strategy", string(p.Strategy))
	logger.Info("plan execution started", "steps", len(p.Steps))

	source := p.Steps[0]
	exec.State = runningState(0)
	srcRes, err := o.runStep(ctx, source, source.Query, logger)
	if err != nil {
		exec.State = StateFailed
		return exec, err
	}
	exec.record(srcRes, source.Query)

	if len(p.Steps) == 1 {
		exec.State = StateDone
		return exec, nil
	}

	dependent := p.Steps[1]
	dep := dependent.DependsOn

	if len(srcRes.Rows) == 0 {
		exec.Warnings = append(exec.Warnings, warnSourceEmpty)
		exec.State = StateDone
		logger.Info("dependent step skipped", "reason", "no source rows")
		return exec, nil
	}

	keys := keyValues(srcRes.Rows, dep.Field)
	if len(keys) == 0 {
		exec.Warnings = append(exec.Warnings, warnNoKeys)
		exec.State = StateDone
		logger.Info("dependent step skipped", "reason", "no join key values")
		return exec, nil
	}

	rendered := plan.RenderKeys(dependent.Store, dep.TargetField, keys)
	query := strings.Replace(dependent.Query, dep.Placeholder, rendered, 1)

	exec.State = runningState(1)
	depRes, err := o.runStep(ctx, dependent, query, logger)
	if err != nil {
		exec.State = StateFailed
		return exec, err
	}
	exec.record(depRes, query)

	exec.State = StateDone
	return exec, nil
}

// runStep executes one step with a per-attempt timeout, retrying transient
// store failures up to MaxRetries times with exponential backoff.
func (o *Orchestrator) runStep(ctx context.Context, step domain.QueryStep, query string, logger *slog.Logger) (*domain.StepResult, error) {
	logger = logger.With("step", step.Index, "store", string(step.Store))
	executor := o.executors[step.Store]

	var (
		rows     []domain.Row
		attempts int
	)
	start := time.Now()

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.QueryTimeout)
		defer cancel()

		r, err := executor.Execute(attemptCtx, query)
		if err != nil {
			var storeErr *domain.StoreError
			if errors.As(err, &storeErr) && storeErr.Transient() {
				logger.Warn("step attempt failed", "attempt", attempts, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		rows = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(o.cfg.MaxRetries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		logger.Error("step failed", "attempts", attempts, "error", err)
		return nil, err
	}

	res := &domain.StepResult{
		StepIndex: step.Index,
		Store:     step.Store,
		Rows:      rows,
		Elapsed:   time.Since(start),
		Attempts:  attempts,
	}
	logger.Info("step completed", "rows", len(rows), "attempts", attempts, "elapsed", res.Elapsed)
	return res, nil
}

// keyValues extracts the distinct join key values from the source rows in
// first-seen order. Rows with a missing or empty key contribute nothing.
func keyValues(rows []domain.Row, field string) []string {
	var out []string
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		s, ok := domain.KeyString(row[field])
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
