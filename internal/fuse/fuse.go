// Package fuse merges step results into the final answer rows. Fusion is a
// pure function of the plan and the step results: it never talks to a
// store, never fails on data-shape mismatches, and degrades by omitting
// unmergeable rows and recording a warning instead.
package fuse

import (
	"fmt"

	"fedquery/internal/domain"
)

// Fuse builds the answer rows for a completed execution. Single-step plans
// pass their rows through. Two-step plans inner-join the source step's rows
// with the dependent step's rows on the plan's join key; source rows whose
// key matched nothing are dropped and counted into the warnings.
func Fuse(p *domain.QueryPlan, results []domain.StepResult) ([]domain.Row, []string) {
	if len(results) == 0 {
		return []domain.Row{}, nil
	}
	if len(p.Steps) == 1 {
		return results[0].Rows, nil
	}
	// Dependent step skipped: the join has an empty side, so nothing fuses.
	if len(results) == 1 {
		return []domain.Row{}, nil
	}
	return merge(results[0], results[1], p.Steps[1].DependsOn)
}

// merge inner-joins dependent rows into source rows. Output order is
// source-major: source rows in step order, each followed by its matches in
// dependent step order.
func merge(source, dependent domain.StepResult, dep *domain.StepDependency) ([]domain.Row, []string) {
	byKey := make(map[string][]domain.Row, len(dependent.Rows))
	for _, row := range dependent.Rows {
		k, ok := domain.KeyString(row[dep.TargetField])
		if !ok {
			continue
		}
		byKey[k] = append(byKey[k], row)
	}

	fused := make([]domain.Row, 0, len(source.Rows))
	unmatched := 0
	for _, src := range source.Rows {
		k, ok := domain.KeyString(src[dep.Field])
		if !ok {
			unmatched++
			continue
		}
		matches := byKey[k]
		if len(matches) == 0 {
			unmatched++
			continue
		}
		for _, m := range matches {
			fused = append(fused, mergeRow(src, m, source.Store, dependent.Store))
		}
	}

	var warnings []string
	if unmatched > 0 {
		warnings = append(warnings, fmt.Sprintf("%d unmatched source rows", unmatched))
	}
	return fused, warnings
}

// mergeRow combines one source row with one matching dependent row. A
// column present on both sides collapses when the values agree; disagreeing
// values are kept under store-prefixed names so neither side is lost.
func mergeRow(src, dep domain.Row, srcStore, depStore domain.StoreID) domain.Row {
	out := make(domain.Row, len(src)+len(dep))
	for k, v := range src {
		out[k] = v
	}
	for k, v := range dep {
		cur, exists := out[k]
		if !exists {
			out[k] = v
			continue
		}
		if equalValue(cur, v) {
			continue
		}
		delete(out, k)
		out[string(srcStore)+"."+k] = cur
		out[string(depStore)+"."+k] = v
	}
	return out
}

// equalValue compares two row values by their key-string rendering, so
// int64(10) and "10" collapse instead of prefixing.
func equalValue(a, b any) bool {
	as, aok := domain.KeyString(a)
	bs, bok := domain.KeyString(b)
	if !aok || !bok {
		return aok == bok
	}
	return as == bs
}
