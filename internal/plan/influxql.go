package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fedquery/internal/domain"
)

// compileInflux renders one time-series step as InfluxQL. InfluxQL has no
// joins and no subqueries across measurements, so a step is always a single
// SELECT over one measurement. Tags never appear in the projection; they go
// through GROUP BY and the store adapter merges them back into each row.
func compileInflux(in stepInput) (string, []string, error) {
	var (
		selects  []string
		output   []string
		groupTag []string
		hasAgg   bool
		hasRaw   bool
	)

	addGroupTag := func(tag string) {
		for _, g := range groupTag {
			if g == tag {
				return
			}
		}
		groupTag = append(groupTag, tag)
	}

	for _, m := range in.metrics {
		f, ok := in.coll.Field(m.Ref.Field)
		if !ok {
			return "", nil, domain.ErrPlanValidation("field %s not in measurement %q", m.Ref, in.coll.Name)
		}
		if err := checkAggregate(m, f); err != nil {
			return "", nil, err
		}
		if f.Type == domain.FieldTag {
			addGroupTag(m.Ref.Field)
			continue
		}
		if m.Aggregate == domain.AggNone || m.Aggregate == "" {
			selects = append(selects, quoteInfluxIdent(m.Ref.Field))
			output = append(output, m.Ref.Field)
			hasRaw = true
			continue
		}
		name := outputName(m)
		selects = append(selects, fmt.Sprintf("%s(%s) AS %s",
			influxAggFunc[m.Aggregate], quoteInfluxIdent(m.Ref.Field), quoteInfluxIdent(name)))
		output = append(output, name)
		hasAgg = true
	}

	if hasAgg && hasRaw {
		return "", nil, domain.ErrPlanValidation("influxql cannot mix aggregated and raw fields in one query")
	}

	// A projection-less step (intent only wants tags from this store)
	// still needs at least one field: fall back to the filtered fields.
	if len(selects) == 0 {
		for _, f := range in.filters {
			fld, ok := in.coll.Field(f.Ref.Field)
			if !ok || fld.Type == domain.FieldTag || fld.Type == domain.FieldTimestamp {
				continue
			}
			q := quoteInfluxIdent(f.Ref.Field)
			if !containsStr(selects, q) {
				selects = append(selects, q)
				output = append(output, f.Ref.Field)
			}
		}
	}
	if len(selects) == 0 {
		return "", nil, domain.ErrPlanValidation("step on %s selects no fields", domain.StoreInflux)
	}

	for _, g := range in.groupBy {
		f, ok := in.coll.Field(g.Field)
		if !ok {
			return "", nil, domain.ErrPlanValidation("group-by field %s not in measurement %q", g, in.coll.Name)
		}
		if f.Type != domain.FieldTag {
			return "", nil, domain.ErrPlanValidation("influxql can only group by tags, %s is %s", g, f.Type)
		}
		addGroupTag(g.Field)
	}

	// The join tag rides along via GROUP BY on both the source step (rows
	// must carry the key) and the dependent step (fused rows must match).
	if in.joinField != "" {
		f, ok := in.coll.Field(in.joinField)
		if !ok {
			return "", nil, domain.ErrPlanValidation("join field %q not in measurement %q", in.joinField, in.coll.Name)
		}
		if f.Type != domain.FieldTag {
			return "", nil, domain.ErrPlanValidation("join field %q on %s must be a tag, got %s", in.joinField, domain.StoreInflux, f.Type)
		}
		addGroupTag(in.joinField)
	}

	var conds []string
	if in.dep != nil {
		conds = append(conds, "("+in.dep.Placeholder+")")
	}
	for _, f := range in.filters {
		cond, err := influxCondition(in.coll, f)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
	}
	if in.timeRange != nil {
		conds = append(conds,
			fmt.Sprintf("time >= '%s'", in.timeRange.Start.UTC().Format(time.RFC3339)),
			fmt.Sprintf("time <= '%s'", in.timeRange.End.UTC().Format(time.RFC3339)),
		)
	}

	var q strings.Builder
	q.WriteString("SELECT ")
	q.WriteString(strings.Join(selects, ", "))
	q.WriteString(" FROM ")
	q.WriteString(quoteInfluxIdent(in.coll.Name))
	if len(conds) > 0 {
		q.WriteString(" WHERE ")
		q.WriteString(strings.Join(conds, " AND "))
	}
	if len(groupTag) > 0 {
		quoted := make([]string, len(groupTag))
		for i, g := range groupTag {
			quoted[i] = quoteInfluxIdent(g)
		}
		q.WriteString(" GROUP BY ")
		q.WriteString(strings.Join(quoted, ", "))
	}

	output = append(output, groupTag...)
	return q.String(), output, nil
}

var influxAggFunc = map[domain.Aggregate]string{
	domain.AggMean:  "MEAN",
	domain.AggMax:   "MAX",
	domain.AggMin:   "MIN",
	domain.AggSum:   "SUM",
	domain.AggCount: "COUNT",
	domain.AggLast:  "LAST",
}

// influxCondition renders one filter. Tag predicates only support equality
// forms; tag values are always string literals.
func influxCondition(coll *domain.Collection, f domain.Filter) (string, error) {
	fld, ok := coll.Field(f.Ref.Field)
	if !ok {
		return "", domain.ErrPlanValidation("filter field %s not in measurement %q", f.Ref, coll.Name)
	}
	ident := quoteInfluxIdent(f.Ref.Field)
	isTag := fld.Type == domain.FieldTag

	switch f.Op {
	case domain.OpEq, domain.OpNeq:
		op := "="
		if f.Op == domain.OpNeq {
			op = "!="
		}
		return fmt.Sprintf("%s %s %s", ident, op, influxLiteral(f.Value, isTag)), nil
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		if isTag {
			return "", domain.ErrPlanValidation("tag %s only supports equality predicates, got %q", f.Ref, f.Op)
		}
		return fmt.Sprintf("%s %s %s", ident, f.Op, influxLiteral(f.Value, false)), nil
	case domain.OpIn:
		vals, ok := f.Value.([]any)
		if !ok {
			vals = []any{f.Value}
		}
		if len(vals) == 0 {
			return "", domain.ErrPlanValidation("empty IN list for %s", f.Ref)
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("%s = %s", ident, influxLiteral(v, isTag))
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	default:
		return "", domain.ErrPlanValidation("operator %q is not supported on %s", f.Op, domain.StoreInflux)
	}
}

// influxLiteral renders a value as an InfluxQL literal. Tag comparisons are
// always against string literals regardless of the Go type.
func influxLiteral(v any, asString bool) string {
	if asString {
		return "'" + escapeInfluxString(fmt.Sprintf("%v", v)) + "'"
	}
	switch x := v.(type) {
	case nil:
		return "''"
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return "'" + escapeInfluxString(x) + "'"
	default:
		return "'" + escapeInfluxString(fmt.Sprintf("%v", x)) + "'"
	}
}

func quoteInfluxIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
}

func escapeInfluxString(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
