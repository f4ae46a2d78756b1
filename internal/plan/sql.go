package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fedquery/internal/domain"
)

var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// compileMySQL renders one relational step as final SQL text. Values are
// inlined as escaped literals because the plan contract is store-native
// query text; only the join placeholder survives to execution time.
func compileMySQL(in stepInput) (string, []string, error) {
	var (
		selects   []string
		output    []string
		groupCols []string
		hasAgg    bool
	)

	addPlain := func(col string) {
		q := quoteMySQLIdent(col)
		for _, s := range selects {
			if s == q {
				return
			}
		}
		selects = append(selects, q)
		output = append(output, col)
	}

	for _, m := range in.metrics {
		f, ok := in.coll.Field(m.Ref.Field)
		if !ok {
			return "", nil, domain.ErrPlanValidation("field %s not in collection %q", m.Ref, in.coll.Name)
		}
		if err := checkAggregate(m, f); err != nil {
			return "", nil, err
		}
		if m.Aggregate == domain.AggNone || m.Aggregate == "" {
			addPlain(m.Ref.Field)
			continue
		}
		fn, ok := mysqlAggFunc[m.Aggregate]
		if !ok {
			return "", nil, domain.ErrPlanValidation("aggregate %s is not supported on %s", m.Aggregate, domain.StoreMySQL)
		}
		name := outputName(m)
		selects = append(selects, fmt.Sprintf("%s(%s) AS %s", fn, quoteMySQLIdent(m.Ref.Field), quoteMySQLIdent(name)))
		output = append(output, name)
		hasAgg = true
	}

	for _, g := range in.groupBy {
		if _, ok := in.coll.Field(g.Field); !ok {
			return "", nil, domain.ErrPlanValidation("group-by field %s not in collection %q", g, in.coll.Name)
		}
		addPlain(g.Field)
	}

	// The join key rides along: selected on both the source step (so its
	// rows carry the key) and the dependent step (so fused rows can match).
	if in.joinField != "" {
		if _, ok := in.coll.Field(in.joinField); !ok {
			return "", nil, domain.ErrPlanValidation("join field %q not in collection %q", in.joinField, in.coll.Name)
		}
		addPlain(in.joinField)
	}

	if len(selects) == 0 {
		return "", nil, domain.ErrPlanValidation("step on %s selects no fields", domain.StoreMySQL)
	}

	// Any aggregate forces grouping by every plain-selected column.
	if hasAgg {
		for _, s := range selects {
			if !strings.Contains(s, "(") {
				groupCols = append(groupCols, s)
			}
		}
	}

	q := sb.Select(selects...).From(quoteMySQLIdent(in.coll.Name))

	var conds sq.And
	for _, f := range in.filters {
		cond, err := mysqlCondition(in.coll, f)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
	}
	if in.timeRange != nil {
		if ts, ok := in.coll.TimestampField(); ok {
			col := quoteMySQLIdent(ts.Name)
			conds = append(conds,
				sq.GtOrEq{col: in.timeRange.Start.UTC().Format(mysqlTimeLayout)},
				sq.LtOrEq{col: in.timeRange.End.UTC().Format(mysqlTimeLayout)},
			)
		}
	}
	if in.dep != nil {
		q = q.Where(sq.Expr(quoteMySQLIdent(in.joinField) + " IN (" + in.dep.Placeholder + ")"))
	}
	if len(conds) > 0 {
		q = q.Where(conds)
	}
	if len(groupCols) > 0 {
		q = q.GroupBy(groupCols...)
	}

	text, args, err := q.ToSql()
	if err != nil {
		return "", nil, domain.ErrPlanValidation("render sql: %v", err)
	}
	return inlineSQLArgs(text, args), output, nil
}

const mysqlTimeLayout = "2006-01-02 15:04:05"

var mysqlAggFunc = map[domain.Aggregate]string{
	domain.AggMean:  "AVG",
	domain.AggMax:   "MAX",
	domain.AggMin:   "MIN",
	domain.AggSum:   "SUM",
	domain.AggCount: "COUNT",
}

// mysqlCondition maps one intent filter onto a squirrel predicate.
func mysqlCondition(coll *domain.Collection, f domain.Filter) (sq.Sqlizer, error) {
	if _, ok := coll.Field(f.Ref.Field); !ok {
		return nil, domain.ErrPlanValidation("filter field %s not in collection %q", f.Ref, coll.Name)
	}
	col := quoteMySQLIdent(f.Ref.Field)
	switch f.Op {
	case domain.OpEq:
		return sq.Eq{col: f.Value}, nil
	case domain.OpNeq:
		return sq.NotEq{col: f.Value}, nil
	case domain.OpGt:
		return sq.Gt{col: f.Value}, nil
	case domain.OpGte:
		return sq.GtOrEq{col: f.Value}, nil
	case domain.OpLt:
		return sq.Lt{col: f.Value}, nil
	case domain.OpLte:
		return sq.LtOrEq{col: f.Value}, nil
	case domain.OpLike:
		pattern := fmt.Sprintf("%v", f.Value)
		if !strings.Contains(pattern, "%") {
			pattern = "%" + pattern + "%"
		}
		return sq.Like{col: pattern}, nil
	case domain.OpIn:
		vals, ok := f.Value.([]any)
		if !ok {
			vals = []any{f.Value}
		}
		return sq.Eq{col: vals}, nil
	default:
		return nil, domain.ErrPlanValidation("operator %q is not supported on %s", f.Op, domain.StoreMySQL)
	}
}

// inlineSQLArgs substitutes each ? placeholder with the escaped literal of
// its argument, producing self-contained query text.
func inlineSQLArgs(text string, args []any) string {
	if len(args) == 0 {
		return text
	}
	var out strings.Builder
	argIdx := 0
	for _, r := range text {
		if r == '?' && argIdx < len(args) {
			out.WriteString(mysqlLiteral(args[argIdx]))
			argIdx++
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

// mysqlLiteral renders a Go value as a MySQL literal.
func mysqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return "'" + x.UTC().Format(mysqlTimeLayout) + "'"
	case string:
		return "'" + escapeMySQLString(x) + "'"
	default:
		return "'" + escapeMySQLString(fmt.Sprintf("%v", x)) + "'"
	}
}

func quoteMySQLIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func escapeMySQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}
