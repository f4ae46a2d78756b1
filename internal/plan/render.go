package plan

import (
	"strconv"
	"strings"

	"fedquery/internal/domain"
)

// RenderKeys renders distinct join key values into the text that replaces a
// dependent step's placeholder. The shape is store-specific: a literal list
// for a SQL IN clause, an OR-joined tag disjunction for InfluxQL.
func RenderKeys(store domain.StoreID, field string, values []string) string {
	switch store {
	case domain.StoreMySQL:
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = sqlKeyLiteral(v)
		}
		return strings.Join(parts, ", ")
	case domain.StoreInflux:
		ident := quoteInfluxIdent(field)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = ident + " = '" + escapeInfluxString(v) + "'"
		}
		return strings.Join(parts, " OR ")
	default:
		return ""
	}
}

// sqlKeyLiteral keeps numeric keys unquoted so integer primary keys compare
// natively; everything else is an escaped string literal.
func sqlKeyLiteral(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return "'" + escapeMySQLString(v) + "'"
}
