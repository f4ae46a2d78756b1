package intent

import (
	"fmt"
	"strings"
	"time"

	"fedquery/internal/domain"
)

// systemPrompt fixes the extraction contract. The model only extracts; it
// never decides execution order, that is the strategy selector's job.
const systemPrompt = `You are a query analyst for a federated observability platform. You turn one natural-language question into a structured query intent against a catalog of MySQL tables and InfluxDB measurements.

Rules:
- Reference fields ONLY from the catalog, always written as store.collection.field.
- Copy filter values verbatim from the question.
- Use an aggregate only when the question asks for one: mean, max, min, sum, count, last.
- Express any time constraint as an absolute UTC time_range with RFC 3339 start and end, resolved against the current time given below.
- If the question names data the catalog does not have, or you cannot read it unambiguously, put your follow-up questions in clarification_needed instead of guessing.
- Record every assumption you silently made in assumptions.
- strategy_hint is optional: one of mysql_only, influxdb_only, mysql_then_influxdb, influxdb_then_mysql.

Respond with a single JSON object:
{
  "metrics": [{"field": "store.collection.field", "aggregate": "none|mean|max|min|sum|count|last"}],
  "filters": [{"field": "store.collection.field", "op": "=|!=|>|>=|<|<=|like|in", "value": <scalar or array>}],
  "time_range": {"start": "RFC3339", "end": "RFC3339"} or null,
  "group_by": ["store.collection.field"],
  "strategy_hint": "" ,
  "confidence": 0.0,
  "assumptions": [],
  "clarification_needed": []
}`

// userPrompt renders the catalog and the question. The catalog section is
// deterministic for a given snapshot so extraction stays reproducible.
func userPrompt(question string, snap *domain.Snapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Catalog (version %s)\n\n", snap.Version)

	b.WriteString("### MySQL tables\n")
	writeCollections(&b, snap.Stores[domain.StoreMySQL])

	b.WriteString("\n### InfluxDB measurements\n")
	writeCollections(&b, snap.Stores[domain.StoreInflux])

	b.WriteString("\n### Join links\n")
	if len(snap.Links) == 0 {
		b.WriteString("(none)\n")
	}
	for _, l := range snap.Links {
		fmt.Fprintf(&b, "- %s\n", l)
	}

	fmt.Fprintf(&b, "\nCurrent time: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\n## Question\n%s\n", question)
	return b.String()
}

func writeCollections(b *strings.Builder, colls []domain.Collection) {
	if len(colls) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, c := range colls {
		parts := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			parts[i] = fmt.Sprintf("%s (%s)", f.Name, f.Type)
		}
		fmt.Fprintf(b, "- %s: %s\n", c.Name, strings.Join(parts, ", "))
	}
}
