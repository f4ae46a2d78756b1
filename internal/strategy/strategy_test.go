package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedquery/internal/domain"
)

func linkedSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Version: "test",
		Stores: map[domain.StoreID][]domain.Collection{
			domain.StoreMySQL: {
				{Name: "servers", Fields: []domain.Field{
					{Name: "id", Type: domain.FieldNumber},
					{Name: "name", Type: domain.FieldString},
					{Name: "company", Type: domain.FieldString},
					{Name: "created_at", Type: domain.FieldTimestamp},
				}},
				{Name: "racks", Fields: []domain.Field{
					{Name: "id", Type: domain.FieldNumber},
					{Name: "location", Type: domain.FieldString},
				}},
			},
			domain.StoreInflux: {
				{Name: "cpu_temperature", Fields: []domain.Field{
					{Name: "time", Type: domain.FieldTimestamp},
					{Name: "server_id", Type: domain.FieldTag},
					{Name: "value", Type: domain.FieldNumber},
				}},
			},
		},
		Links: []domain.JoinLink{
			{
				Relational: domain.FieldRef{Store: domain.StoreMySQL, Collection: "servers", Field: "id"},
				Series:     domain.FieldRef{Store: domain.StoreInflux, Collection: "cpu_temperature", Field: "server_id"},
			},
		},
	}
}

func mysqlRef(coll, field string) domain.FieldRef {
	return domain.FieldRef{Store: domain.StoreMySQL, Collection: coll, Field: field}
}

func influxRef(coll, field string) domain.FieldRef {
	return domain.FieldRef{Store: domain.StoreInflux, Collection: coll, Field: field}
}

func TestSelect(t *testing.T) {
	snap := linkedSnapshot()

	tests := []struct {
		name       string
		intent     *domain.Intent
		want       domain.Strategy
		wantAmbig  bool
		wantReason string
	}{
		{
			name: "all refs on mysql",
			intent: &domain.Intent{
				Metrics: []domain.Metric{{Ref: mysqlRef("servers", "name")}},
				Filters: []domain.Filter{{Ref: mysqlRef("servers", "company"), Op: domain.OpEq, Value: "acme"}},
			},
			want: domain.StrategyMySQLOnly,
		},
		{
			name: "all refs on influx",
			intent: &domain.Intent{
				Metrics: []domain.Metric{{Ref: influxRef("cpu_temperature", "value"), Aggregate: domain.AggMean}},
				Filters: []domain.Filter{{Ref: influxRef("cpu_temperature", "server_id"), Op: domain.OpEq, Value: "42"}},
			},
			want: domain.StrategyInfluxOnly,
		},
		{
			name: "relational filter feeds series metric",
			intent: &domain.Intent{
				Metrics: []domain.Metric{{Ref: influxRef("cpu_temperature", "value"), Aggregate: domain.AggMean}},
				Filters: []domain.Filter{{Ref: mysqlRef("servers", "name"), Op: domain.OpEq, Value: "web-1"}},
			},
			want: domain.StrategyMySQLThenFlux,
		},
		{
			name: "series threshold feeds relational metric",
			intent: &domain.Intent{
				Metrics: []domain.Metric{{Ref: mysqlRef("servers", "company")}},
				Filters: []domain.Filter{{Ref: influxRef("cpu_temperature", "value"), Op: domain.OpGt, Value: 80}},
			},
			want: domain.StrategyFluxThenMySQL,
		},
		{
			name: "forward direction with relational metric alongside",
			intent: &domain.Intent{
				Metrics: []domain.Metric{
					{Ref: mysqlRef("servers", "name")},
					{Ref: influxRef("cpu_temperature", "value"), Aggregate: domain.AggMean},
				},
				Filters: []domain.Filter{{Ref: mysqlRef("servers", "name"), Op: domain.OpEq, Value: "web-1"}},
			},
			want: domain.StrategyMySQLThenFlux,
		},
		{
			name: "symmetric filters and metrics on both stores",
			intent: &domain.Intent{
				Metrics: []domain.Metric{
					{Ref: mysqlRef("servers", "company")},
					{Ref: influxRef("cpu_temperature", "value"), Aggregate: domain.AggMean},
				},
				Filters: []domain.Filter{
					{Ref: mysqlRef("servers", "name"), Op: domain.OpEq, Value: "web-1"},
					{Ref: influxRef("cpu_temperature", "value"), Op: domain.OpGt, Value: 80},
				},
			},
			wantAmbig:  true,
			wantReason: "both dependency directions are plausible",
		},
		{
			name: "mixed refs without a declared link",
			intent: &domain.Intent{
				Metrics: []domain.Metric{{Ref: influxRef("cpu_temperature", "value")}},
				Filters: []domain.Filter{{Ref: mysqlRef("racks", "location"), Op: domain.OpEq, Value: "fra-1"}},
			},
			wantAmbig:  true,
			wantReason: "no declared join relationship",
		},
		{
			name: "mixed metrics with no filters",
			intent: &domain.Intent{
				Metrics: []domain.Metric{
					{Ref: mysqlRef("servers", "name")},
					{Ref: influxRef("cpu_temperature", "value")},
				},
			},
			wantAmbig:  true,
			wantReason: "no dependency direction",
		},
		{
			name: "timestamp filter does not establish direction",
			intent: &domain.Intent{
				Metrics: []domain.Metric{{Ref: mysqlRef("servers", "name")}},
				Filters: []domain.Filter{{Ref: influxRef("cpu_temperature", "time"), Op: domain.OpGt, Value: "2026-01-01T00:00:00Z"}},
			},
			wantAmbig:  true,
			wantReason: "no dependency direction",
		},
		{
			name:       "empty intent",
			intent:     &domain.Intent{},
			wantAmbig:  true,
			wantReason: "references no fields",
		},
		{
			name: "valid hint wins",
			intent: &domain.Intent{
				Hint: domain.StrategyMySQLThenFlux,
				Metrics: []domain.Metric{
					{Ref: mysqlRef("servers", "company")},
					{Ref: influxRef("cpu_temperature", "value"), Aggregate: domain.AggMean},
				},
				Filters: []domain.Filter{
					{Ref: mysqlRef("servers", "name"), Op: domain.OpEq, Value: "web-1"},
					{Ref: influxRef("cpu_temperature", "value"), Op: domain.OpGt, Value: 80},
				},
			},
			want: domain.StrategyMySQLThenFlux,
		},
		{
			name: "inconsistent hint is ignored",
			intent: &domain.Intent{
				Hint:    domain.StrategyMySQLOnly,
				Metrics: []domain.Metric{{Ref: influxRef("cpu_temperature", "value"), Aggregate: domain.AggMean}},
				Filters: []domain.Filter{{Ref: mysqlRef("servers", "name"), Op: domain.OpEq, Value: "web-1"}},
			},
			want: domain.StrategyMySQLThenFlux,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Select(snap, tt.intent)
			if tt.wantAmbig {
				require.Error(t, err)
				var ambigErr *domain.AmbiguousStrategyError
				require.ErrorAs(t, err, &ambigErr)
				assert.Contains(t, err.Error(), tt.wantReason)
				assert.Equal(t, domain.StrategyUnknown, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSelect_AmbiguousCarriesConflictingRefs(t *testing.T) {
	snap := linkedSnapshot()
	in := &domain.Intent{
		Metrics: []domain.Metric{
			{Ref: mysqlRef("servers", "name")},
			{Ref: influxRef("cpu_temperature", "value")},
		},
	}

	_, err := Select(snap, in)
	var ambigErr *domain.AmbiguousStrategyError
	require.ErrorAs(t, err, &ambigErr)
	assert.Len(t, ambigErr.Refs, 2)
	assert.Contains(t, err.Error(), "mysql.servers.name")
	assert.Contains(t, err.Error(), "influxdb.cpu_temperature.value")
}
