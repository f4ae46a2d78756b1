package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Version: "test-1",
		Stores: map[StoreID][]Collection{
			StoreMySQL: {
				{Name: "servers", Fields: []Field{
					{Name: "id", Type: FieldNumber},
					{Name: "name", Type: FieldString},
					{Name: "created_at", Type: FieldTimestamp},
				}},
				{Name: "customers", Fields: []Field{
					{Name: "id", Type: FieldNumber},
					{Name: "company", Type: FieldString},
				}},
			},
			StoreInflux: {
				{Name: "cpu_temperature", Fields: []Field{
					{Name: "time", Type: FieldTimestamp},
					{Name: "server_id", Type: FieldTag},
					{Name: "value", Type: FieldNumber},
				}},
			},
		},
		Links: []JoinLink{
			{
				Relational: FieldRef{Store: StoreMySQL, Collection: "servers", Field: "id"},
				Series:     FieldRef{Store: StoreInflux, Collection: "cpu_temperature", Field: "server_id"},
			},
		},
	}
}

func TestSnapshot_ResolveField(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name    string
		ref     FieldRef
		want    FieldType
		wantErr string
	}{
		{
			name: "known mysql column",
			ref:  FieldRef{Store: StoreMySQL, Collection: "servers", Field: "name"},
			want: FieldString,
		},
		{
			name: "known influx tag",
			ref:  FieldRef{Store: StoreInflux, Collection: "cpu_temperature", Field: "server_id"},
			want: FieldTag,
		},
		{
			name:    "unknown store",
			ref:     FieldRef{Store: "postgres", Collection: "servers", Field: "name"},
			wantErr: `unknown store "postgres"`,
		},
		{
			name:    "unknown collection",
			ref:     FieldRef{Store: StoreMySQL, Collection: "racks", Field: "name"},
			wantErr: `unknown collection "racks"`,
		},
		{
			name:    "unknown field",
			ref:     FieldRef{Store: StoreInflux, Collection: "cpu_temperature", Field: "humidity"},
			wantErr: `unknown field "humidity"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := snap.ResolveField(tt.ref)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, f.Type)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSnapshot_LinksBetween(t *testing.T) {
	snap := testSnapshot()

	links := snap.LinksBetween([]string{"servers"}, []string{"cpu_temperature"})
	require.Len(t, links, 1)
	assert.Equal(t, "id", links[0].Relational.Field)
	assert.Equal(t, "server_id", links[0].Series.Field)

	assert.Empty(t, snap.LinksBetween([]string{"customers"}, []string{"cpu_temperature"}))
	assert.Empty(t, snap.LinksBetween(nil, []string{"cpu_temperature"}))
}

func TestSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr string
	}{
		{
			name:   "valid snapshot",
			mutate: func(*Snapshot) {},
		},
		{
			name: "duplicate collection",
			mutate: func(s *Snapshot) {
				s.Stores[StoreMySQL] = append(s.Stores[StoreMySQL], Collection{Name: "servers", Fields: []Field{{Name: "id", Type: FieldNumber}}})
			},
			wantErr: `declares collection "servers" twice`,
		},
		{
			name: "invalid field type",
			mutate: func(s *Snapshot) {
				s.Stores[StoreMySQL][0].Fields[0].Type = "uuid"
			},
			wantErr: `invalid type "uuid"`,
		},
		{
			name: "link to undeclared field",
			mutate: func(s *Snapshot) {
				s.Links[0].Relational.Field = "serial"
			},
			wantErr: `unknown field "serial"`,
		},
		{
			name: "link series side not a tag",
			mutate: func(s *Snapshot) {
				s.Links[0].Series.Field = "value"
			},
			wantErr: "series side must be a tag",
		},
		{
			name: "link direction reversed",
			mutate: func(s *Snapshot) {
				s.Links[0].Relational.Store = StoreInflux
			},
			wantErr: "must connect a mysql column to an influxdb tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			tt.mutate(snap)
			err := snap.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
