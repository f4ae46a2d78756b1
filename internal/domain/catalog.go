// Package domain defines core types, interfaces, and errors for the
// federated query service.
package domain

import (
	"fmt"
	"strings"
)

// StoreID identifies one of the federated data stores.
type StoreID string

const (
	// StoreMySQL is the relational store (entities, relationships, attributes).
	StoreMySQL StoreID = "mysql"
	// StoreInflux is the time-series store (measurements, tags, fields).
	StoreInflux StoreID = "influxdb"
)

// Valid reports whether the store id names a known store.
func (s StoreID) Valid() bool {
	return s == StoreMySQL || s == StoreInflux
}

// FieldType is the semantic type of a catalog field.
type FieldType string

const (
	FieldString    FieldType = "string"
	FieldNumber    FieldType = "number"
	FieldTimestamp FieldType = "timestamp"
	// FieldTag marks an indexed series dimension. Tag values are strings and
	// only support equality predicates in the series store.
	FieldTag FieldType = "tag"
)

// Valid reports whether the field type is one of the declared semantic types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldNumber, FieldTimestamp, FieldTag:
		return true
	}
	return false
}

// Field describes a single queryable field of a collection.
type Field struct {
	Name string
	Type FieldType
}

// Collection is a named set of fields: a MySQL table or an InfluxDB
// measurement. Field order is the declaration order and is preserved.
type Collection struct {
	Name   string
	Fields []Field
}

// Field returns the named field and whether it exists.
func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in declaration order.
func (c *Collection) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// TimestampField returns the first timestamp-typed field, if any.
func (c *Collection) TimestampField() (Field, bool) {
	for _, f := range c.Fields {
		if f.Type == FieldTimestamp {
			return f, true
		}
	}
	return Field{}, false
}

// FieldRef references a single field in a specific store and collection.
type FieldRef struct {
	Store      StoreID
	Collection string
	Field      string
}

// String renders the reference as store.collection.field.
func (r FieldRef) String() string {
	return fmt.Sprintf("%s.%s.%s", r.Store, r.Collection, r.Field)
}

// JoinLink declares a key relationship between a relational column and a
// series tag. Links are the only authority for join-key inference between
// the two stores; nothing is guessed from field names.
type JoinLink struct {
	Relational FieldRef
	Series     FieldRef
}

// String renders the link as "rel <-> series".
func (l JoinLink) String() string {
	return l.Relational.String() + " <-> " + l.Series.String()
}

// Snapshot is an immutable view of both stores' schemas plus the declared
// join links. A snapshot is never mutated after construction; reloading the
// catalog produces a new snapshot that replaces the old one wholesale.
type Snapshot struct {
	Version string
	Stores  map[StoreID][]Collection
	Links   []JoinLink
}

// Collection returns the named collection in the given store.
func (s *Snapshot) Collection(store StoreID, name string) (*Collection, bool) {
	for i := range s.Stores[store] {
		if s.Stores[store][i].Name == name {
			return &s.Stores[store][i], true
		}
	}
	return nil, false
}

// ResolveField returns the field a reference points at, or an error naming
// the unknown part. Callers use this to fail fast on references the model
// hallucinated.
func (s *Snapshot) ResolveField(ref FieldRef) (Field, error) {
	if !ref.Store.Valid() {
		return Field{}, fmt.Errorf("unknown store %q in %s", ref.Store, ref)
	}
	coll, ok := s.Collection(ref.Store, ref.Collection)
	if !ok {
		return Field{}, fmt.Errorf("unknown collection %q in %s", ref.Collection, ref)
	}
	f, ok := coll.Field(ref.Field)
	if !ok {
		return Field{}, fmt.Errorf("unknown field %q in %s", ref.Field, ref)
	}
	return f, nil
}

// LinksBetween returns the declared links connecting any of the given
// relational collections to any of the given series collections.
func (s *Snapshot) LinksBetween(relational, series []string) []JoinLink {
	var out []JoinLink
	for _, l := range s.Links {
		if containsString(relational, l.Relational.Collection) && containsString(series, l.Series.Collection) {
			out = append(out, l)
		}
	}
	return out
}

// Validate checks internal consistency: declared field types, duplicate
// collection names, and links that reference undeclared fields.
func (s *Snapshot) Validate() error {
	for store, colls := range s.Stores {
		if !store.Valid() {
			return fmt.Errorf("catalog declares unknown store %q", store)
		}
		seen := make(map[string]bool, len(colls))
		for _, c := range colls {
			if c.Name == "" {
				return fmt.Errorf("store %s has a collection with no name", store)
			}
			if seen[c.Name] {
				return fmt.Errorf("store %s declares collection %q twice", store, c.Name)
			}
			seen[c.Name] = true
			fieldSeen := make(map[string]bool, len(c.Fields))
			for _, f := range c.Fields {
				if !f.Type.Valid() {
					return fmt.Errorf("%s.%s.%s has invalid type %q", store, c.Name, f.Name, f.Type)
				}
				if fieldSeen[f.Name] {
					return fmt.Errorf("%s.%s declares field %q twice", store, c.Name, f.Name)
				}
				fieldSeen[f.Name] = true
			}
		}
	}
	for _, l := range s.Links {
		if l.Relational.Store != StoreMySQL || l.Series.Store != StoreInflux {
			return fmt.Errorf("link %s must connect a %s column to an %s tag", l, StoreMySQL, StoreInflux)
		}
		if _, err := s.ResolveField(l.Relational); err != nil {
			return fmt.Errorf("link %s: %w", l, err)
		}
		f, err := s.ResolveField(l.Series)
		if err != nil {
			return fmt.Errorf("link %s: %w", l, err)
		}
		if f.Type != FieldTag {
			return fmt.Errorf("link %s: series side must be a tag, got %s", l, f.Type)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// JoinRefs renders a list of field references for error messages.
func JoinRefs(refs []FieldRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
