package influx

import (
	"context"
	"fmt"

	"fedquery/internal/domain"
)

// ListSchema introspects the database: one collection per measurement with
// the implicit time column first, then field keys, then tag keys.
func (s *Store) ListSchema(ctx context.Context) ([]domain.Collection, error) {
	measurements, err := s.Execute(ctx, "SHOW MEASUREMENTS")
	if err != nil {
		return nil, fmt.Errorf("show measurements: %w", err)
	}

	var colls []domain.Collection
	for _, m := range measurements {
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		coll, err := s.describeMeasurement(ctx, name)
		if err != nil {
			return nil, err
		}
		colls = append(colls, coll)
	}
	return colls, nil
}

func (s *Store) describeMeasurement(ctx context.Context, name string) (domain.Collection, error) {
	coll := domain.Collection{
		Name:   name,
		Fields: []domain.Field{{Name: "time", Type: domain.FieldTimestamp}},
	}

	fields, err := s.Execute(ctx, fmt.Sprintf(`SHOW FIELD KEYS FROM %q`, name))
	if err != nil {
		return domain.Collection{}, fmt.Errorf("show field keys for %s: %w", name, err)
	}
	for _, row := range fields {
		key, _ := row["fieldKey"].(string)
		if key == "" {
			continue
		}
		fieldType, _ := row["fieldType"].(string)
		coll.Fields = append(coll.Fields, domain.Field{Name: key, Type: fieldTypeOf(fieldType)})
	}

	tags, err := s.Execute(ctx, fmt.Sprintf(`SHOW TAG KEYS FROM %q`, name))
	if err != nil {
		return domain.Collection{}, fmt.Errorf("show tag keys for %s: %w", name, err)
	}
	for _, row := range tags {
		key, _ := row["tagKey"].(string)
		if key == "" {
			continue
		}
		coll.Fields = append(coll.Fields, domain.Field{Name: key, Type: domain.FieldTag})
	}
	return coll, nil
}

// fieldTypeOf maps an InfluxQL field data type onto the catalog's semantic
// types. Booleans have no catalog equivalent and read as strings.
func fieldTypeOf(fieldType string) domain.FieldType {
	switch fieldType {
	case "float", "integer":
		return domain.FieldNumber
	default:
		return domain.FieldString
	}
}
