package catalog

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fedquery/internal/domain"
)

// FileSource loads the catalog from a YAML document. The file declares both
// stores' collections and the join links:
//
//	stores:
//	  mysql:
//	    - name: servers
//	      fields:
//	        - {name: id, type: number}
//	        - {name: name, type: string}
//	  influxdb:
//	    - name: cpu_temperature
//	      fields:
//	        - {name: time, type: timestamp}
//	        - {name: server_id, type: tag}
//	        - {name: value, type: number}
//	links:
//	  - relational: servers.id
//	    series: cpu_temperature.server_id
type FileSource struct {
	Path string
}

type fileDoc struct {
	Stores map[string][]fileCollection `yaml:"stores"`
	Links  []fileLink                  `yaml:"links"`
}

type fileCollection struct {
	Name   string      `yaml:"name"`
	Fields []fileField `yaml:"fields"`
}

type fileField struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type fileLink struct {
	Relational string `yaml:"relational"`
	Series     string `yaml:"series"`
}

// Load reads and parses the catalog file. The snapshot version is derived
// from the file content so identical files produce identical versions.
func (s *FileSource) Load(_ context.Context) (*domain.Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", s.Path, err)
	}
	if len(doc.Stores) == 0 {
		return nil, fmt.Errorf("catalog file %s declares no stores", s.Path)
	}

	sum := sha256.Sum256(data)
	snap := &domain.Snapshot{
		Version: fmt.Sprintf("%s@%x", filepath.Base(s.Path), sum[:4]),
		Stores:  make(map[domain.StoreID][]domain.Collection, len(doc.Stores)),
	}
	for storeName, colls := range doc.Stores {
		store := domain.StoreID(storeName)
		out := make([]domain.Collection, 0, len(colls))
		for _, c := range colls {
			fields := make([]domain.Field, 0, len(c.Fields))
			for _, f := range c.Fields {
				fields = append(fields, domain.Field{Name: f.Name, Type: domain.FieldType(f.Type)})
			}
			out = append(out, domain.Collection{Name: c.Name, Fields: fields})
		}
		snap.Stores[store] = out
	}

	for _, l := range doc.Links {
		rel, err := splitLinkRef(l.Relational)
		if err != nil {
			return nil, fmt.Errorf("catalog link relational side: %w", err)
		}
		ser, err := splitLinkRef(l.Series)
		if err != nil {
			return nil, fmt.Errorf("catalog link series side: %w", err)
		}
		snap.Links = append(snap.Links, domain.JoinLink{
			Relational: domain.FieldRef{Store: domain.StoreMySQL, Collection: rel[0], Field: rel[1]},
			Series:     domain.FieldRef{Store: domain.StoreInflux, Collection: ser[0], Field: ser[1]},
		})
	}

	return snap, nil
}

// splitLinkRef parses "collection.field" into its two parts.
func splitLinkRef(s string) ([2]string, error) {
	coll, field, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || coll == "" || field == "" {
		return [2]string{}, fmt.Errorf("malformed reference %q, want collection.field", s)
	}
	return [2]string{coll, field}, nil
}

var _ domain.CatalogSource = (*FileSource)(nil)
