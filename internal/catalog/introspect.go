package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fedquery/internal/domain"
)

// SchemaLister produces the collections of one store by querying its
// metadata surface. Implemented by mysql.Store (INFORMATION_SCHEMA) and
// influx.Store (SHOW MEASUREMENTS / FIELD KEYS / TAG KEYS).
type SchemaLister interface {
	ListSchema(ctx context.Context) ([]domain.Collection, error)
}

// IntrospectSource builds a snapshot from the live stores. Join links
// cannot be discovered from store metadata, so they are declared up front
// (parsed from configuration) and validated against the introspected
// collections by Snapshot.Validate.
type IntrospectSource struct {
	mysql  SchemaLister
	influx SchemaLister
	links  []domain.JoinLink
	logger *slog.Logger
}

// NewIntrospectSource creates a source that introspects both stores.
func NewIntrospectSource(mysql, influx SchemaLister, links []domain.JoinLink, logger *slog.Logger) *IntrospectSource {
	return &IntrospectSource{
		mysql:  mysql,
		influx: influx,
		links:  links,
		logger: logger.With("component", "catalog"),
	}
}

// Load introspects both stores concurrently and assembles the snapshot.
func (s *IntrospectSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	var mysqlColls, influxColls []domain.Collection

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		colls, err := s.mysql.ListSchema(gctx)
		if err != nil {
			return fmt.Errorf("introspect mysql schema: %w", err)
		}
		mysqlColls = colls
		return nil
	})
	g.Go(func() error {
		colls, err := s.influx.ListSchema(gctx)
		if err != nil {
			return fmt.Errorf("introspect influxdb schema: %w", err)
		}
		influxColls = colls
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		Version: "introspect@" + time.Now().UTC().Format(time.RFC3339),
		Stores: map[domain.StoreID][]domain.Collection{
			domain.StoreMySQL:  mysqlColls,
			domain.StoreInflux: influxColls,
		},
		Links: s.links,
	}
	s.logger.Info("catalog introspected",
		"mysql_collections", len(mysqlColls),
		"influx_collections", len(influxColls),
		"links", len(snap.Links),
	)
	return snap, nil
}

// ParseLinks parses the CATALOG_LINKS declaration: comma-separated
// "table.column=measurement.tag" pairs.
func ParseLinks(spec string) ([]domain.JoinLink, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	var links []domain.JoinLink
	for _, pair := range strings.Split(spec, ",") {
		relPart, serPart, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed link %q, want table.column=measurement.tag", pair)
		}
		rel, err := splitLinkRef(relPart)
		if err != nil {
			return nil, fmt.Errorf("link %q: %w", pair, err)
		}
		ser, err := splitLinkRef(serPart)
		if err != nil {
			return nil, fmt.Errorf("link %q: %w", pair, err)
		}
		links = append(links, domain.JoinLink{
			Relational: domain.FieldRef{Store: domain.StoreMySQL, Collection: rel[0], Field: rel[1]},
			Series:     domain.FieldRef{Store: domain.StoreInflux, Collection: ser[0], Field: ser[1]},
		})
	}
	return links, nil
}

var _ domain.CatalogSource = (*IntrospectSource)(nil)
