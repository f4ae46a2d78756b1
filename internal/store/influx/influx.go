// Package influx adapts the time-series store (InfluxDB 1.x, InfluxQL over
// HTTP) to the executor and schema listing interfaces. In-flight queries are
// bounded by a weighted semaphore since the HTTP client itself has no pool
// limit.
package influx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"golang.org/x/sync/semaphore"

	"fedquery/internal/config"
	"fedquery/internal/domain"
)

// Store executes InfluxQL against InfluxDB 1.x. Safe for concurrent use.
type Store struct {
	client   client.Client
	database string
	sem      *semaphore.Weighted
	logger   *slog.Logger
}

// New creates the HTTP client. The server is not contacted here; use Ping
// to verify reachability.
func New(cfg config.InfluxConfig, logger *slog.Logger) (*Store, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.URL(),
		Username: cfg.User,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("influxdb client: %w", err)
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return NewWithClient(c, cfg.Database, maxConcurrent, logger), nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(c client.Client, database string, maxConcurrent int, logger *slog.Logger) *Store {
	return &Store{
		client:   c,
		database: database,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   logger.With("component", "influxdb"),
	}
}

func (s *Store) ID() domain.StoreID { return domain.StoreInflux }

// Ping verifies the server is reachable. The client's ping has no context
// support, so the context deadline is translated into its timeout.
func (s *Store) Ping(ctx context.Context) error {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if _, _, err := s.client.Ping(timeout); err != nil {
		return fmt.Errorf("ping influxdb: %w", err)
	}
	return nil
}

// Close releases the HTTP client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Execute runs one InfluxQL query and flattens the response into rows.
// The client's Query has no context support, so it runs on a goroutine and
// cancellation abandons the call; the bounded semaphore keeps abandoned
// calls from piling up unbounded.
func (s *Store) Execute(ctx context.Context, query string) ([]domain.Row, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, domain.ErrStore(domain.StoreInflux, domain.ErrorTransient, query, err)
	}

	s.logger.Debug("executing query", "query", query)

	type reply struct {
		resp *client.Response
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		defer s.sem.Release(1)
		// Empty precision keeps timestamps as RFC3339 strings.
		resp, err := s.client.Query(client.NewQuery(query, s.database, ""))
		ch <- reply{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, domain.ErrStore(domain.StoreInflux, domain.ErrorTransient, query, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, domain.ErrStore(domain.StoreInflux, Classify(r.err), query, r.err)
		}
		if err := r.resp.Error(); err != nil {
			return nil, domain.ErrStore(domain.StoreInflux, Classify(err), query, err)
		}
		return seriesRows(r.resp.Results), nil
	}
}

// seriesRows flattens the response: one row per point, with the GROUP BY
// tags of its series merged into each row.
func seriesRows(results []client.Result) []domain.Row {
	out := []domain.Row{}
	for _, res := range results {
		for _, series := range res.Series {
			for _, values := range series.Values {
				row := make(domain.Row, len(series.Columns)+len(series.Tags))
				for i, col := range series.Columns {
					if i < len(values) {
						row[col] = convertValue(values[i])
					}
				}
				for k, v := range series.Tags {
					row[k] = v
				}
				out = append(out, row)
			}
		}
	}
	return out
}

// convertValue narrows json.Number to int64 when exact, float64 otherwise.
// The client decodes response bodies with UseNumber, so every numeric field
// arrives as json.Number.
func convertValue(v interface{}) interface{} {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if n, err := num.Int64(); err == nil {
		return n
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}

var (
	_ domain.StoreExecutor = (*Store)(nil)
	_ domain.StorePinger   = (*Store)(nil)
)
