// Package mysql adapts the relational store to the executor and schema
// listing interfaces. Queries arrive as fully rendered SQL text; results
// leave as normalized rows with driver-private types converted away.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"fedquery/internal/config"
	"fedquery/internal/domain"
)

// Store executes SQL against MySQL over a bounded connection pool.
// Safe for concurrent use.
type Store struct {
	db       *sql.DB
	database string
	logger   *slog.Logger
}

// New opens the MySQL connection pool. The server is not contacted here;
// use Ping to verify reachability.
func New(cfg config.MySQLConfig, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 8
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, database: cfg.Database, logger: logger.With("component", "mysql")}, nil
}

// NewWithDB wraps an already opened pool. Used by tests.
func NewWithDB(db *sql.DB, database string, logger *slog.Logger) *Store {
	return &Store{db: db, database: database, logger: logger.With("component", "mysql")}
}

func (s *Store) ID() domain.StoreID { return domain.StoreMySQL }

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Execute runs one query and scans the full result set into rows. Failures
// come back as StoreError with their retry classification.
func (s *Store) Execute(ctx context.Context, query string) ([]domain.Row, error) {
	s.logger.Debug("executing query", "query", query)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.ErrStore(domain.StoreMySQL, Classify(err), query, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, domain.ErrStore(domain.StoreMySQL, Classify(err), query, err)
	}
	return out, nil
}

// ListSchema introspects every table of the configured database through
// INFORMATION_SCHEMA, in table name and column position order.
func (s *Store) ListSchema(ctx context.Context) ([]domain.Collection, error) {
	const q = `
		SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`

	rows, err := s.db.QueryContext(ctx, q, s.database)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	var colls []domain.Collection
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, fmt.Errorf("scan information_schema row: %w", err)
		}
		if len(colls) == 0 || colls[len(colls)-1].Name != table {
			colls = append(colls, domain.Collection{Name: table})
		}
		coll := &colls[len(colls)-1]
		coll.Fields = append(coll.Fields, domain.Field{Name: column, Type: fieldTypeOf(dataType)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate information_schema rows: %w", err)
	}
	return colls, nil
}

// scanRows reads the full result set into rows, converting each value
// through convertValue. The result is never nil.
func scanRows(rows *sql.Rows) ([]domain.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := []domain.Row{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(domain.Row, len(cols))
		for i, v := range vals {
			row[cols[i]] = convertValue(v, types[i].DatabaseTypeName())
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// convertValue normalizes one driver value. The text protocol returns most
// columns as []byte, so numeric types are re-parsed by declared column type.
// Times render as RFC3339 UTC strings, the same shape the series store uses.
func convertValue(v interface{}, dbType string) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return convertText(string(x), dbType)
	default:
		return v
	}
}

func convertText(s, dbType string) interface{} {
	switch strings.TrimPrefix(dbType, "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT", "DOUBLE", "DECIMAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// fieldTypeOf maps an INFORMATION_SCHEMA DATA_TYPE onto the catalog's
// semantic types. Anything unrecognized is a string.
func fieldTypeOf(dataType string) domain.FieldType {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint",
		"decimal", "numeric", "float", "double", "bit", "year":
		return domain.FieldNumber
	case "date", "datetime", "timestamp", "time":
		return domain.FieldTimestamp
	default:
		return domain.FieldString
	}
}

var (
	_ domain.StoreExecutor = (*Store)(nil)
	_ domain.StorePinger   = (*Store)(nil)
)
