// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fedquery/internal/domain"
)

// HistoryRepo persists answered questions. Writes go through the write
// pool, list queries through the read pool.
type HistoryRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewHistoryRepo creates a HistoryRepo over a write/read pool pair. In
// single-pool setups, pass the same *sql.DB for both.
func NewHistoryRepo(writeDB, readDB *sql.DB) *HistoryRepo {
	return &HistoryRepo{writeDB: writeDB, readDB: readDB}
}

const timeLayout = "2006-01-02 15:04:05"

func (r *HistoryRepo) Insert(ctx context.Context, e *domain.HistoryEntry) error {
	queries, err := json.Marshal(emptyAsList(e.Queries))
	if err != nil {
		return fmt.Errorf("marshal queries: %w", err)
	}
	warnings, err := json.Marshal(emptyAsList(e.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.writeDB.ExecContext(ctx, `
		INSERT INTO query_history
			(id, question, strategy, queries, status, error_message, row_count, warnings, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Question, e.Strategy, string(queries), e.Status, e.ErrorMessage,
		e.RowCount, string(warnings), e.DurationMs, createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (r *HistoryRepo) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, int64, error) {
	where := "1=1"
	var args []interface{}
	if filter.Status != nil {
		where += " AND status = ?"
		args = append(args, *filter.Status)
	}

	var total int64
	if err := r.readDB.QueryRowContext(ctx,
		"SELECT count(*) FROM query_history WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.readDB.QueryContext(ctx, `
		SELECT id, question, strategy, queries, status, error_message, row_count, warnings, duration_ms, created_at
		FROM query_history
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e         domain.HistoryEntry
			queries   string
			warnings  string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Question, &e.Strategy, &queries, &e.Status,
			&e.ErrorMessage, &e.RowCount, &warnings, &e.DurationMs, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(queries), &e.Queries); err != nil {
			return nil, 0, fmt.Errorf("decode queries for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(warnings), &e.Warnings); err != nil {
			return nil, 0, fmt.Errorf("decode warnings for %s: %w", e.ID, err)
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, 0, fmt.Errorf("parse created_at for %s: %w", e.ID, err)
		}
		e.CreatedAt = t.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history rows: %w", err)
	}

	return entries, total, nil
}

// emptyAsList keeps nil slices rendering as [] rather than null.
func emptyAsList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ domain.HistoryRepository = (*HistoryRepo)(nil)
