package repository_test

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"fedquery/internal/db"
	"fedquery/internal/db/repository"
	"fedquery/internal/domain"
)

func newTestRepo(t *testing.T) *repository.HistoryRepo {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	return repository.NewHistoryRepo(writeDB, readDB)
}

func sampleEntry(id string, createdAt time.Time) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:         id,
		Question:   "average cpu temperature for web servers",
		Strategy:   string(domain.StrategyMySQLThenFlux),
		Queries:    []string{"SELECT `id` FROM `servers`", `SELECT MEAN("value") FROM "cpu_temperature"`},
		Status:     domain.HistoryStatusDone,
		RowCount:   3,
		Warnings:   []string{"1 unmatched source rows"},
		DurationMs: 125,
		CreatedAt:  createdAt,
	}
}

func TestHistoryRepo_InsertAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createdAt := time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, sampleEntry("q-1", createdAt)))

	entries, total, err := repo.List(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, entries, 1)

	got := entries[0]
	require.Equal(t, "q-1", got.ID)
	require.Equal(t, "average cpu temperature for web servers", got.Question)
	require.Equal(t, string(domain.StrategyMySQLThenFlux), got.Strategy)
	require.Equal(t, []string{"SELECT `id` FROM `servers`", `SELECT MEAN("value") FROM "cpu_temperature"`}, got.Queries)
	require.Equal(t, domain.HistoryStatusDone, got.Status)
	require.Nil(t, got.ErrorMessage)
	require.EqualValues(t, 3, got.RowCount)
	require.Equal(t, []string{"1 unmatched source rows"}, got.Warnings)
	require.EqualValues(t, 125, got.DurationMs)
	require.Equal(t, createdAt, got.CreatedAt)
}

func TestHistoryRepo_InsertFailedEntry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	msg := "influxdb: connection refused"
	e := &domain.HistoryEntry{
		ID:           "q-err",
		Question:     "cpu temperature",
		Status:       domain.HistoryStatusFailed,
		ErrorMessage: &msg,
		CreatedAt:    time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Insert(ctx, e))

	entries, _, err := repo.List(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.HistoryStatusFailed, entries[0].Status)
	require.NotNil(t, entries[0].ErrorMessage)
	require.Equal(t, msg, *entries[0].ErrorMessage)
	require.Equal(t, []string{}, entries[0].Queries)
	require.Equal(t, []string{}, entries[0].Warnings)
}

func TestHistoryRepo_ListOrdersNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"q-old", "q-mid", "q-new"} {
		require.NoError(t, repo.Insert(ctx, sampleEntry(id, base.Add(time.Duration(i)*time.Hour))))
	}

	entries, total, err := repo.List(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, entries, 3)
	require.Equal(t, "q-new", entries[0].ID)
	require.Equal(t, "q-mid", entries[1].ID)
	require.Equal(t, "q-old", entries[2].ID)
}

func TestHistoryRepo_ListFiltersByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, sampleEntry("q-done", base)))

	failed := sampleEntry("q-failed", base.Add(time.Minute))
	failed.Status = domain.HistoryStatusFailed
	require.NoError(t, repo.Insert(ctx, failed))

	status := domain.HistoryStatusFailed
	entries, total, err := repo.List(ctx, domain.HistoryFilter{Status: &status})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	require.Equal(t, "q-failed", entries[0].ID)
}

func TestHistoryRepo_ListPaginates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := sampleEntry(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Insert(ctx, e))
	}

	entries, total, err := repo.List(ctx, domain.HistoryFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, entries, 2)
	// Newest first: e, d, [c, b], a.
	require.Equal(t, "c", entries[0].ID)
	require.Equal(t, "b", entries[1].ID)
}

func TestHistoryRepo_RejectsUnknownStatus(t *testing.T) {
	repo := newTestRepo(t)

	e := sampleEntry("q-bad", time.Now().UTC())
	e.Status = "running"
	require.Error(t, repo.Insert(context.Background(), e))
}
