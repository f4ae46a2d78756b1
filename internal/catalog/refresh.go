package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"fedquery/internal/domain"
)

// Refresher re-runs the catalog source on a cron schedule and swaps the
// provider when the load succeeds. A failed reload keeps the previous
// snapshot active.
type Refresher struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewRefresher schedules periodic reloads. The schedule uses robfig/cron
// syntax (e.g. "@every 10m").
func NewRefresher(schedule string, provider *Provider, source domain.CatalogSource, logger *slog.Logger) (*Refresher, error) {
	r := &Refresher{
		cron:   cron.New(),
		logger: logger.With("component", "catalog"),
	}
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := provider.Reload(ctx, source); err != nil {
			r.logger.Warn("catalog refresh failed, keeping previous snapshot", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the schedule.
func (r *Refresher) Start() {
	r.cron.Start()
	r.logger.Info("catalog refresher started")
}

// Stop halts the schedule; a reload already in flight finishes.
func (r *Refresher) Stop() {
	r.cron.Stop()
	r.logger.Info("catalog refresher stopped")
}
