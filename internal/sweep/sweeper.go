// Package sweep marks confirmed appointments whose end time has passed as
// completed. The daemon runs it on a cron schedule.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

// Invalidator drops cached availability for a provider whose calendar the
// sweep changed. The Redis availability cache satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, providerID uuid.UUID) error
}

type Sweeper struct {
	schedule store.ScheduleStore
	cache    Invalidator
	log      *slog.Logger
	now      func() time.Time
}

// New builds a sweeper. cache may be nil when no availability cache is in
// play.
func New(schedule store.ScheduleStore, cache Invalidator, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		schedule: schedule,
		cache:    cache,
		log:      log.With(slog.String("component", "sweep")),
		now:      time.Now,
	}
}

// Run performs one sweep. The underlying update is idempotent, so an
// overlapping or repeated run is harmless.
func (s *Sweeper) Run(ctx context.Context) error {
	providers, err := s.schedule.CompletePastAppointments(ctx, s.now().UTC())
	if err != nil {
		s.log.Error("completion sweep failed", slog.Any("err", err))
		return err
	}
	if len(providers) == 0 {
		return nil
	}

	s.log.Info("appointments completed", slog.Int("providers", len(providers)))

	if s.cache == nil {
		return nil
	}
	for _, providerID := range providers {
		if err := s.cache.Invalidate(ctx, providerID); err != nil {
			s.log.Warn("availability invalidation failed",
				slog.String("provider_id", providerID.String()),
				slog.Any("err", err),
			)
		}
	}
	return nil
}
