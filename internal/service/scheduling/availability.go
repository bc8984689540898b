package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/cache"
	"github.com/GAMA-00/gato-app-sub003/internal/domain"
)

// AvailabilityGrid computes the bookable start times for one provider and
// day: candidate starts across the working window in duration-sized steps,
// each validated against the provider's commitments. Results come from the
// cache when a fresh entry exists and are cached after computation.
func (s *Service) AvailabilityGrid(ctx context.Context, providerID uuid.UUID, day time.Time, duration time.Duration) ([]domain.AvailabilitySlot, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if duration <= 0 {
		return nil, validationError("duration must be positive")
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	key := cache.Key(providerID, dayStart, duration)

	if s.cache != nil {
		slots, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("availability cache read failed", slog.String("key", key), slog.Any("err", err))
		} else if ok {
			return slots, nil
		}
	}

	windowStart := dayStart.Add(time.Duration(s.workDayStart) * time.Hour)
	windowEnd := dayStart.Add(time.Duration(s.workDayEnd) * time.Hour)

	commitments, err := s.loadCommitments(ctx, providerID, dayStart.Add(-24*time.Hour), dayStart.Add(48*time.Hour))
	if err != nil {
		return nil, err
	}

	var slots []domain.AvailabilitySlot
	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(duration) {
		end := start.Add(duration)
		check := commitments.conflict(start, end, nil, nil)
		slots = append(slots, domain.AvailabilitySlot{
			Start:     start,
			End:       end,
			Available: !check.Conflict,
			Reason:    check.Reason,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, slots); err != nil {
			s.log.Warn("availability cache write failed", slog.String("key", key), slog.Any("err", err))
		}
	}
	return slots, nil
}
