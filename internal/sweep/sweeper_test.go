package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

// fakeScheduleStore only implements the sweep path; everything else is
// unused by the sweeper.
type fakeScheduleStore struct {
	store.ScheduleStore

	completePast func(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

func (f *fakeScheduleStore) CompletePastAppointments(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return f.completePast(ctx, now)
}

type fakeInvalidator struct {
	invalidated []uuid.UUID
	err         error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, providerID uuid.UUID) error {
	f.invalidated = append(f.invalidated, providerID)
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_InvalidatesAffectedProviders(t *testing.T) {
	providerA := uuid.New()
	providerB := uuid.New()
	schedule := &fakeScheduleStore{
		completePast: func(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
			return []uuid.UUID{providerA, providerB}, nil
		},
	}
	cache := &fakeInvalidator{}

	s := New(schedule, cache, discardLogger())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(cache.invalidated) != 2 {
		t.Fatalf("invalidated = %d providers, want 2", len(cache.invalidated))
	}
}

func TestRun_NothingToComplete(t *testing.T) {
	schedule := &fakeScheduleStore{
		completePast: func(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
			return nil, nil
		},
	}
	cache := &fakeInvalidator{}

	s := New(schedule, cache, discardLogger())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(cache.invalidated) != 0 {
		t.Fatalf("invalidated %d providers with nothing completed", len(cache.invalidated))
	}
}

func TestRun_PropagatesStoreError(t *testing.T) {
	boom := errors.New("store down")
	schedule := &fakeScheduleStore{
		completePast: func(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
			return nil, boom
		},
	}

	s := New(schedule, nil, discardLogger())
	if err := s.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRun_InvalidationFailureIsNonFatal(t *testing.T) {
	schedule := &fakeScheduleStore{
		completePast: func(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
			return []uuid.UUID{uuid.New()}, nil
		},
	}
	cache := &fakeInvalidator{err: errors.New("redis down")}

	s := New(schedule, cache, discardLogger())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
}

func TestRun_NilCache(t *testing.T) {
	schedule := &fakeScheduleStore{
		completePast: func(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
			return []uuid.UUID{uuid.New()}, nil
		},
	}

	s := New(schedule, nil, discardLogger())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
}
