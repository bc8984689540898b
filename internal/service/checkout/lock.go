// Package checkout holds the slot lock manager: a minutes-scale optimistic
// hold over time slots that keeps them off the market while a client pays.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/retry"
	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

// Lease is one granted checkout hold. Expired fires when the deadline
// passes so UIs can flip their local state without polling; the store-side
// lock self-heals independently because acquisition checks treat a past
// blocked_until as unlocked.
type Lease struct {
	SlotIDs   []uuid.UUID
	ExpiresAt time.Time

	expired chan struct{}
	timer   *time.Timer
}

// Expired is closed when the lease deadline passes. It never fires after
// the lease is released.
func (l *Lease) Expired() <-chan struct{} {
	return l.expired
}

type Manager struct {
	slots store.SlotStore
	ttl   time.Duration
	retry retry.Policy
	log   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewManager(slots store.SlotStore, ttl time.Duration, log *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = store.DefaultSlotLockDuration
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		slots: slots,
		ttl:   ttl,
		retry: retry.DefaultPolicy(),
		log:   log.With(slog.String("component", "checkout.lock")),
		now:   time.Now,
	}
}

// Acquire locks every requested slot for the configured hold duration.
// All-or-nothing: if any slot is reserved or already locked by another
// checkout, the acquisition fails with store.ErrSlotsUnavailable and no
// slot is modified. Transient store errors are retried; contention is not.
func (m *Manager) Acquire(ctx context.Context, slotIDs []uuid.UUID) (*Lease, error) {
	if len(slotIDs) == 0 {
		return nil, errors.New("at least one slot is required")
	}

	until := m.now().UTC().Add(m.ttl)
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		return m.slots.AcquireSlots(ctx, slotIDs, until)
	})
	if err != nil {
		if errors.Is(err, store.ErrSlotsUnavailable) {
			m.log.Info("slot lock contention", slog.Int("slots", len(slotIDs)))
		}
		return nil, err
	}

	lease := &Lease{
		SlotIDs:   slotIDs,
		ExpiresAt: until,
		expired:   make(chan struct{}),
	}
	lease.timer = time.AfterFunc(until.Sub(m.now()), func() {
		close(lease.expired)
	})

	m.log.Info("slots locked",
		slog.Int("slots", len(slotIDs)),
		slog.Time("expires_at", until),
	)
	return lease, nil
}

// Release clears the hold on the slots. Idempotent and safe after expiry;
// releasing a lease that was never acquired is a no-op at the store.
func (m *Manager) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	lease.stop()
	return m.slots.ReleaseSlots(ctx, lease.SlotIDs)
}

// Complete flips the locked slots to reserved when the booking finishes
// while the lease is held.
func (m *Manager) Complete(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return errors.New("lease is required")
	}
	lease.stop()
	return m.slots.ReserveSlots(ctx, lease.SlotIDs)
}

// Abandon issues a best-effort fire-and-forget release when the holder
// leaves checkout without paying. Failure is non-fatal: release is
// idempotent and the lock expires on its own.
func (m *Manager) Abandon(lease *Lease) {
	if lease == nil {
		return
	}
	lease.stop()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.slots.ReleaseSlots(ctx, lease.SlotIDs); err != nil {
			m.log.Debug("abandonment release failed; lock will expire",
				slog.Int("slots", len(lease.SlotIDs)),
				slog.Any("err", err),
			)
		}
	}()
}

func (l *Lease) stop() {
	if l.timer != nil {
		l.timer.Stop()
	}
}
