package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/domain"
)

// DefaultSlotLockDuration is the checkout hold applied by AcquireSlots when
// the caller does not configure one.
const DefaultSlotLockDuration = 5 * time.Minute

// ScheduleStore is the persistence surface of the scheduling core:
// appointments, recurring rules, exceptions and manual blocks.
type ScheduleStore interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	ListProviderAppointments(ctx context.Context, providerID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListClientAppointments(ctx context.Context, clientID uuid.UUID, statuses []domain.AppointmentStatus, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) error
	// CompletePastAppointments marks confirmed appointments whose end has
	// passed as completed and returns the distinct providers affected.
	CompletePastAppointments(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	ListActiveRecurringRules(ctx context.Context, providerID uuid.UUID) ([]domain.RecurringRule, error)
	GetRecurringRule(ctx context.Context, ruleID uuid.UUID) (domain.RecurringRule, error)
	DeactivateRule(ctx context.Context, ruleID uuid.UUID) error

	ListExceptions(ctx context.Context, ruleIDs []uuid.UUID) ([]domain.RecurringException, error)
	UpsertException(ctx context.Context, ex domain.RecurringException) (domain.RecurringException, error)
	DeleteException(ctx context.Context, ruleID uuid.UUID, exceptionDate time.Time) error

	ListBlockedWindows(ctx context.Context, providerID uuid.UUID) ([]domain.BlockedTimeSlot, error)
}

// SlotStore is the persistence surface of the slot lock manager. AcquireSlots
// must be a single conditional update: the store's row-level semantics, not
// application coordination, provide mutual exclusion.
type SlotStore interface {
	GetSlots(ctx context.Context, providerID, listingID uuid.UUID, from, to time.Time) ([]domain.TimeSlot, error)

	// AcquireSlots sets blocked_until on every listed slot, but only where
	// the slot is available, not reserved, and holds no unexpired lock.
	// If any slot fails the predicate the whole acquisition fails with
	// ErrSlotsUnavailable and no slot is modified.
	AcquireSlots(ctx context.Context, slotIDs []uuid.UUID, until time.Time) error

	// ReleaseSlots clears blocked_until unconditionally. Idempotent; safe
	// to call after the lock already expired.
	ReleaseSlots(ctx context.Context, slotIDs []uuid.UUID) error

	// ReserveSlots flips locked slots to reserved when a booking completes,
	// clearing the lock in the same write.
	ReserveSlots(ctx context.Context, slotIDs []uuid.UUID) error

	// ReleaseAppointmentSlots frees the slots occupied by an appointment's
	// time range after it is cancelled or rejected.
	ReleaseAppointmentSlots(ctx context.Context, providerID uuid.UUID, start, end time.Time) error
}
