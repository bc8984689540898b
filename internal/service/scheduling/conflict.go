package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GAMA-00/gato-app-sub003/internal/domain"
)

// Conflict reasons, in check order.
const (
	ReasonOccupied        = "occupied"
	ReasonManuallyBlocked = "manually blocked"
	ReasonRecurring       = "blocked by recurring appointment"
)

// ConflictCheck is a structured result, not an error: conflicts are
// expected and frequent and must drive caller branching.
type ConflictCheck struct {
	Conflict bool
	Reason   string
}

// overlaps is the half-open interval test. Back-to-back ranges sharing only
// a boundary instant do not overlap.
func overlaps(start, end, otherStart, otherEnd time.Time) bool {
	return start.Before(otherEnd) && end.After(otherStart)
}

// providerCommitments is everything that can occupy a provider's time in a
// window, loaded once and evaluated in memory.
type providerCommitments struct {
	appointments []domain.Appointment
	blocked      []domain.BlockedTimeSlot
	occurrences  []domain.ResolvedOccurrence
}

func (s *Service) loadCommitments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) (providerCommitments, error) {
	appts, err := s.schedule.ListProviderAppointments(ctx, providerID, domain.ActiveAppointmentStatuses(), windowStart, windowEnd)
	if err != nil {
		return providerCommitments{}, err
	}

	blocked, err := s.schedule.ListBlockedWindows(ctx, providerID)
	if err != nil {
		return providerCommitments{}, err
	}

	occs, _, err := s.resolvedOccurrences(ctx, providerID, windowStart, windowEnd)
	if err != nil {
		return providerCommitments{}, err
	}

	return providerCommitments{
		appointments: appts,
		blocked:      blocked,
		occurrences:  occs,
	}, nil
}

// occurrenceRef identifies one occurrence of a series by its rule and the
// calendar day the series originally placed it on.
type occurrenceRef struct {
	ruleID uuid.UUID
	day    time.Time
}

func (r occurrenceRef) matches(o domain.ResolvedOccurrence) bool {
	return o.RuleID == r.ruleID && sameUTCDay(o.OriginalStart, r.day)
}

func sameUTCDay(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month() && au.Day() == bu.Day()
}

// conflict checks the proposed range in a fixed order: persisted appointments,
// then manual blocks, then recurring occurrences with exceptions applied.
// The first conflict found wins.
func (c providerCommitments) conflict(start, end time.Time, excludeAppointmentID *uuid.UUID, excludeOccurrence *occurrenceRef) ConflictCheck {
	for _, a := range c.appointments {
		if excludeAppointmentID != nil && a.ID == *excludeAppointmentID {
			continue
		}
		if !a.Status.Active() {
			continue
		}
		if overlaps(start, end, a.StartTime, a.EndTime) {
			return ConflictCheck{Conflict: true, Reason: ReasonOccupied}
		}
	}

	for _, b := range c.blocked {
		if b.Covers(start, end) {
			return ConflictCheck{Conflict: true, Reason: ReasonManuallyBlocked}
		}
	}

	for _, o := range c.occurrences {
		if o.Status == domain.OccurrenceCancelled {
			continue
		}
		if excludeOccurrence != nil && excludeOccurrence.matches(o) {
			continue
		}
		if overlaps(start, end, o.StartTime, o.EndTime) {
			return ConflictCheck{Conflict: true, Reason: ReasonRecurring}
		}
	}

	return ConflictCheck{}
}

// CheckConflict reports whether [start, end) overlaps any other commitment
// of the provider. excludeAppointmentID lets an edit of an existing
// appointment avoid conflicting with itself.
func (s *Service) CheckConflict(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeAppointmentID *uuid.UUID) (ConflictCheck, error) {
	return s.checkConflict(ctx, providerID, start, end, excludeAppointmentID, nil)
}

// checkConflict additionally takes the occurrence being edited, so moving
// an occurrence onto a time overlapping its own current slot is not read as
// a conflict with itself.
func (s *Service) checkConflict(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeAppointmentID *uuid.UUID, excludeOccurrence *occurrenceRef) (ConflictCheck, error) {
	if providerID == uuid.Nil {
		return ConflictCheck{}, validationError("provider_id is required")
	}
	startUTC := start.UTC()
	endUTC := end.UTC()
	if endUTC.Equal(startUTC) || endUTC.Before(startUTC) {
		return ConflictCheck{}, validationError("end_time must be after start_time")
	}

	// Recurring occurrence times can land anywhere on the surrounding
	// days, so load a day-padded window.
	loadStart := startUTC.Add(-24 * time.Hour)
	loadEnd := endUTC.Add(24 * time.Hour)

	commitments, err := s.loadCommitments(ctx, providerID, loadStart, loadEnd)
	if err != nil {
		return ConflictCheck{}, err
	}

	return commitments.conflict(startUTC, endUTC, excludeAppointmentID, excludeOccurrence), nil
}
